package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("mask", func(fl validator.FieldLevel) bool {
		_, err := ParseMask(fl.Field().String())
		return err == nil
	})
}

// Validate checks the configuration for errors.
//
// It runs the struct tag rules first, then the rules that span fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules applies checks that struct tags cannot express.
func validateCustomRules(cfg *Config) error {
	if cfg.Metadata.Type == "badger" {
		if path, _ := cfg.Metadata.Badger["db_path"].(string); path == "" {
			return fmt.Errorf("metadata.badger.db_path: required when metadata.type is badger")
		}
	}

	switch cfg.Content.Type {
	case "filesystem":
		if path, _ := cfg.Content.Filesystem["path"].(string); path == "" {
			return fmt.Errorf("content.filesystem.path: required when content.type is filesystem")
		}
	case "s3":
		if bucket, _ := cfg.Content.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("content.s3.bucket: required when content.type is s3")
		}
	}

	// A memory metadata store forgets the namespace on unmount, so the
	// content it points at would be unreachable.
	if cfg.Metadata.Type == "memory" && cfg.Content.Type != "memory" {
		return fmt.Errorf("metadata: memory metadata store requires memory content store (got %q)", cfg.Content.Type)
	}

	if cfg.Mount.AllowOther && cfg.Mount.AllowRoot {
		return fmt.Errorf("mount: allow_other and allow_root are mutually exclusive")
	}

	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

// ParseMask parses a permission mask. A leading 0 or 0o selects octal,
// anything else is decimal. Only the 0777 bits are accepted.
func ParseMask(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty mask")
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O"):
		s, base = s[2:], 8
	case len(s) > 1 && s[0] == '0':
		s, base = s[1:], 8
	}

	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mask %q: %w", s, err)
	}
	if v&^0o777 != 0 {
		return 0, fmt.Errorf("mask %#o has bits outside 0777", v)
	}
	return uint32(v), nil
}

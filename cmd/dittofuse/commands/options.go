package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/dittofuse/pkg/config"
	"github.com/spf13/pflag"
)

// mountOptions collects -o arguments. It may be repeated and each value
// may hold several comma separated options.
type mountOptions []string

var _ pflag.Value = (*mountOptions)(nil)

func (o *mountOptions) String() string {
	return strings.Join(*o, ",")
}

func (o *mountOptions) Set(value string) error {
	for _, opt := range strings.Split(value, ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			*o = append(*o, opt)
		}
	}
	return nil
}

func (o *mountOptions) Type() string {
	return "opt[,opt=val...]"
}

// applyMountOptions folds -o options into cfg.
func applyMountOptions(cfg *config.Config, opts []string) error {
	for _, opt := range opts {
		key, value, hasValue := strings.Cut(opt, "=")

		switch {
		case key == "ro" && !hasValue:
			cfg.Volume.ReadOnly = true
		case key == "noatime" && !hasValue:
			cfg.Volume.NoAtime = true
		case key == "umask" && hasValue:
			if err := setMask(&cfg.Volume.Umask, value); err != nil {
				return fmt.Errorf("invalid option %q: %w", opt, err)
			}
		case key == "dmask" && hasValue:
			if err := setMask(&cfg.Volume.Dmask, value); err != nil {
				return fmt.Errorf("invalid option %q: %w", opt, err)
			}
		case key == "fmask" && hasValue:
			if err := setMask(&cfg.Volume.Fmask, value); err != nil {
				return fmt.Errorf("invalid option %q: %w", opt, err)
			}
		case key == "uid" && hasValue:
			id, err := parseID(value)
			if err != nil {
				return fmt.Errorf("invalid option %q: %w", opt, err)
			}
			cfg.Volume.UID = id
		case key == "gid" && hasValue:
			id, err := parseID(value)
			if err != nil {
				return fmt.Errorf("invalid option %q: %w", opt, err)
			}
			cfg.Volume.GID = id
		default:
			return fmt.Errorf("invalid option %q", opt)
		}
	}
	return nil
}

func setMask(dst *string, value string) error {
	if _, err := config.ParseMask(value); err != nil {
		return err
	}
	*dst = value
	return nil
}

// parseID accepts the same octal or decimal spellings as masks.
func parseID(value string) (int64, error) {
	value = strings.TrimSpace(value)
	base := 10
	switch {
	case strings.HasPrefix(value, "0o") || strings.HasPrefix(value, "0O"):
		value, base = value[2:], 8
	case len(value) > 1 && value[0] == '0':
		value, base = value[1:], 8
	}

	id, err := strconv.ParseUint(value, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	return int64(id), nil
}

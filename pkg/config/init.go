package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoFUSE Configuration File
#
# Values here are overridden by DITTOFUSE_* environment variables
# (e.g. DITTOFUSE_LOGGING_LEVEL=DEBUG) and by mount command flags.
#
# volume.uid / volume.gid: -1 selects the mounting user.
# volume.umask / dmask / fmask: octal with a leading 0 or 0o.
# metadata.type: memory | badger   (badger needs metadata.badger.db_path)
# content.type:  memory | filesystem | s3
# logging.output: default writes to $DITTOFUSE_HOME/.dittofuse.log
`

// InitConfig writes a default config file to the default location and
// returns its path.
//
// Returns an error if the file exists and force is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default config file to path, creating parent
// directories.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML behind the explanatory header.
func generateYAMLWithComments(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var b strings.Builder
	b.WriteString(configHeader)
	b.WriteString("\n")
	b.Write(data)
	return b.String(), nil
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/dittofuse/internal/logger"
	"github.com/marmos91/dittofuse/pkg/config"
)

const logFileName = ".dittofuse.log"

// InitLogger initializes the structured logger from cfg, resolving the
// default output to the dittofuse log file.
func InitLogger(cfg *config.Config) error {
	output := cfg.Logging.Output
	if output == config.LogOutputDefault {
		output = DefaultLogFile()
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// DefaultLogFile returns $DITTOFUSE_HOME/.dittofuse.log, falling back to
// the home directory when DITTOFUSE_HOME is unset or not a directory.
func DefaultLogFile() string {
	if dir := os.Getenv("DITTOFUSE_HOME"); dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return filepath.Join(dir, logFileName)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return logFileName
	}
	return filepath.Join(home, logFileName)
}

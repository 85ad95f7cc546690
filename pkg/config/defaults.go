package config

import (
	"strings"
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultVolumeName      = "dittofuse"
	DefaultUmask           = "022"
	DefaultMaxWrite        = 128 * 1024
	DefaultMetricsPort     = 9090
	DefaultShutdownTimeout = 30 * time.Second

	// LogOutputDefault selects the dittofuse log file, resolved by the CLI.
	LogOutputDefault = "default"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// Store-specific defaults are handled by the store implementations.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyVolumeDefaults(&cfg.Volume)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyMountDefaults(&cfg.Mount)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = LogOutputDefault
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyVolumeDefaults(cfg *VolumeConfig) {
	if cfg.Name == "" {
		cfg.Name = DefaultVolumeName
	}
	if cfg.Umask == "" {
		cfg.Umask = DefaultUmask
	}
	// Zero is a valid uid, so "unset" is spelled -1 and resolved at mount.
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.MaxWrite == 0 {
		cfg.MaxWrite = DefaultMaxWrite
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Volume: VolumeConfig{UID: -1, GID: -1},
	}
	ApplyDefaults(cfg)
	return cfg
}

// Package config loads the DittoFUSE configuration.
//
// Configuration precedence (highest to lowest):
//  1. Command line flags applied by the mount command
//  2. Environment variables (DITTOFUSE_*)
//  3. Configuration file
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the root of the configuration file.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Volume describes the mounted volume
	Volume VolumeConfig `mapstructure:"volume" yaml:"volume" json:"volume"`

	// Metadata selects and configures the metadata store
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata" json:"metadata"`

	// Content selects and configures the content store
	Content ContentConfig `mapstructure:"content" yaml:"content" json:"content"`

	// Mount holds FUSE mount options
	Mount MountConfig `mapstructure:"mount" yaml:"mount" json:"mount"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" json:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, default (the dittofuse log file), or a file path
	Output string `mapstructure:"output" yaml:"output" json:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout bounds the unmount on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"required,gt=0"`
}

// VolumeConfig describes the volume presented through the mount.
//
// Masks are strings so that octal values survive YAML and environment
// parsing: "022" and "0o22" are octal, "18" is decimal.
type VolumeConfig struct {
	// Name is reported as the filesystem name (fsname)
	Name string `mapstructure:"name" yaml:"name" json:"name" validate:"required"`

	// ReadOnly refuses every mutation and forces the ro mount option
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only" json:"read_only"`

	// UID and GID own every node; -1 selects the mounting user
	UID int64 `mapstructure:"uid" yaml:"uid" json:"uid" validate:"gte=-1"`
	GID int64 `mapstructure:"gid" yaml:"gid" json:"gid" validate:"gte=-1"`

	// Umask applies to both files and directories unless overridden
	Umask string `mapstructure:"umask" yaml:"umask" json:"umask" validate:"omitempty,mask"`
	Dmask string `mapstructure:"dmask" yaml:"dmask,omitempty" json:"dmask,omitempty" validate:"omitempty,mask"`
	Fmask string `mapstructure:"fmask" yaml:"fmask,omitempty" json:"fmask,omitempty" validate:"omitempty,mask"`

	// NoAtime disables access time updates on read
	NoAtime bool `mapstructure:"noatime" yaml:"noatime" json:"noatime"`

	// CapacityBytes caps the reported and usable size; 0 asks the content store
	CapacityBytes uint64 `mapstructure:"capacity_bytes" yaml:"capacity_bytes" json:"capacity_bytes"`

	// MaxFiles caps the number of nodes; 0 means unlimited
	MaxFiles uint64 `mapstructure:"max_files" yaml:"max_files" json:"max_files"`
}

// MetadataConfig specifies the metadata store.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" json:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty" json:"memory,omitempty"`

	// Badger contains BadgerDB-specific configuration
	// Options: db_path, block_cache_mb, index_cache_mb
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty" json:"badger,omitempty"`
}

// ContentConfig specifies the content store.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" json:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific configuration
	// Options: path, fd_cache_size
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty" json:"filesystem,omitempty"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty" json:"memory,omitempty"`

	// S3 contains S3-specific configuration
	// Options: endpoint, region, bucket, key_prefix, access_key_id,
	// secret_access_key, force_path_style, max_retries,
	// requests_per_second, burst
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty" json:"s3,omitempty"`
}

// MountConfig holds FUSE mount options.
type MountConfig struct {
	AllowOther  bool `mapstructure:"allow_other" yaml:"allow_other" json:"allow_other"`
	AllowRoot   bool `mapstructure:"allow_root" yaml:"allow_root" json:"allow_root"`
	AutoUnmount bool `mapstructure:"auto_unmount" yaml:"auto_unmount" json:"auto_unmount"`
	NoExec      bool `mapstructure:"noexec" yaml:"noexec" json:"noexec"`
	DirSync     bool `mapstructure:"dirsync" yaml:"dirsync" json:"dirsync"`
	Sync        bool `mapstructure:"sync" yaml:"sync" json:"sync"`

	// MaxWrite is the largest write request the kernel sends, in bytes
	MaxWrite int `mapstructure:"max_write" yaml:"max_write" json:"max_write" validate:"gte=0"`

	// Debug is the request trace level: 0 off, 1 one line per request,
	// 2 adds request headers and go-fuse's own tracing
	Debug int `mapstructure:"debug" yaml:"debug" json:"debug" validate:"gte=0,lte=2"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: defaults and environment
// variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// search path.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOFUSE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOFUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// -1 selects the mounting user; zero would mean root.
	v.SetDefault("volume.uid", -1)
	v.SetDefault("volume.gid", -1)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the scalar settings that may come from the environment
// alone.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.shutdown_timeout",
	"volume.name", "volume.read_only", "volume.uid", "volume.gid",
	"volume.umask", "volume.dmask", "volume.fmask", "volume.noatime",
	"volume.capacity_bytes", "volume.max_files",
	"metadata.type", "content.type",
	"mount.allow_other", "mount.allow_root", "mount.auto_unmount",
	"mount.noexec", "mount.dirsync", "mount.sync", "mount.max_write", "mount.debug",
	"metrics.enabled", "metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// durationDecodeHook converts strings like "30s" and raw integers
// (nanoseconds) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/dittofuse, falling back to
// ~/.config/dittofuse and finally the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittofuse")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittofuse")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists reports whether a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

volume:
  name: "scratch"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != LogOutputDefault {
		t.Errorf("Expected default output %q, got %q", LogOutputDefault, cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Volume.Name != "scratch" {
		t.Errorf("Expected volume name 'scratch', got %q", cfg.Volume.Name)
	}
	if cfg.Volume.UID != -1 || cfg.Volume.GID != -1 {
		t.Errorf("Expected uid/gid -1 when unset, got %d/%d", cfg.Volume.UID, cfg.Volume.GID)
	}
	if cfg.Volume.Umask != DefaultUmask {
		t.Errorf("Expected default umask %q, got %q", DefaultUmask, cfg.Volume.Umask)
	}
	if cfg.Metadata.Type != "memory" || cfg.Content.Type != "memory" {
		t.Errorf("Expected memory stores by default, got %q/%q", cfg.Metadata.Type, cfg.Content.Type)
	}
	if cfg.Mount.MaxWrite != DefaultMaxWrite {
		t.Errorf("Expected default max_write %d, got %d", DefaultMaxWrite, cfg.Mount.MaxWrite)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Keep the user's own config directory out of the search path.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}
	if cfg.Volume.Name != DefaultVolumeName {
		t.Errorf("Expected default volume name, got %q", cfg.Volume.Name)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unterminated\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, `
server:
  shutdown_timeout: 5s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_UnquotedOctalUmask(t *testing.T) {
	// YAML reads 027 as the integer 23; the weak decode turns it back into
	// a decimal string with the same value.
	configPath := writeConfig(t, `
volume:
  umask: 027
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	mask, err := ParseMask(cfg.Volume.Umask)
	if err != nil {
		t.Fatalf("ParseMask(%q): %v", cfg.Volume.Umask, err)
	}
	if mask != 0o27 {
		t.Errorf("Expected umask 0o27, got %#o", mask)
	}
}

func TestLoad_StoreOptions(t *testing.T) {
	configPath := writeConfig(t, `
metadata:
  type: badger
  badger:
    db_path: /var/lib/dittofuse/meta
content:
  type: filesystem
  filesystem:
    path: /var/lib/dittofuse/blobs
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Metadata.Badger["db_path"] != "/var/lib/dittofuse/meta" {
		t.Errorf("Expected badger db_path, got %v", cfg.Metadata.Badger["db_path"])
	}
	if cfg.Content.Filesystem["path"] != "/var/lib/dittofuse/blobs" {
		t.Errorf("Expected filesystem path, got %v", cfg.Content.Filesystem["path"])
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
content:
  type: s3
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for s3 content without bucket")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTOFUSE_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOFUSE_VOLUME_UID", "1234")
	t.Setenv("DITTOFUSE_MOUNT_ALLOW_OTHER", "true")

	configPath := writeConfig(t, `
logging:
  level: "INFO"
volume:
  uid: 42
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Volume.UID != 1234 {
		t.Errorf("Expected uid 1234 from env var, got %d", cfg.Volume.UID)
	}
	if !cfg.Mount.AllowOther {
		t.Error("Expected allow_other from env var")
	}
}

func TestGetConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if got := GetConfigDir(); got != filepath.Join(xdg, "dittofuse") {
		t.Errorf("Expected %q, got %q", filepath.Join(xdg, "dittofuse"), got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(xdg, "dittofuse", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}

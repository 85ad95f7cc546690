//go:build e2e

package e2e

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/dittofuse/pkg/config"
)

// MetadataStoreType represents the type of metadata store
type MetadataStoreType string

const (
	MetadataMemory MetadataStoreType = "memory"
	MetadataBadger MetadataStoreType = "badger"
)

// ContentStoreType represents the type of content store
type ContentStoreType string

const (
	ContentMemory     ContentStoreType = "memory"
	ContentFilesystem ContentStoreType = "filesystem"
)

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name          string
	MetadataStore MetadataStoreType
	ContentStore  ContentStoreType
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.MetadataStore, tc.ContentStore)
}

// Persistent reports whether data survives an unmount.
func (tc *TestConfig) Persistent() bool {
	return tc.MetadataStore != MetadataMemory
}

// AppConfig builds the daemon configuration, keeping on-disk state under
// stateDir.
func (tc *TestConfig) AppConfig(stateDir string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Volume.Name = "e2e"

	cfg.Metadata.Type = string(tc.MetadataStore)
	if tc.MetadataStore == MetadataBadger {
		cfg.Metadata.Badger["db_path"] = filepath.Join(stateDir, "metadata")
	}

	cfg.Content.Type = string(tc.ContentStore)
	if tc.ContentStore == ContentFilesystem {
		cfg.Content.Filesystem["path"] = filepath.Join(stateDir, "content")
	}
	return cfg
}

// AllConfigurations returns every store combination under test.
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory", MetadataStore: MetadataMemory, ContentStore: ContentMemory},
		{Name: "badger-filesystem", MetadataStore: MetadataBadger, ContentStore: ContentFilesystem},
	}
}

// PersistentConfigurations returns the combinations that survive a remount.
func PersistentConfigurations() []*TestConfig {
	var out []*TestConfig
	for _, c := range AllConfigurations() {
		if c.Persistent() {
			out = append(out, c)
		}
	}
	return out
}

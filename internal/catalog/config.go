package catalog

import (
	"fmt"
	"os"
	"strings"
)

// Config locates the vendor list and the snapshot prefix in blob storage.
type Config struct {
	VendorsFile    string `toml:"vendors_file"`
	SnapshotPrefix string `toml:"snapshot_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	VendorsFile    string
	SnapshotPrefix string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.VendorsFile != "" {
		c.VendorsFile = overlay.VendorsFile
	}
	if overlay.SnapshotPrefix != "" {
		c.SnapshotPrefix = overlay.SnapshotPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.VendorsFile == "" {
		c.VendorsFile = "assets/vendor_list.csv"
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = "catalog"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.VendorsFile != "" {
		if v := os.Getenv(env.VendorsFile); v != "" {
			c.VendorsFile = v
		}
	}
	if env.SnapshotPrefix != "" {
		if v := os.Getenv(env.SnapshotPrefix); v != "" {
			c.SnapshotPrefix = v
		}
	}
}

func (c *Config) validate() error {
	c.SnapshotPrefix = strings.Trim(c.SnapshotPrefix, "/")
	if c.SnapshotPrefix == "" {
		return fmt.Errorf("snapshot_prefix must name a directory")
	}
	return nil
}

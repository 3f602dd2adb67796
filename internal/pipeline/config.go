package pipeline

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds the pipeline thresholds and posting policy.
type Config struct {
	// VendorThreshold and ItemThreshold are minimum fuzzy scores (0-100).
	VendorThreshold float64 `toml:"vendor_threshold"`
	ItemThreshold   float64 `toml:"item_threshold"`
	// MaterialityLimit is the grand total below which a document is an
	// outgoing payment rather than an invoice.
	MaterialityLimit string `toml:"materiality_limit"`
	// TaxCode is written on every invoice line.
	TaxCode string `toml:"tax_code"`
	// AutoPost posts the invoice at the end of Process.
	AutoPost bool `toml:"auto_post"`

	materiality decimal.Decimal
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	VendorThreshold  string
	ItemThreshold    string
	MaterialityLimit string
	TaxCode          string
	AutoPost         string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. AutoPost only applies when set.
func (c *Config) Merge(overlay *Config) {
	if overlay.VendorThreshold != 0 {
		c.VendorThreshold = overlay.VendorThreshold
	}
	if overlay.ItemThreshold != 0 {
		c.ItemThreshold = overlay.ItemThreshold
	}
	if overlay.MaterialityLimit != "" {
		c.MaterialityLimit = overlay.MaterialityLimit
	}
	if overlay.TaxCode != "" {
		c.TaxCode = overlay.TaxCode
	}
	if overlay.AutoPost {
		c.AutoPost = true
	}
}

// Materiality returns the parsed MaterialityLimit. Valid after Finalize.
func (c *Config) Materiality() decimal.Decimal {
	return c.materiality
}

func (c *Config) loadDefaults() {
	if c.VendorThreshold == 0 {
		c.VendorThreshold = 80
	}
	if c.ItemThreshold == 0 {
		c.ItemThreshold = 80
	}
	if c.MaterialityLimit == "" {
		c.MaterialityLimit = "2000"
	}
	if c.TaxCode == "" {
		c.TaxCode = "VAT13"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.VendorThreshold != "" {
		if v := os.Getenv(env.VendorThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.VendorThreshold = f
			}
		}
	}
	if env.ItemThreshold != "" {
		if v := os.Getenv(env.ItemThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.ItemThreshold = f
			}
		}
	}
	if env.MaterialityLimit != "" {
		if v := os.Getenv(env.MaterialityLimit); v != "" {
			c.MaterialityLimit = v
		}
	}
	if env.TaxCode != "" {
		if v := os.Getenv(env.TaxCode); v != "" {
			c.TaxCode = v
		}
	}
	if env.AutoPost != "" {
		if v := os.Getenv(env.AutoPost); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AutoPost = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.VendorThreshold < 0 || c.VendorThreshold > 100 {
		return fmt.Errorf("vendor_threshold must be between 0 and 100")
	}
	if c.ItemThreshold < 0 || c.ItemThreshold > 100 {
		return fmt.Errorf("item_threshold must be between 0 and 100")
	}

	limit, err := decimal.NewFromString(c.MaterialityLimit)
	if err != nil {
		return fmt.Errorf("invalid materiality_limit: %w", err)
	}
	c.materiality = limit

	if c.TaxCode == "" {
		return fmt.Errorf("tax_code required")
	}
	return nil
}

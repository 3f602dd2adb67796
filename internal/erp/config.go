package erp

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/JaimeStill/tally/pkg/throttle"
)

// Config holds the Service Layer connection and call policy.
type Config struct {
	BaseURL            string          `toml:"base_url"`
	CompanyDB          string          `toml:"company_db"`
	Username           string          `toml:"username"`
	Password           string          `toml:"password"`
	InsecureSkipVerify bool            `toml:"insecure_skip_verify"`
	Throttle           throttle.Config `toml:"throttle"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL            string
	CompanyDB          string
	Username           string
	Password           string
	InsecureSkipVerify string
	Throttle           *throttle.Env
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if err := c.validate(); err != nil {
		return err
	}

	var throttleEnv *throttle.Env
	if env != nil {
		throttleEnv = env.Throttle
	}
	if err := c.Throttle.Finalize(throttleEnv); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay. InsecureSkipVerify only
// applies when set.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.CompanyDB != "" {
		c.CompanyDB = overlay.CompanyDB
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.InsecureSkipVerify {
		c.InsecureSkipVerify = true
	}
	c.Throttle.Merge(&overlay.Throttle)
}

func (c *Config) loadDefaults() {
	if c.Throttle.RequestsPerSecond == 0 {
		c.Throttle.RequestsPerSecond = 5
	}
	if c.Throttle.Burst == 0 {
		c.Throttle.Burst = 2
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.CompanyDB != "" {
		if v := os.Getenv(env.CompanyDB); v != "" {
			c.CompanyDB = v
		}
	}
	if env.Username != "" {
		if v := os.Getenv(env.Username); v != "" {
			c.Username = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.InsecureSkipVerify != "" {
		if v := os.Getenv(env.InsecureSkipVerify); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.InsecureSkipVerify = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %s", c.BaseURL)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.CompanyDB == "" {
		return fmt.Errorf("company_db required")
	}
	if c.Username == "" {
		return fmt.Errorf("username required")
	}
	return nil
}

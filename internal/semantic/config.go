package semantic

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/tally/pkg/throttle"
)

// Fallback environment variables read by the Gemini tooling.
var apiKeyFallbacks = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

// Config holds generative model settings.
type Config struct {
	APIKey      string          `toml:"api_key"`
	Model       string          `toml:"model"`
	Temperature float64         `toml:"temperature"`
	Throttle    throttle.Config `toml:"throttle"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	APIKey      string
	Model       string
	Temperature string
	Throttle    *throttle.Env
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if c.APIKey == "" {
		for _, name := range apiKeyFallbacks {
			if v := os.Getenv(name); v != "" {
				c.APIKey = v
				break
			}
		}
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

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	c.Throttle.Merge(&overlay.Throttle)
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash-lite"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.Throttle.RequestsPerSecond == 0 {
		c.Throttle.RequestsPerSecond = 0.5
	}
	if c.Throttle.InitialInterval == "" {
		c.Throttle.InitialInterval = "2s"
	}
	if c.Throttle.MaxInterval == "" {
		c.Throttle.MaxInterval = "30s"
	}
	if c.Throttle.Timeout == "" {
		c.Throttle.Timeout = "60s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Temperature != "" {
		if v := os.Getenv(env.Temperature); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Temperature = f
			}
		}
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v", c.Temperature)
	}
	return nil
}

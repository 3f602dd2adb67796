package storage

import (
	"fmt"
	"os"
	"strings"
)

// Config selects the account and container. ConnectionString takes
// precedence over ServiceURL.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
}

// Finalize applies defaults, environment overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "tally"
	}
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-empty fields from overlay.
func (c *Config) Merge(overlay *Config) {
	for dst, src := range c.fields(overlay) {
		if src != "" {
			*dst = src
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	names := map[*string]string{
		&c.ContainerName:    env.ContainerName,
		&c.ConnectionString: env.ConnectionString,
		&c.ServiceURL:       env.ServiceURL,
	}
	for dst, name := range names {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) fields(o *Config) map[*string]string {
	return map[*string]string{
		&c.ContainerName:    o.ContainerName,
		&c.ConnectionString: o.ConnectionString,
		&c.ServiceURL:       o.ServiceURL,
	}
}

func (c *Config) validate() error {
	if err := validContainerName(c.ContainerName); err != nil {
		return err
	}
	if c.ConnectionString == "" && c.ServiceURL == "" {
		return fmt.Errorf("connection_string or service_url required")
	}
	return nil
}

// validContainerName applies the Azure naming rules: 3 to 63 lowercase
// letters, digits, or hyphens, starting and ending alphanumeric, with no
// consecutive hyphens.
func validContainerName(name string) error {
	if name == "" {
		return fmt.Errorf("container_name required")
	}
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("container_name %q must be 3-63 characters", name)
	}
	if name[0] == '-' || name[len(name)-1] == '-' || strings.Contains(name, "--") {
		return fmt.Errorf("container_name %q has a misplaced hyphen", name)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return fmt.Errorf("container_name %q must be lowercase alphanumeric", name)
		}
	}
	return nil
}

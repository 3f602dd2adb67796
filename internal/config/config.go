package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/storage"
	"github.com/JaimeStill/tally/pkg/throttle"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvTallyEnv             = "TALLY_ENV"
	EnvTallyShutdownTimeout = "TALLY_SHUTDOWN_TIMEOUT"
	EnvTallyVersion         = "TALLY_VERSION"
)

// DatabaseEnv is shared with cmd/migrate, which builds its URL from the
// same variables when no DSN is given.
var DatabaseEnv = &database.Env{
	Host:             "TALLY_DB_HOST",
	Port:             "TALLY_DB_PORT",
	Name:             "TALLY_DB_NAME",
	User:             "TALLY_DB_USER",
	Password:         "TALLY_DB_PASSWORD",
	SSLMode:          "TALLY_DB_SSL_MODE",
	ApplicationName:  "TALLY_DB_APPLICATION_NAME",
	StatementTimeout: "TALLY_DB_STATEMENT_TIMEOUT",
	MaxOpenConns:     "TALLY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:     "TALLY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "TALLY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:      "TALLY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "TALLY_STORAGE_CONTAINER_NAME",
	ConnectionString: "TALLY_STORAGE_CONNECTION_STRING",
	ServiceURL:       "TALLY_STORAGE_SERVICE_URL",
}

var erpEnv = &erp.Env{
	BaseURL:            "TALLY_ERP_BASE_URL",
	CompanyDB:          "TALLY_ERP_COMPANY_DB",
	Username:           "TALLY_ERP_USERNAME",
	Password:           "TALLY_ERP_PASSWORD",
	InsecureSkipVerify: "TALLY_ERP_INSECURE_SKIP_VERIFY",
	Throttle:           throttleEnv("TALLY_ERP"),
}

var agentEnv = &semantic.Env{
	APIKey:      "TALLY_AGENT_API_KEY",
	Model:       "TALLY_AGENT_MODEL",
	Temperature: "TALLY_AGENT_TEMPERATURE",
	Throttle:    throttleEnv("TALLY_AGENT"),
}

var pipelineEnv = &pipeline.Env{
	VendorThreshold:  "TALLY_PIPELINE_VENDOR_THRESHOLD",
	ItemThreshold:    "TALLY_PIPELINE_ITEM_THRESHOLD",
	MaterialityLimit: "TALLY_PIPELINE_MATERIALITY_LIMIT",
	TaxCode:          "TALLY_PIPELINE_TAX_CODE",
	AutoPost:         "TALLY_PIPELINE_AUTO_POST",
}

var catalogEnv = &catalog.Env{
	VendorsFile:    "TALLY_CATALOG_VENDORS_FILE",
	SnapshotPrefix: "TALLY_CATALOG_SNAPSHOT_PREFIX",
}

func throttleEnv(prefix string) *throttle.Env {
	return &throttle.Env{
		RequestsPerSecond: prefix + "_REQUESTS_PER_SECOND",
		Burst:             prefix + "_BURST",
		MaxRetries:        prefix + "_MAX_RETRIES",
		InitialInterval:   prefix + "_INITIAL_INTERVAL",
		MaxInterval:       prefix + "_MAX_INTERVAL",
		Timeout:           prefix + "_TIMEOUT",
	}
}

// Config is the root configuration for the Tally service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	ERP             erp.Config      `toml:"erp"`
	Agent           semantic.Config `toml:"agent"`
	Pipeline        pipeline.Config `toml:"pipeline"`
	Catalog         catalog.Config  `toml:"catalog"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the TALLY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.ERP.Merge(&overlay.ERP)
	c.Agent.Merge(&overlay.Agent)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Catalog.Merge(&overlay.Catalog)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(DatabaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.ERP.Finalize(erpEnv); err != nil {
		return fmt.Errorf("erp: %w", err)
	}
	if err := c.Agent.Finalize(agentEnv); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Pipeline.Finalize(pipelineEnv); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Catalog.Finalize(catalogEnv); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvTallyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvTallyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

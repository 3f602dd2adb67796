package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/tally/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080

[database]
host = "localhost"
name = "tally"
user = "tally"
password = "tally"

[storage]
container_name = "tally"
connection_string = "UseDevelopmentStorage=true"

[api]
base_path = "/api"

[erp]
base_url = "https://erp.local:50000/b1s/v1"
company_db = "SBODEMO"
username = "manager"
password = "secret"

[erp.throttle]
requests_per_second = 4

[agent]
api_key = "test-key"
model = "gemini-2.0-flash-lite"

[pipeline]
vendor_threshold = 85
materiality_limit = "2500"

[catalog]
vendors_file = "vendors.csv"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[pipeline]
auto_post = true
`

const minimalConfig = `
[database]
name = "tally"
user = "tally"

[storage]
connection_string = "conn"

[erp]
base_url = "https://erp.local/b1s/v1/"
company_db = "SBODEMO"
username = "manager"

[agent]
api_key = "test-key"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.API.BasePath != "/api" {
		t.Errorf("api base_path: got %s, want /api", cfg.API.BasePath)
	}
	if cfg.ERP.BaseURL != "https://erp.local:50000/b1s/v1/" {
		t.Errorf("erp base_url: got %s, want trailing slash", cfg.ERP.BaseURL)
	}
	if cfg.ERP.Throttle.RequestsPerSecond != 4 {
		t.Errorf("erp requests_per_second: got %v, want 4", cfg.ERP.Throttle.RequestsPerSecond)
	}
	if cfg.Pipeline.VendorThreshold != 85 {
		t.Errorf("vendor threshold: got %v, want 85", cfg.Pipeline.VendorThreshold)
	}
	if cfg.Pipeline.ItemThreshold != 80 {
		t.Errorf("item threshold: got %v, want default 80", cfg.Pipeline.ItemThreshold)
	}
	if got := cfg.Pipeline.Materiality().String(); got != "2500" {
		t.Errorf("materiality: got %s, want 2500", got)
	}
	if cfg.Pipeline.AutoPost {
		t.Error("auto_post should default to false")
	}
	if cfg.Catalog.VendorsFile != "vendors.csv" {
		t.Errorf("vendors_file: got %s, want vendors.csv", cfg.Catalog.VendorsFile)
	}
	if cfg.Catalog.SnapshotPrefix != "catalog" {
		t.Errorf("snapshot_prefix: got %s, want catalog", cfg.Catalog.SnapshotPrefix)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv(config.EnvTallyEnv, "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "staging" {
		t.Errorf("env: got %s, want staging", cfg.Env())
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost", cfg.Database.Host)
	}
	if cfg.Database.Name != "tally" {
		t.Errorf("db name: got %s, want tally (base preserved)", cfg.Database.Name)
	}
	if !cfg.Pipeline.AutoPost {
		t.Error("auto_post: overlay should enable it")
	}
	if cfg.Pipeline.VendorThreshold != 85 {
		t.Errorf("vendor threshold: got %v, want 85 (base preserved)", cfg.Pipeline.VendorThreshold)
	}
}

func TestLoadMissingOverlayIgnored(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, minimalConfig)
	chdir(t, dir)

	t.Setenv(config.EnvTallyEnv, "production")

	if _, err := config.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, minimalConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout: got %s, want 30s", cfg.ShutdownTimeoutDuration())
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	read, header, write, idle := cfg.Server.Timeouts()
	if read != 30*time.Second || header != 10*time.Second || write != 10*time.Minute || idle != 2*time.Minute {
		t.Errorf("timeouts: got %s %s %s %s", read, header, write, idle)
	}
	if cfg.Storage.ContainerName != "tally" {
		t.Errorf("storage container: got %s, want tally", cfg.Storage.ContainerName)
	}
	if cfg.Pipeline.TaxCode != "VAT13" {
		t.Errorf("tax code: got %s, want VAT13", cfg.Pipeline.TaxCode)
	}
	if cfg.Catalog.VendorsFile != "assets/vendor_list.csv" {
		t.Errorf("vendors_file: got %s", cfg.Catalog.VendorsFile)
	}
	if cfg.API.CORS.Enabled {
		t.Error("cors should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, minimalConfig)
	chdir(t, dir)

	t.Setenv("TALLY_SERVER_PORT", "7070")
	t.Setenv("TALLY_DB_HOST", "envhost")
	t.Setenv("TALLY_ERP_PASSWORD", "from-env")
	t.Setenv("TALLY_ERP_MAX_RETRIES", "7")
	t.Setenv("TALLY_AGENT_MODEL", "gemini-2.5-flash")
	t.Setenv("TALLY_PIPELINE_ITEM_THRESHOLD", "90")
	t.Setenv("TALLY_PIPELINE_AUTO_POST", "true")
	t.Setenv("TALLY_CATALOG_SNAPSHOT_PREFIX", "/reference/")
	t.Setenv("TALLY_API_BASE_PATH", "/v1")
	t.Setenv("TALLY_VERSION", "2.0.0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("server port: got %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Host != "envhost" {
		t.Errorf("db host: got %s, want envhost", cfg.Database.Host)
	}
	if cfg.ERP.Password != "from-env" {
		t.Errorf("erp password: got %s, want from-env", cfg.ERP.Password)
	}
	if cfg.ERP.Throttle.MaxRetries != 7 {
		t.Errorf("erp max_retries: got %d, want 7", cfg.ERP.Throttle.MaxRetries)
	}
	if cfg.Agent.Model != "gemini-2.5-flash" {
		t.Errorf("agent model: got %s", cfg.Agent.Model)
	}
	if cfg.Pipeline.ItemThreshold != 90 {
		t.Errorf("item threshold: got %v, want 90", cfg.Pipeline.ItemThreshold)
	}
	if !cfg.Pipeline.AutoPost {
		t.Error("auto_post: env should enable it")
	}
	if cfg.Catalog.SnapshotPrefix != "reference" {
		t.Errorf("snapshot prefix: got %s, want reference", cfg.Catalog.SnapshotPrefix)
	}
	if cfg.API.BasePath != "/v1" {
		t.Errorf("base path: got %s, want /v1", cfg.API.BasePath)
	}
	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid toml",
			content: "[server\nport = 1",
			wantErr: "parse config",
		},
		{
			name:    "invalid shutdown timeout",
			content: minimalConfig,
			env:     map[string]string{config.EnvTallyShutdownTimeout: "soon"},
			wantErr: "shutdown_timeout",
		},
		{
			name:    "invalid port",
			content: minimalConfig,
			env:     map[string]string{"TALLY_SERVER_PORT": "70000"},
			wantErr: "server: invalid port",
		},
		{
			name:    "invalid write timeout",
			content: minimalConfig,
			env:     map[string]string{"TALLY_SERVER_WRITE_TIMEOUT": "forever"},
			wantErr: "write_timeout",
		},
		{
			name:    "invalid base path",
			content: minimalConfig,
			env:     map[string]string{"TALLY_API_BASE_PATH": "api"},
			wantErr: "api: base_path",
		},
		{
			name:    "invalid materiality",
			content: minimalConfig,
			env:     map[string]string{"TALLY_PIPELINE_MATERIALITY_LIMIT": "lots"},
			wantErr: "pipeline:",
		},
		{
			name:    "missing erp",
			content: strings.Replace(minimalConfig, `base_url = "https://erp.local/b1s/v1/"`, "", 1),
			env:     map[string]string{"TALLY_ERP_BASE_URL": ""},
			wantErr: "erp: base_url required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, config.BaseConfigFile, tt.content)
			chdir(t, dir)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/api"
	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/semantic"
	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/middleware"
	"github.com/JaimeStill/tally/pkg/module"
	"github.com/JaimeStill/tally/pkg/storage/storagetest"
)

type fakeERP struct{}

func (fakeERP) Login(context.Context) error { return nil }

func (fakeERP) Items(context.Context) ([]erp.Item, error) {
	return []erp.Item{{ItemCode: "A0001", ItemName: "Printer Paper A4"}}, nil
}

func (fakeERP) ItemGroups(context.Context) ([]erp.ItemGroup, error) { return nil, nil }
func (fakeERP) UoMGroups(context.Context) ([]erp.UoMGroup, error)   { return nil, nil }

func (fakeERP) Accounts(context.Context) ([]erp.Account, error) {
	return []erp.Account{{Code: "620000", Name: "IT Expenses"}}, nil
}

func (fakeERP) DistributionRules(context.Context) ([]erp.DistributionRule, error) {
	return nil, nil
}

func (fakeERP) CreateItem(context.Context, erp.NewItem) (*erp.CreatedItem, error) {
	return nil, erp.ErrNotCreated
}

func (fakeERP) PostInvoice(context.Context, erp.Invoice) (*erp.PostedInvoice, error) {
	return nil, erp.ErrNotCreated
}

type fakeResolver struct{}

func (fakeResolver) Generate(context.Context, semantic.Request) (string, error) {
	return "", semantic.ErrEmptyResponse
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	vendors := filepath.Join(t.TempDir(), "vendors.csv")
	require.NoError(t, os.WriteFile(vendors, []byte("Vendor name,Vendor id\nHimalayan Traders,V0002\n"), 0o644))

	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "tally",
			User:            "tally",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "1s",
		},
		API: config.APIConfig{
			BasePath: "/api",
			CORS:     middleware.CORSConfig{Enabled: false},
		},
		Pipeline: pipeline.Config{VendorThreshold: 80, ItemThreshold: 80, MaterialityLimit: "2000", TaxCode: "VAT13"},
		Catalog:  catalog.Config{VendorsFile: vendors, SnapshotPrefix: "catalog"},
		Version:  "0.1.0",
	}
}

func testRuntime(t *testing.T, cfg *config.Config) (*api.Runtime, *storagetest.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.New(&cfg.Database, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Connection().Close() })

	store := &storagetest.Memory{}
	return &api.Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: lifecycle.New(),
			Logger:    logger,
			Metrics:   infrastructure.NewRegistry(),
			Database:  db,
			Storage:   store,
		},
		ERP:      fakeERP{},
		Resolver: fakeResolver{},
	}, store
}

func serve(m *module.Module, method, path string) *httptest.ResponseRecorder {
	router := module.NewRouter()
	if err := router.Mount(m); err != nil {
		panic(err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewModule(t *testing.T) {
	cfg := testConfig(t)
	runtime, _ := testRuntime(t, cfg)

	m, domain, err := api.NewModule(cfg, runtime)
	require.NoError(t, err)

	assert.Equal(t, "/api", m.Prefix())
	assert.NotNil(t, domain.Documents)
	assert.NotNil(t, domain.Catalog)
	assert.NotNil(t, domain.Pipeline)
	assert.Empty(t, domain.Catalog.Catalog().Vendors())
}

func TestCatalogRefreshRoute(t *testing.T) {
	cfg := testConfig(t)
	runtime, store := testRuntime(t, cfg)

	m, domain, err := api.NewModule(cfg, runtime)
	require.NoError(t, err)

	rec := serve(m, http.MethodPost, "/api/catalog/refresh")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary catalog.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Vendors)
	assert.Equal(t, 1, summary.Items)
	assert.Equal(t, 1, summary.Accounts)

	assert.Len(t, domain.Catalog.Catalog().Vendors(), 1)
	assert.Contains(t, store.Keys(), "catalog/latest/items.json")

	n, err := testutil.GatherAndCount(runtime.Metrics, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoutesRegistered(t *testing.T) {
	cfg := testConfig(t)
	runtime, _ := testRuntime(t, cfg)

	m, _, err := api.NewModule(cfg, runtime)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"find invalid id", http.MethodGet, "/api/documents/abc", http.StatusBadRequest},
		{"classify invalid id", http.MethodPost, "/api/documents/0/classify", http.StatusBadRequest},
		{"vendor invalid id", http.MethodPost, "/api/documents/x/vendor", http.StatusBadRequest},
		{"items invalid id", http.MethodPost, "/api/documents/x/items", http.StatusBadRequest},
		{"process invalid id", http.MethodPost, "/api/documents/x/process", http.StatusBadRequest},
		{"invoice invalid id", http.MethodGet, "/api/documents/x/invoice", http.StatusBadRequest},
		{"post invalid id", http.MethodPost, "/api/documents/x/post", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(m, tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestNewModuleDuplicateMetrics(t *testing.T) {
	cfg := testConfig(t)
	runtime, _ := testRuntime(t, cfg)

	_, _, err := api.NewModule(cfg, runtime)
	require.NoError(t, err)

	_, _, err = api.NewModule(cfg, runtime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics middleware")
}

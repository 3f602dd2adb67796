// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/middleware"
	"github.com/JaimeStill/tally/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned Domain gives the server access to the catalog for the
// startup refresh.
func NewModule(cfg *config.Config, runtime *Runtime) (*module.Module, *Domain, error) {
	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, nil, fmt.Errorf("domain init failed: %w", err)
	}

	mux := http.NewServeMux()
	patterns := registerRoutes(mux, domain)
	runtime.Logger.Debug("routes registered", "count", len(patterns))

	metrics, err := middleware.Metrics(runtime.Metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics middleware: %w", err)
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(metrics)

	return m, domain, nil
}

package main

import (
	"context"
	"time"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
)

type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	infra.Logger.Info(
		"tally starting",
		"version", cfg.Version,
		"env", cfg.Env(),
	)

	modules, err := NewModules(ctx, infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	if err := modules.Mount(router); err != nil {
		return nil, err
	}

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"modules", router.Prefixes(),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(cfg, router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}
	s.modules.Domain.Catalog.Start(s.infra.Lifecycle)

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("startup hooks complete")
		s.loadCatalog(s.infra.Lifecycle.Context())
	}()

	return nil
}

// loadCatalog runs the initial catalog refresh once storage is reachable so
// a snapshot can be restored if the ERP reads fail. Until a refresh
// succeeds, /readyz reports the catalog as pending and item resolution
// skips every line; POST /api/catalog/refresh retries it.
func (s *Server) loadCatalog(ctx context.Context) {
	summary, err := s.modules.Domain.Catalog.Refresh(ctx)
	if err != nil {
		s.infra.Logger.Error("initial catalog load failed", "error", err)
		return
	}
	s.infra.Logger.Info(
		"catalog loaded",
		"items", summary.Items,
		"vendors", summary.Vendors,
		"restored", summary.Restored,
	)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	err := s.infra.Lifecycle.Shutdown(timeout)
	s.infra.Logger.Info("tally stopped")
	return err
}

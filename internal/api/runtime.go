package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/erp"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/internal/semantic"
)

// Runtime extends Infrastructure with the external systems the pipeline
// calls: the ERP Service Layer and the generative model.
type Runtime struct {
	*infrastructure.Infrastructure
	ERP      erp.System
	Resolver semantic.System
}

// NewRuntime creates an API runtime with a module-scoped logger. It logs in
// to the ERP; a login failure is returned and should stop the service.
func NewRuntime(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	logger := infra.Logger.With("module", "api")

	gateway, err := erp.New(ctx, &cfg.ERP, logger, erp.WithRegisterer(infra.Metrics))
	if err != nil {
		return nil, fmt.Errorf("erp init failed: %w", err)
	}

	resolver, err := semantic.New(ctx, &cfg.Agent, logger, semantic.WithRegisterer(infra.Metrics))
	if err != nil {
		return nil, fmt.Errorf("semantic init failed: %w", err)
	}

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    logger,
			Telemetry: infra.Telemetry,
			Metrics:   infra.Metrics,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		ERP:      gateway,
		Resolver: resolver,
	}, nil
}

package api

import (
	"github.com/JaimeStill/tally/internal/catalog"
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/pipeline"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents documents.System
	Catalog   catalog.System
	Pipeline  pipeline.System
}

// NewDomain creates all domain systems from the API runtime. The pipeline
// shares the catalog system's live catalog, so a refresh is visible to the
// next stage run.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Logger,
	)

	catalogSystem := catalog.NewSystem(
		&cfg.Catalog,
		runtime.ERP,
		runtime.Storage,
		runtime.Logger,
	)

	pipelineSystem, err := pipeline.New(&pipeline.Runtime{
		Documents: docsSystem,
		Gateway:   runtime.ERP,
		Resolver:  runtime.Resolver,
		Catalog:   catalogSystem.Catalog(),
		Storage:   runtime.Storage,
		Metrics:   runtime.Metrics,
		Rules:     pipeline.DefaultRules,
		Config:    &cfg.Pipeline,
		Logger:    runtime.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Domain{
		Documents: docsSystem,
		Catalog:   catalogSystem,
		Pipeline:  pipelineSystem,
	}, nil
}

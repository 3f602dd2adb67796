package api

import (
	"net/http"

	"github.com/JaimeStill/tally/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) []string {
	return routes.Register(
		mux,
		domain.Documents.Handler().Routes(),
		domain.Pipeline.Handler().Routes(),
		domain.Catalog.Handler().Routes(),
	)
}

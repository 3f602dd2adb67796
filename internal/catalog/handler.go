package catalog

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/routes"
)

// Handler provides HTTP endpoints for catalog maintenance.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "catalog"),
	}
}

// Routes returns the route group definition for catalog endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/catalog",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/refresh", Handler: h.Refresh},
		},
	}
}

// Refresh reloads the catalog from the ERP and the vendor list.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sys.Refresh(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, summary)
}

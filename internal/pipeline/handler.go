package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/routes"
)

// Handler exposes the stages over HTTP. Stage requests run on a context
// detached from the client so a disconnect does not abort a started run.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "pipeline"),
	}
}

// Routes returns the route group definition for pipeline endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/classify", Handler: h.Classify},
			{Method: "POST", Pattern: "/{id}/vendor", Handler: h.ResolveVendor},
			{Method: "POST", Pattern: "/{id}/items", Handler: h.ResolveItems},
			{Method: "POST", Pattern: "/{id}/process", Handler: h.Process},
			{Method: "GET", Pattern: "/{id}/invoice", Handler: h.Invoice},
			{Method: "POST", Pattern: "/{id}/post", Handler: h.Post},
		},
	}
}

type classifyResponse struct {
	ID    int64 `json:"id"`
	Label Label `json:"label"`
	Known bool  `json:"known"`
}

type itemsResponse struct {
	ID       int64     `json:"id"`
	Outcomes []Outcome `json:"outcomes"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	id, ctx, ok := h.begin(w, r)
	if !ok {
		return
	}

	label, err := h.sys.Classify(ctx, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, classifyResponse{ID: id, Label: label, Known: label.Known()})
}

func (h *Handler) ResolveVendor(w http.ResponseWriter, r *http.Request) {
	id, ctx, ok := h.begin(w, r)
	if !ok {
		return
	}

	o := h.sys.ResolveVendor(ctx, id)
	if notFound(o) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, o.Err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, o)
}

func (h *Handler) ResolveItems(w http.ResponseWriter, r *http.Request) {
	id, ctx, ok := h.begin(w, r)
	if !ok {
		return
	}

	outcomes := h.sys.ResolveItems(ctx, id)
	if len(outcomes) == 1 && notFound(outcomes[0]) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, outcomes[0].Err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, itemsResponse{ID: id, Outcomes: outcomes})
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	id, ctx, ok := h.begin(w, r)
	if !ok {
		return
	}

	report, err := h.sys.Process(ctx, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, report)
}

// Invoice previews the payload Post would send.
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, err := documents.ParseID(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	inv, err := h.sys.Invoice(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, inv)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, ctx, ok := h.begin(w, r)
	if !ok {
		return
	}

	posted, err := h.sys.Post(ctx, id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, posted)
}

// begin parses the document id and detaches the request context.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (int64, context.Context, bool) {
	id, err := documents.ParseID(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return 0, nil, false
	}
	return id, context.WithoutCancel(r.Context()), true
}

func notFound(o Outcome) bool {
	return o.Status == StatusFailed && errors.Is(o.Err, documents.ErrNotFound)
}

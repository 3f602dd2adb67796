package documents_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/pkg/routes"
)

type mockSystem struct {
	findFn func(ctx context.Context, id int64, fields ...string) (*documents.Document, error)
}

func (m *mockSystem) Handler() *documents.Handler { return nil }

func (m *mockSystem) Find(ctx context.Context, id int64, fields ...string) (*documents.Document, error) {
	return m.findFn(ctx, id, fields...)
}

func (m *mockSystem) Update(context.Context, int64, int, documents.FieldSet) (int, error) {
	return 0, nil
}

func setupMux(sys documents.System) *http.ServeMux {
	h := documents.NewHandler(sys, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes())
	return mux
}

func TestHandlerFind(t *testing.T) {
	var gotFields []string
	sys := &mockSystem{
		findFn: func(_ context.Context, id int64, fields ...string) (*documents.Document, error) {
			gotFields = fields
			label := "ap_invoice"
			return &documents.Document{ID: id, Classification: &label, Version: 2}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/documents/12?fields=classification,%20version", nil)
	setupMux(sys).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"classification", "version"}, gotFields)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(12), body["id"])
	assert.Equal(t, "ap_invoice", body["classification"])
}

func TestHandlerFindErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"non-numeric id", "/documents/abc", nil, http.StatusBadRequest},
		{"zero id", "/documents/0", nil, http.StatusBadRequest},
		{"missing document", "/documents/5", documents.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(context.Context, int64, ...string) (*documents.Document, error) {
					return nil, tt.err
				},
			}

			rec := httptest.NewRecorder()
			setupMux(sys).ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/tally/pkg/routes"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	patterns := routes.Register(mux, routes.Group{
		Prefix: "/documents",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: ok},
			{Method: "POST", Pattern: "/{id}/classify", Handler: ok},
		},
	})

	if len(patterns) != 2 || patterns[0] != "GET /documents/{id}" || patterns[1] != "POST /documents/{id}/classify" {
		t.Errorf("patterns: got %v", patterns)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"get document", "GET", "/documents/12", http.StatusOK},
		{"classify document", "POST", "/documents/12/classify", http.StatusOK},
		{"wrong method", "GET", "/documents/12/classify", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	patterns := routes.Register(mux, routes.Group{
		Prefix: "/catalog",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: ok},
		},
		Children: []routes.Group{
			{
				Prefix: "/refresh",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: ok},
				},
			},
		},
	})

	if len(patterns) != 2 || patterns[1] != "POST /catalog/refresh" {
		t.Errorf("patterns: got %v", patterns)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/catalog/refresh", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

package module_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/JaimeStill/tally/pkg/module"
)

// echo writes the path the inner mux saw.
func echo(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, r.URL.Path)
}

func TestNewPrefix(t *testing.T) {
	tests := []struct {
		prefix    string
		wantPanic bool
	}{
		{"/api", false},
		{"/ops", false},
		{"", true},
		{"api", true},
		{"/api/v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			defer func() {
				if r := recover(); (r != nil) != tt.wantPanic {
					t.Errorf("panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()
			if m := module.New(tt.prefix, http.NewServeMux()); m.Prefix() != tt.prefix {
				t.Errorf("prefix: got %s, want %s", m.Prefix(), tt.prefix)
			}
		})
	}
}

func TestServeStripsPrefix(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/{id}", echo)
	mux.HandleFunc("GET /{$}", echo)

	m := module.New("/api", mux)

	tests := []struct {
		path string
		want string
	}{
		{"/api/documents/42", "/documents/42"},
		{"/api", "/"},
		{"/api/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.Serve(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("inner path: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMiddlewareOrderAndPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents/{id}/process", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	m := module.New("/api", mux)

	var order []string
	patterns := map[string]string{}
	record := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
				patterns[name] = r.Pattern
			})
		}
	}
	m.Use(record("cors"), record("logger"))
	m.Use(record("metrics"))

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest(http.MethodPost, "/api/documents/7/process", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rec.Code)
	}
	if want := []string{"cors", "logger", "metrics"}; !slices.Equal(order, want) {
		t.Errorf("order: got %v, want %v", order, want)
	}
	for name, p := range patterns {
		if p != "POST /documents/{id}/process" {
			t.Errorf("%s saw pattern %q", name, p)
		}
	}
}

func TestUseAfterServePanics(t *testing.T) {
	m := module.New("/api", http.NewServeMux())
	m.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api", nil))

	defer func() {
		if recover() == nil {
			t.Error("expected panic when adding middleware after first request")
		}
	}()
	m.Use(func(next http.Handler) http.Handler { return next })
}

func TestRouter(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /catalog", echo)

	ops := http.NewServeMux()
	ops.HandleFunc("GET /", echo)

	router := module.NewRouter()
	for _, m := range []*module.Module{module.New("/api", api), module.New("/ops", ops)} {
		if err := router.Mount(m); err != nil {
			t.Fatalf("mount %s: %v", m.Prefix(), err)
		}
	}
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	router.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "tally_up 1")
	}))

	if got := router.Prefixes(); !slices.Equal(got, []string{"/api", "/ops"}) {
		t.Errorf("prefixes: got %v", got)
	}

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/api/catalog", http.StatusOK, "/catalog"},
		{"/api/catalog/", http.StatusOK, "/catalog"},
		{"/ops", http.StatusOK, "/"},
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "tally_up 1"},
		{"/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body: got %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if req.URL.Path != tt.path {
				t.Errorf("inbound request mutated: path %q", req.URL.Path)
			}
		})
	}
}

func TestRouterMountDuplicatePrefix(t *testing.T) {
	router := module.NewRouter()
	if err := router.Mount(module.New("/api", http.NewServeMux())); err != nil {
		t.Fatalf("first mount: %v", err)
	}
	if err := router.Mount(module.New("/api", http.NewServeMux())); err == nil {
		t.Error("expected duplicate prefix error")
	}
}

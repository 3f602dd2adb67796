package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/JaimeStill/tally/pkg/middleware"
)

// Module is an HTTP handler that strips its prefix and delegates to an inner router
// with its own middleware stack. Middleware registered last runs closest to the
// router and sees the matched route pattern after the call returns.
//
// The stack is compiled on first use; Use panics after that.
type Module struct {
	prefix  string
	router  http.Handler
	stack   middleware.Stack
	once    sync.Once
	handler http.Handler
}

// New creates a Module with the given single-level prefix (e.g. "/api").
// Panics if the prefix is empty, missing a leading slash, or multi-level.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, router: router}
}

// Handler returns the inner router wrapped with the module's middleware stack.
func (m *Module) Handler() http.Handler {
	m.once.Do(func() {
		m.handler = m.stack.Apply(m.router)
	})
	return m.handler
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the module prefix from the request path and dispatches to the inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, strip(req, m.prefix))
}

// Use adds middleware to the module's stack.
func (m *Module) Use(mw ...func(http.Handler) http.Handler) {
	if m.handler != nil {
		panic(fmt.Sprintf("module %s: middleware added after first request", m.prefix))
	}
	m.stack.Use(mw...)
}

// strip returns a shallow copy of req whose path is relative to prefix.
func strip(req *http.Request, prefix string) *http.Request {
	r := req.WithContext(req.Context())
	r.URL = new(url.URL)
	*r.URL = *req.URL

	r.URL.Path = strings.TrimPrefix(req.URL.Path, prefix)
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	if req.URL.RawPath != "" {
		r.URL.RawPath = strings.TrimPrefix(req.URL.RawPath, prefix)
		if r.URL.RawPath == "" {
			r.URL.RawPath = "/"
		}
	}
	return r
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case prefix[0] != '/':
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1:
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}

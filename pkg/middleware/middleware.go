package middleware

import (
	"net/http"
	"slices"
)

// Stack is an ordered list of HTTP middleware. The first entry added is the
// outermost wrapper.
type Stack []func(http.Handler) http.Handler

// Use appends middleware to the stack.
func (s *Stack) Use(mw ...func(http.Handler) http.Handler) {
	*s = append(*s, mw...)
}

// Apply wraps handler with every middleware in the stack.
func (s Stack) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(s) {
		handler = mw(handler)
	}
	return handler
}

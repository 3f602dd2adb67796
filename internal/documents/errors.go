package documents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/tally/pkg/query"
)

// Domain errors for document operations.
var (
	ErrNotFound    = errors.New("document not found")
	ErrConflict    = errors.New("document was modified concurrently")
	ErrMalformed   = errors.New("document is malformed")
	ErrInvalidPath = errors.New("invalid field path")
	ErrInvalidID   = errors.New("invalid document id")
	ErrDuplicate   = errors.New("document already exists")
)

// MapHTTPStatus maps document domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrInvalidID), errors.Is(err, query.ErrUnknownField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

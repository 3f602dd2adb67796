package catalog

import (
	"errors"
	"net/http"
)

var (
	ErrLoadFailed    = errors.New("catalog load failed")
	ErrVendorFile    = errors.New("vendor list unreadable")
	ErrMissingColumn = errors.New("vendor list column missing")
)

// MapHTTPStatus maps catalog errors to HTTP status codes. A failed ERP read
// is an upstream failure.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrLoadFailed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

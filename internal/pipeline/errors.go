package pipeline

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/tally/internal/documents"
	"github.com/JaimeStill/tally/internal/erp"
)

var (
	ErrNotPostable   = errors.New("document is not postable")
	ErrAlreadyPosted = errors.New("document already posted")
)

// MapHTTPStatus maps pipeline, document and ERP errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotPostable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAlreadyPosted):
		return http.StatusConflict
	case errors.Is(err, erp.ErrLoginFailed),
		errors.Is(err, erp.ErrNotCreated),
		errors.Is(err, erp.ErrRequest):
		return erp.MapHTTPStatus(err)
	default:
		return documents.MapHTTPStatus(err)
	}
}

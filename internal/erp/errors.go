package erp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrLoginFailed indicates the session could not be established.
	ErrLoginFailed = errors.New("erp login failed")
	// ErrNotCreated indicates a write did not return 201 Created.
	// Callers treat it as the operation not having happened.
	ErrNotCreated = errors.New("erp record not created")
	// ErrRequest indicates a read returned a non-success status.
	ErrRequest = errors.New("erp request failed")
	// ErrPaginationLoop indicates a continuation link was already visited.
	ErrPaginationLoop = errors.New("erp pagination loop")
)

// StatusError describes a non-success ERP response.
type StatusError struct {
	Operation string
	Status    int
	Message   string
	kind      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: status %d: %s", e.kind, e.Operation, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// MapHTTPStatus maps ERP errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrLoginFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotCreated), errors.Is(err, ErrRequest), errors.Is(err, ErrPaginationLoop):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const maxErrorBody = 4 << 10

func statusError(op string, resp *http.Response, kind error) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Operation: op,
		Status:    resp.StatusCode,
		Message:   errorMessage(data),
		kind:      kind,
	}
}

// errorMessage extracts the message from a Service Layer error body.
// The message is either a string or an object with a value field.
func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && len(body.Error.Message) > 0 {
		var s string
		if json.Unmarshal(body.Error.Message, &s) == nil {
			return s
		}
		var v struct {
			Value string `json:"value"`
		}
		if json.Unmarshal(body.Error.Message, &v) == nil && v.Value != "" {
			return v.Value
		}
	}
	return strings.TrimSpace(string(data))
}

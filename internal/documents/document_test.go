package documents_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/documents"
)

func TestTextUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  documents.Text
	}{
		{"string", `"1,500.00"`, "1,500.00"},
		{"number", `1500.5`, "1500.5"},
		{"null", `null`, ""},
		{"bool", `true`, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got documents.Text
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextRejectsStructures(t *testing.T) {
	var got documents.Text
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &got))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &got))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"vendor_details":{"name":"Acme"},"line_items":[]}`, false},
		{"missing vendor", `{"line_items":[]}`, true},
		{"blank vendor name", `{"vendor_details":{"name":"  "},"line_items":[]}`, true},
		{"numeric vendor name", `{"vendor_details":{"name":42},"line_items":[]}`, true},
		{"missing line items", `{"vendor_details":{"name":"Acme"}}`, true},
		{"line items object", `{"vendor_details":{"name":"Acme"},"line_items":{}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &documents.Document{RawDetails: json.RawMessage(tt.raw)}
			err := documents.Validate(doc)
			if tt.wantErr {
				assert.ErrorIs(t, err, documents.ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateMissingDetails(t *testing.T) {
	assert.ErrorIs(t, documents.Validate(&documents.Document{}), documents.ErrMalformed)
}

func TestLinePath(t *testing.T) {
	assert.Equal(t, "extracted_details.line_items.3.account_code", documents.LinePath(3, "account_code"))
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{documents.ErrNotFound, http.StatusNotFound},
		{documents.ErrConflict, http.StatusConflict},
		{documents.ErrMalformed, http.StatusUnprocessableEntity},
		{documents.ErrInvalidPath, http.StatusBadRequest},
		{documents.ErrInvalidID, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, documents.MapHTTPStatus(tt.err))
		})
	}
}

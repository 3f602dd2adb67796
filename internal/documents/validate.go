package documents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Validate checks that a document has the minimum shape the resolution stages
// need: a decoded extracted_details object with a non-empty vendor name and a
// line_items array. String-encoded details are refused because sparse path
// updates cannot address into a JSON string.
func Validate(doc *Document) error {
	if doc.DetailsErr != nil {
		return doc.DetailsErr
	}
	if doc.Encoded {
		return fmt.Errorf("%w: extracted_details is string-encoded", ErrMalformed)
	}
	if doc.RawDetails == nil {
		return fmt.Errorf("%w: extracted_details missing", ErrMalformed)
	}

	var v any
	if err := json.Unmarshal(doc.RawDetails, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	name, err := jsonpath.Get("$.vendor_details.name", v)
	if err != nil {
		return fmt.Errorf("%w: vendor_details.name missing", ErrMalformed)
	}
	if s, ok := name.(string); !ok || strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: vendor_details.name must be a non-empty string", ErrMalformed)
	}

	items, err := jsonpath.Get("$.line_items", v)
	if err != nil {
		return fmt.Errorf("%w: line_items missing", ErrMalformed)
	}
	if _, ok := items.([]any); !ok {
		return fmt.Errorf("%w: line_items must be an array", ErrMalformed)
	}

	return nil
}

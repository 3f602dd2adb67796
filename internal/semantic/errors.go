package semantic

import "errors"

var (
	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrUnparsable indicates a structured response did not decode.
	ErrUnparsable = errors.New("unparsable model response")
)

package documents

import "context"

// System defines the public contract for document store operations.
type System interface {
	Handler() *Handler

	// Find returns the document with the given id. Fields restricts the
	// projection to the named columns; id and version are always included.
	Find(ctx context.Context, id int64, fields ...string) (*Document, error)

	// Update applies a sparse field update guarded by the expected version and
	// returns the new version. A version mismatch returns ErrConflict.
	Update(ctx context.Context, id int64, version int, fields FieldSet) (int, error)
}

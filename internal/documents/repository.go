package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a document repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "documents"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Find(ctx context.Context, id int64, fields ...string) (*Document, error) {
	p, err := projection.Subset(fields, "id", "version")
	if err != nil {
		return nil, err
	}

	q, args := query.NewBuilder(p).BuildSingle("id", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanner(p))
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if d.DetailsErr != nil {
		r.logger.Warn("extracted_details could not be decoded", "id", id, "error", d.DetailsErr)
	}
	return &d, nil
}

func (r *repo) Update(ctx context.Context, id int64, version int, fields FieldSet) (int, error) {
	q, args, err := buildUpdate(id, version, fields)
	if err != nil {
		return 0, err
	}

	next, err := repository.QueryScalar[int](ctx, r.db, q, args...)
	if err == nil {
		r.logger.Debug("document updated", "id", id, "version", next, "fields", len(fields))
		return next, nil
	}

	if repository.IsInvalidValue(err) {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("update document %d: %w", id, err)
	}

	exists, err := repository.QueryScalar[bool](ctx, r.db, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = $1)", id)
	if err != nil {
		return 0, fmt.Errorf("check document %d: %w", id, err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrConflict
}

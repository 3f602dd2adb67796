package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidJSONText   = "22P02"
	pgInvalidParamValue = "22023"
)

// MapError translates database errors to domain errors.
// sql.ErrNoRows maps to notFoundErr and a unique violation (23505) maps to
// duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if hasCode(err, pgUniqueViolation) {
		return duplicateErr
	}

	return err
}

// IsInvalidValue reports whether Postgres rejected a parameter value, such as
// malformed JSON text or a jsonb path that cannot be set inside a scalar.
func IsInvalidValue(err error) bool {
	return hasCode(err, pgInvalidJSONText) || hasCode(err, pgInvalidParamValue)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

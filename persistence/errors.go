package persistence

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeRecordNotFound  = "RECORD_NOT_FOUND"
	TextCodeDuplicateRecord = "DUPLICATE_RECORD"
)

// NewRecordNotFound returns a fresh not found error
func NewRecordNotFound() *goerrors.Error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithTextCode(TextCodeRecordNotFound).
		WithCode(goerrors.CodeNotFound)
}

// IsRecordNotFound matches the repository not found errors, a zero row
// update and not found rich errors.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}

// NewDuplicateRecord wraps a unique constraint violation
func NewDuplicateRecord(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryConflict, "duplicate record").
		WithTextCode(TextCodeDuplicateRecord).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"constraint": ViolatedConstraint(err)})
}

// IsDuplicateRecord reports unique constraint violations for postgres and sqlite
func IsDuplicateRecord(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeDuplicateRecord {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ViolatedConstraint returns the constraint name (postgres) or the
// failing table.column list (sqlite) of a unique violation.
func ViolatedConstraint(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if c, ok := richErr.Metadata["constraint"].(string); ok {
			return c
		}
		if richErr.Source != nil {
			err = richErr.Source
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}

	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed:"); i >= 0 {
		rest := strings.TrimSpace(msg[i+len("UNIQUE constraint failed:"):])
		if j := strings.Index(rest, " ("); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}

	return ""
}

package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/backend/internal/domain/barcode"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// storageError maps a failed query to the barcode storage taxonomy.
// A cancelled or expired context is returned as-is so callers can tell
// cancellation apart from an outage.
func storageError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return barcode.NewStorageError(op, err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// Claims race on the registry indexes, so these are routine.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	_, ok := uniqueViolation(err)
	return ok
}

// uniqueViolation reports whether err is a unique constraint violation and,
// when the driver exposes it, the name or column list of the violated constraint.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == pgUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	const sqliteUnique = "UNIQUE constraint failed: "
	msg := err.Error()
	if i := strings.Index(msg, sqliteUnique); i >= 0 {
		return msg[i+len(sqliteUnique):], true
	}
	return "", false
}

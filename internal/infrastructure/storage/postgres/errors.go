package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"landedcost/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgLockNotAvailable    = "55P03"
	pgDeadlockDetected    = "40P01"
	pgSerialization       = "40001"
)

// MapError converts constraint and locking failures into AppErrors.
// Other errors are returned unchanged.
func MapError(err error, entity string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewConflict(entity+" already exists").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewValidation("referenced record does not exist").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("value violates constraint").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgLockNotAvailable, pgDeadlockDetected, pgSerialization:
		return apperror.NewConcurrentModification(entity, nil).WithCause(err)
	}
	return err
}

// ParseOrderBy turns "-date" / "+number" / "code" into a safe ORDER BY
// clause. Only whitelisted columns are accepted; empty input yields def.
func ParseOrderBy(orderBy string, allowed []string, def string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return def, nil
	}

	direction := "ASC"
	field := orderBy
	switch {
	case strings.HasPrefix(orderBy, "-"):
		direction = "DESC"
		field = orderBy[1:]
	case strings.HasPrefix(orderBy, "+"):
		field = orderBy[1:]
	}
	field = strings.TrimSpace(field)

	for _, col := range allowed {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}

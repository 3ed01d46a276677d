package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ValidationError reports a rejected input field. It matches ErrInvalidArgument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// PostgreSQL error codes that indicate a rejected write.
const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgUniqueViolation     = "23505"
)

// classifyDBError maps a pgx error onto the service error taxonomy while
// keeping the original error in the chain.
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation, pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	// Anything that never reached PostgreSQL: dial failures, a closed pool,
	// timeouts.
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

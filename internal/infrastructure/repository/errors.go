package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
)

// PostgreSQL error codes the repositories react to
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Common repository errors
var (
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrForeignKey   = errors.New("foreign key violation")
)

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, domainerrors.ErrRecordNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// wrapError classifies driver errors into the repository and domain
// sentinels, keeping the driver error in the chain.
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domainerrors.ErrRecordNotFound
	case IsDuplicateKeyViolation(err):
		return errors.Join(ErrDuplicateKey, err)
	case IsForeignKeyViolation(err):
		return errors.Join(ErrForeignKey, err)
	default:
		return err
	}
}

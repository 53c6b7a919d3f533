package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
)

func TestWrapError(t *testing.T) {
	unique := &pgconn.PgError{Code: pgUniqueViolation}
	fk := &pgconn.PgError{Code: pgForeignKeyViolation}
	other := errors.New("boom")

	assert.NoError(t, wrapError(nil))
	assert.ErrorIs(t, wrapError(pgx.ErrNoRows), domainerrors.ErrRecordNotFound)
	assert.True(t, IsNotFound(wrapError(fmt.Errorf("scan: %w", pgx.ErrNoRows))))

	err := wrapError(unique)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.True(t, IsDuplicateKeyViolation(err))

	err = wrapError(fmt.Errorf("insert: %w", fk))
	assert.ErrorIs(t, err, ErrForeignKey)
	assert.False(t, IsDuplicateKeyViolation(err))

	assert.Equal(t, other, wrapError(other))
}

package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/database"
	"github.com/davidleathers/vintage-vault-backend/internal/testutil/containers"
)

// TestDB is a migrated PostgreSQL database running in a container
type TestDB struct {
	t    *testing.T
	pool *pgxpool.Pool
	URL  string
}

// NewTestDB starts a PostgreSQL container, applies every migration and
// connects a pool. The container is removed when the test finishes.
// Tests calling it are skipped in -short mode.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	migrator, err := database.NewMigrator(pg.ConnectionString, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, migrator.Up(0))
	require.NoError(t, migrator.Close())

	pool, err := pgxpool.New(ctx, pg.ConnectionString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &TestDB{t: t, pool: pool, URL: pg.ConnectionString}
}

// Pool returns the connection pool
func (tdb *TestDB) Pool() *pgxpool.Pool {
	return tdb.pool
}

// Exec runs a statement, failing the test on error
func (tdb *TestDB) Exec(query string, args ...any) {
	tdb.t.Helper()
	_, err := tdb.pool.Exec(context.Background(), query, args...)
	require.NoError(tdb.t, err)
}

// TruncateTables empties every table, keeping the schema
func (tdb *TestDB) TruncateTables() {
	tdb.t.Helper()
	tdb.Exec(`TRUNCATE notifications, messages, expert_categories, expert_availability,
		expert_assignments, authentication_requests, payments, bids, items, categories, users CASCADE`)
}

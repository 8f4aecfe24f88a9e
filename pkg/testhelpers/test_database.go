package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabase is a throwaway Postgres instance for integration tests.
type TestDatabase struct {
	Pool    *pgxpool.Pool
	ConnStr string

	container *postgres.PostgresContainer
}

// NewTestDatabase starts a Postgres container and applies the schema via the
// given migrate function (the embedded goose migrations in production code).
func NewTestDatabase(t *testing.T, migrate func(dbURL string) error) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	require.NoError(t, migrate(connStr), "Failed to run migrations")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "Failed to create connection pool")
	require.NoError(t, pool.Ping(ctx), "Failed to ping database")

	return &TestDatabase{
		Pool:      pool,
		ConnStr:   connStr,
		container: pgContainer,
	}
}

// Close tears the database down. Failures to stop the container are logged,
// not fatal.
func (td *TestDatabase) Close(t *testing.T) {
	t.Helper()
	td.Pool.Close()
	if err := td.container.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

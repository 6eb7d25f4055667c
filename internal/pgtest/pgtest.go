// Package pgtest boots a disposable Postgres for integration tests.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hireloop/backend/internal/pgschema"
)

// NewPool returns a pool connected to a throwaway Postgres 16 with the
// application schema and River's job tables applied, the same bootstrap
// main performs. TEST_DATABASE_URL reuses an existing database instead
// of starting a container; tests skip when Docker is not available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("hireloop_test"),
			postgres.WithUsername("hireloop"),
			postgres.WithPassword("hireloop"),
			postgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, pgC)
		if err != nil {
			t.Skipf("start postgres container (is Docker running?): %v", err)
		}

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("resolve connection string: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pgschema.Apply(ctx, pool); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		t.Fatalf("create river migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		t.Fatalf("river migrate: %v", err)
	}
	return pool
}

// Package pgschema owns the application's Postgres DDL. The schema is
// embedded so the binary can bootstrap an empty database at startup;
// every statement is idempotent, so Apply can run unconditionally.
package pgschema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var ddl string

// Apply creates all application tables and indexes that do not already
// exist. River's own tables are managed separately by rivermigrate.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	// No bind parameters, so pgx uses the simple protocol and the whole
	// multi-statement script runs in one round trip.
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgschema: apply schema: %w", err)
	}
	return nil
}

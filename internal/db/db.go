// Package db provides PostgreSQL persistence for the migration ledger.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schema is applied idempotently at startup. Migration attempts are
// append-only; there is deliberately no UPDATE or DELETE path for them.
const schema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id UUID PRIMARY KEY,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	artifact_count INTEGER NOT NULL DEFAULT 0,
	timestamp TIMESTAMPTZ NOT NULL,
	metadata JSONB
);

CREATE TABLE IF NOT EXISTS artifacts (
	id UUID PRIMARY KEY,
	original_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	original_data JSONB,
	transformed_data JSONB,
	remote_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	extraction_job_id UUID NOT NULL REFERENCES extraction_jobs(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status);
CREATE INDEX IF NOT EXISTS idx_artifacts_original_id ON artifacts(original_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_job ON artifacts(extraction_job_id);

CREATE TABLE IF NOT EXISTS migration_attempts (
	id UUID PRIMARY KEY,
	artifact_id UUID NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	timestamp TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	remote_response JSONB,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_attempts_artifact ON migration_attempts(artifact_id, timestamp);
`

// EnsureSchema creates the ledger tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		document_id   UUID PRIMARY KEY,
		owner_scope   TEXT NOT NULL,
		name          TEXT NOT NULL,
		blob_location TEXT NOT NULL,
		content_type  TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'uploaded',
		fail_reason   TEXT,
		chunk_count   INT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at  TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documents_blob_location_idx ON documents (blob_location)`,
	`CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (owner_scope)`,
	`CREATE TABLE IF NOT EXISTS fragments (
		document_id UUID NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		ordinal     INT NOT NULL,
		text        TEXT NOT NULL,
		embedding   REAL[],
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (document_id, ordinal)
	)`,
	// seq gives an insertion-order tiebreak: NOW() has microsecond precision,
	// and a user/assistant pair appended back to back can share a timestamp.
	`CREATE TABLE IF NOT EXISTS messages (
		message_id  UUID PRIMARY KEY,
		seq         BIGINT GENERATED ALWAYS AS IDENTITY,
		owner_scope TEXT NOT NULL,
		role        TEXT NOT NULL,
		text        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_owner_seq_idx ON messages (owner_scope, seq)`,
}

// EnsureSchema creates the tables on startup. Statements are idempotent so
// both the API and the worker can run this safely.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

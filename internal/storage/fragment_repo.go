package storage

import (
	"context"
	"fmt"

	"github.com/tsawhneybuilds/exploprd/internal/models"
)

type FragmentRepo struct {
	db *DB
}

func NewFragmentRepo(db *DB) *FragmentRepo {
	return &FragmentRepo{db: db}
}

// ReplaceBatch swaps a document's fragment set in one transaction, so a
// rerun of ingestion never leaves a mix of old and new fragments behind.
func (r *FragmentRepo) ReplaceBatch(ctx context.Context, documentID string, fragments []models.Fragment) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace fragments: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM fragments WHERE document_id=$1::uuid`, documentID); err != nil {
		return fmt.Errorf("clear fragments: %w", err)
	}
	for _, f := range fragments {
		_, err := tx.Exec(ctx, `
INSERT INTO fragments (document_id, ordinal, text, embedding)
VALUES ($1::uuid, $2, $3, $4)`,
			documentID, f.Ordinal, f.Text, f.Embedding)
		if err != nil {
			return fmt.Errorf("insert fragment %d: %w", f.Ordinal, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fragments tx: %w", err)
	}
	return nil
}

func (r *FragmentRepo) ListByDocument(ctx context.Context, documentID string) ([]models.Fragment, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, ordinal, text, embedding
FROM fragments
WHERE document_id=$1::uuid
ORDER BY ordinal ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list fragments by document: %w", err)
	}
	defer rows.Close()

	out := make([]models.Fragment, 0, 64)
	for rows.Next() {
		var f models.Fragment
		if err := rows.Scan(&f.DocumentID, &f.Ordinal, &f.Text, &f.Embedding); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fragments: %w", err)
	}
	return out, nil
}

// ListByOwnerProcessed returns embedded fragments of the owner's processed
// documents, ordered by document then ordinal for deterministic ranking.
func (r *FragmentRepo) ListByOwnerProcessed(ctx context.Context, ownerScope string) ([]models.Fragment, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT f.document_id::text, f.ordinal, f.text, f.embedding
FROM fragments f
JOIN documents d ON d.document_id = f.document_id
WHERE d.owner_scope=$1 AND d.status='processed' AND f.embedding IS NOT NULL
ORDER BY f.document_id ASC, f.ordinal ASC`, ownerScope)
	if err != nil {
		return nil, fmt.Errorf("list owner fragments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Fragment, 0, 256)
	for rows.Next() {
		var f models.Fragment
		if err := rows.Scan(&f.DocumentID, &f.Ordinal, &f.Text, &f.Embedding); err != nil {
			return nil, fmt.Errorf("scan owner fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner fragments: %w", err)
	}
	return out, nil
}

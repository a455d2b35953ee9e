package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id::text, owner_scope, name, blob_location, content_type,
       status, COALESCE(fail_reason,''), chunk_count, created_at, processed_at`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.DocumentID, &d.OwnerScope, &d.Name, &d.BlobLocation, &d.ContentType,
		&d.Status, &d.FailReason, &d.ChunkCount, &d.CreatedAt, &d.ProcessedAt)
	return d, err
}

func (r *DocumentRepo) Create(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, owner_scope, name, blob_location, content_type, status)
VALUES ($1, $2, $3, $4, $5, $6)`,
		d.DocumentID, d.OwnerScope, d.Name, d.BlobLocation, d.ContentType, d.Status)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, ownerScope, documentID string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_scope=$1 AND document_id=$2::uuid`, ownerScope, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) GetByBlobLocation(ctx context.Context, blobLocation string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE blob_location=$1`, blobLocation))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document by blob location: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerScope string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_scope=$1
ORDER BY created_at DESC`, ownerScope)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// UpdateStatus advances the document's status. Writes that would move the
// state machine backwards are dropped, so a superseded ingestion run cannot
// regress a row a newer run has already moved past. The update is conditioned
// on the status it read, which keeps the check-then-write race-free: a
// concurrent advance makes the stale UPDATE match zero rows.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus, failReason string) error {
	var current models.DocumentStatus
	err := r.db.Pool.QueryRow(ctx, `
SELECT status FROM documents WHERE document_id=$1::uuid`, documentID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return util.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document status: %w", err)
	}
	if !models.CanTransition(current, status) {
		return nil
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE documents
SET status=$2, fail_reason=NULLIF($3,'')
WHERE document_id=$1::uuid AND status=$4`,
		documentID, status, failReason, current)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) MarkProcessed(ctx context.Context, documentID string, chunkCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET status='processed', fail_reason=NULL, chunk_count=$2, processed_at=NOW()
WHERE document_id=$1::uuid AND status NOT IN ('processed','failed')`,
		documentID, chunkCount)
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	return nil
}

// ResetForReingest puts a re-uploaded document back at the start of the
// state machine. This is the one place a terminal status may be rewound,
// since the blob underneath it has been replaced.
func (r *DocumentRepo) ResetForReingest(ctx context.Context, documentID, name, contentType string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET name=$2, content_type=$3, status='uploaded', fail_reason=NULL, chunk_count=0, processed_at=NULL
WHERE document_id=$1::uuid`, documentID, name, contentType)
	if err != nil {
		return fmt.Errorf("reset document for reingest: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, ownerScope, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
DELETE FROM documents WHERE owner_scope=$1 AND document_id=$2::uuid`, ownerScope, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrNotFound
	}
	return nil
}

package storage

import (
	"context"
	"fmt"

	"github.com/tsawhneybuilds/exploprd/internal/models"
)

type MessageRepo struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, m models.Message) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO messages (message_id, owner_scope, role, text)
VALUES ($1, $2, $3, $4)`,
		m.MessageID, m.OwnerScope, m.Role, m.Text)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListRecent returns the owner's last limit messages, oldest first. Ordering
// is by the seq identity column, not created_at, so messages appended within
// the same clock tick still come back in insertion order.
func (r *MessageRepo) ListRecent(ctx context.Context, ownerScope string, limit int) ([]models.Message, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT message_id::text, owner_scope, role, text, created_at
FROM messages
WHERE owner_scope=$1
ORDER BY seq DESC
LIMIT $2`, ownerScope, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.Message, 0, limit)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.OwnerScope, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

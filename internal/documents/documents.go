// Package documents records metadata for files users upload over WhatsApp.
// Only provider file handles and descriptors are stored, never file bytes.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taxline/whatsapp-engine/internal/conversation"
)

type Document struct {
	ID          string
	PhoneNumber string
	FileID      string
	Filename    string
	MimeType    string
	ReceivedAt  time.Time
	CreatedAt   time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists uploaded-document metadata to PostgreSQL.
type Repository struct {
	pool querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("documents: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("documents: querier required")
	}
	return &Repository{pool: q}
}

// SaveBatch records every document collected during an upload session. The
// batch is flushed when the user finishes the flow.
func (r *Repository) SaveBatch(ctx context.Context, phoneNumber string, docs []conversation.DocumentRef) error {
	if phoneNumber == "" {
		return errors.New("documents: phone number required")
	}
	if len(docs) == 0 {
		return nil
	}
	query := `
		INSERT INTO documents (id, phone_number, file_id, filename, mime_type, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now().UTC()
	for _, doc := range docs {
		if _, err := r.pool.Exec(ctx, query,
			uuid.NewString(), phoneNumber, doc.FileID, doc.Filename, doc.MimeType, doc.ReceivedAt, now,
		); err != nil {
			return fmt.Errorf("documents: insert %s: %w", doc.Filename, err)
		}
	}
	return nil
}

// ListByPhone returns a number's recorded documents, newest first.
func (r *Repository) ListByPhone(ctx context.Context, phoneNumber string) ([]Document, error) {
	query := `
		SELECT id, phone_number, file_id, filename, mime_type, received_at, created_at
		FROM documents
		WHERE phone_number = $1
		ORDER BY received_at DESC
	`
	rows, err := r.pool.Query(ctx, query, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("documents: list for %s: %w", phoneNumber, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PhoneNumber, &d.FileID, &d.Filename, &d.MimeType, &d.ReceivedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("documents: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("documents: iterate: %w", err)
	}
	return out, nil
}

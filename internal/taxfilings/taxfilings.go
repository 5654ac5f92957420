// Package taxfilings reads filing records used for refund status lookups.
// Filings are written by the back-office systems; this service only reads
// them.
package taxfilings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Filing statuses as written by the back office.
const (
	StatusReceived   = "received"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusRefundSent = "refund_sent"
	StatusRejected   = "rejected"
)

// ErrNoFiling reports that no filing exists for the phone number.
var ErrNoFiling = errors.New("taxfilings: no filing on record")

type Filing struct {
	ID          string
	PhoneNumber string
	TaxYear     int
	Status      string
	UpdatedAt   time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads filings from PostgreSQL.
type Repository struct {
	pool querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("taxfilings: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("taxfilings: querier required")
	}
	return &Repository{pool: q}
}

// LatestByPhone returns the most recent filing for a phone number, or
// ErrNoFiling when none exists.
func (r *Repository) LatestByPhone(ctx context.Context, phoneNumber string) (*Filing, error) {
	query := `
		SELECT id, phone_number, tax_year, status, updated_at
		FROM tax_filings
		WHERE phone_number = $1
		ORDER BY tax_year DESC, updated_at DESC
		LIMIT 1
	`
	var f Filing
	err := r.pool.QueryRow(ctx, query, phoneNumber).Scan(
		&f.ID, &f.PhoneNumber, &f.TaxYear, &f.Status, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoFiling
		}
		return nil, fmt.Errorf("taxfilings: load latest for %s: %w", phoneNumber, err)
	}
	return &f, nil
}

// StatusLabel renders a filing status for end users.
func StatusLabel(status string) string {
	switch status {
	case StatusReceived:
		return "received and awaiting review"
	case StatusProcessing:
		return "being processed"
	case StatusApproved:
		return "approved, refund on the way"
	case StatusRefundSent:
		return "refund sent"
	case StatusRejected:
		return "rejected, our team will contact you"
	default:
		return status
	}
}

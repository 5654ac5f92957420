// Package tickets stores support tickets opened from the chat flow.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// ErrNotFound reports that no ticket exists for the id.
var ErrNotFound = errors.New("tickets: not found")

type Ticket struct {
	ID          string
	PhoneNumber string
	Message     string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists tickets to PostgreSQL.
type Repository struct {
	pool querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("tickets: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("tickets: querier required")
	}
	return &Repository{pool: q}
}

// Open creates a new ticket in the open status and returns it.
func (r *Repository) Open(ctx context.Context, phoneNumber, message string) (*Ticket, error) {
	if phoneNumber == "" {
		return nil, errors.New("tickets: phone number required")
	}
	if message == "" {
		return nil, errors.New("tickets: message required")
	}
	now := time.Now().UTC()
	t := &Ticket{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		Message:     message,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	query := `
		INSERT INTO support_tickets (id, phone_number, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query,
		t.ID, t.PhoneNumber, t.Message, t.Status, t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("tickets: insert: %w", err)
	}
	return t, nil
}

// Get loads a ticket by id.
func (r *Repository) Get(ctx context.Context, id string) (*Ticket, error) {
	query := `
		SELECT id, phone_number, message, status, created_at, updated_at
		FROM support_tickets
		WHERE id = $1
	`
	var t Ticket
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.PhoneNumber, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tickets: load %s: %w", id, err)
	}
	return &t, nil
}

// UpdateStatus moves a ticket to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE support_tickets
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("tickets: update %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Resolve closes a ticket.
func (r *Repository) Resolve(ctx context.Context, id string) error {
	return r.UpdateStatus(ctx, id, StatusResolved)
}

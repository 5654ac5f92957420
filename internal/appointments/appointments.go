// Package appointments stores advisor appointments booked through the chat
// flow.
package appointments

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

const StatusScheduled = "scheduled"

// Appointment is one confirmed booking.
type Appointment struct {
	ID          string
	PhoneNumber string
	ScheduledOn time.Time // date only
	TimeOfDay   string    // HH:MM, 24-hour
	Status      string
	CreatedAt   time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists appointments to PostgreSQL.
type Repository struct {
	pool querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &Repository{pool: q}
}

// CreateScheduled inserts a new appointment in the scheduled status. The date
// must already be validated as YYYY-MM-DD and the time as HH:MM.
func (r *Repository) CreateScheduled(ctx context.Context, phoneNumber, date, timeOfDay string) (*Appointment, error) {
	if phoneNumber == "" {
		return nil, errors.New("appointments: phone number required")
	}
	scheduledOn, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("appointments: invalid date %q: %w", date, err)
	}

	appt := &Appointment{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		ScheduledOn: scheduledOn,
		TimeOfDay:   timeOfDay,
		Status:      StatusScheduled,
		CreatedAt:   time.Now().UTC(),
	}
	query := `
		INSERT INTO appointments (id, phone_number, scheduled_on, time_of_day, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query,
		appt.ID, appt.PhoneNumber, appt.ScheduledOn, appt.TimeOfDay, appt.Status, appt.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return appt, nil
}

// ListByPhone returns a number's appointments, most recent first.
func (r *Repository) ListByPhone(ctx context.Context, phoneNumber string) ([]Appointment, error) {
	query := `
		SELECT id, phone_number, scheduled_on, time_of_day, status, created_at
		FROM appointments
		WHERE phone_number = $1
		ORDER BY scheduled_on DESC, created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for %s: %w", phoneNumber, err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PhoneNumber, &a.ScheduledOn, &a.TimeOfDay, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

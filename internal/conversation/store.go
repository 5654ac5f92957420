package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound reports that no conversation exists for the phone number.
var ErrNotFound = errors.New("conversation: not found")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations to PostgreSQL, one row per phone number.
type Store struct {
	pool rowQuerier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithQuerier(q rowQuerier) *Store {
	if q == nil {
		panic("conversation: querier required")
	}
	return &Store{pool: q}
}

// Get loads the conversation for a phone number. Returns ErrNotFound when the
// number has never been seen.
func (s *Store) Get(ctx context.Context, phoneNumber string) (*Conversation, error) {
	query := `
		SELECT phone_number, state, context, created_at, updated_at
		FROM conversations
		WHERE phone_number = $1
	`
	var (
		conv       Conversation
		state      string
		rawContext []byte
	)
	err := s.pool.QueryRow(ctx, query, phoneNumber).Scan(
		&conv.PhoneNumber, &state, &rawContext, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversation: load %s: %w", phoneNumber, err)
	}
	conv.State = State(state)
	if len(rawContext) > 0 {
		if err := json.Unmarshal(rawContext, &conv.Context); err != nil {
			return nil, fmt.Errorf("conversation: decode context for %s: %w", phoneNumber, err)
		}
	}
	return &conv, nil
}

// Put upserts the conversation keyed by phone number. Re-entrant webhook
// deliveries for the same number converge on the same row.
func (s *Store) Put(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return errors.New("conversation: nil conversation")
	}
	rawContext, err := json.Marshal(conv.Context)
	if err != nil {
		return fmt.Errorf("conversation: encode context: %w", err)
	}
	query := `
		INSERT INTO conversations (phone_number, state, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone_number) DO UPDATE SET
			state = EXCLUDED.state,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query,
		conv.PhoneNumber, string(conv.State), rawContext, conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return fmt.Errorf("conversation: upsert %s: %w", conv.PhoneNumber, err)
	}
	return nil
}

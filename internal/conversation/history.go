package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyKeyPrefix = "chat_history:"

// HistoryEntry is one message of a phone number's transcript, either
// inbound from the user or outbound from the engine.
type HistoryEntry struct {
	ID                string    `json:"id"`
	Role              string    `json:"role"` // "user" or "assistant"
	Body              string    `json:"body"`
	State             string    `json:"state,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
}

// HistoryStore keeps a rolling per-phone transcript in Redis.
type HistoryStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

func NewHistoryStore(redisClient *redis.Client, ttl time.Duration) *HistoryStore {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &HistoryStore{
		redis:       redisClient,
		tracer:      otel.Tracer("taxline.internal.conversation.history"),
		ttl:         ttl,
		maxMessages: 250,
	}
}

func (s *HistoryStore) Append(ctx context.Context, phoneNumber string, entry HistoryEntry) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if phoneNumber == "" {
		return errors.New("conversation: history phoneNumber required")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("conversation: marshal history entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.history.append")
	defer span.End()

	key := historyKey(phoneNumber)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append history entry: %w", err)
	}
	return nil
}

func (s *HistoryStore) List(ctx context.Context, phoneNumber string, limit int64) ([]HistoryEntry, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if phoneNumber == "" {
		return nil, errors.New("conversation: history phoneNumber required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.history.list")
	defer span.End()

	start := int64(0)
	end := int64(-1)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, historyKey(phoneNumber), start, end).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("conversation: list history: %w", err)
	}

	out := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func historyKey(phoneNumber string) string {
	return historyKeyPrefix + phoneNumber
}

// Package session holds per-session server-side quote state in Redis.
//
// Earlier chat-driven booking flows kept pending quote state in a
// process-wide map, which leaked memory and mixed up concurrent sessions.
// Here every pending quote is scoped by an explicit session key and expires
// after a TTL, so abandoned sessions clean themselves up.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fellsidecars/backend/internal/domain"
)

// Store keeps the most recent quote issued to each session.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore constructs a Store over the given Redis client. ttl bounds how
// long a pending quote survives without being booked.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func quoteKey(sessionKey string) string {
	return "session:" + sessionKey + ":quote"
}

// SaveQuote stores the quote under the session key, replacing any previous
// pending quote for the session and resetting the TTL.
func (s *Store) SaveQuote(ctx context.Context, sessionKey string, q domain.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("session.Store.SaveQuote: %w", err)
	}
	if err := s.rdb.Set(ctx, quoteKey(sessionKey), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session.Store.SaveQuote: %w", err)
	}
	return nil
}

// Quote returns the pending quote for the session, or ok=false if the
// session has none (never issued, expired, or already consumed).
func (s *Store) Quote(ctx context.Context, sessionKey string) (domain.Quote, bool, error) {
	payload, err := s.rdb.Get(ctx, quoteKey(sessionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quote{}, false, nil
	}
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("session.Store.Quote: %w", err)
	}

	var q domain.Quote
	if err := json.Unmarshal(payload, &q); err != nil {
		return domain.Quote{}, false, fmt.Errorf("session.Store.Quote: %w", err)
	}
	return q, true, nil
}

// Clear removes the session's pending quote. Called when a booking consumes
// the quote; expiry handles abandoned sessions.
func (s *Store) Clear(ctx context.Context, sessionKey string) error {
	if err := s.rdb.Del(ctx, quoteKey(sessionKey)).Err(); err != nil {
		return fmt.Errorf("session.Store.Clear: %w", err)
	}
	return nil
}

// Package redisstate stores single-use OAuth state tokens in Redis.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oceralabs/ocera/internal/domain"
)

const keyPrefix = "oauth:state:"

// Store implements domain.StateStore on Redis. The TTL bounds the window
// between authorize redirect and callback; GETDEL makes consumption one-shot.
type Store struct {
	rdb *redis.Client
}

// New constructs a Store.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Issue generates a random state token bound to the user and stores it with
// the given TTL.
func (s *Store) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	state := uuid.NewString()
	if err := s.rdb.Set(ctx, keyPrefix+state, userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("op=state.Issue: %w", err)
	}
	return state, nil
}

// Consume atomically reads and deletes the state, returning the bound user id.
// Unknown, expired, and already-consumed states all fail the same way.
func (s *Store) Consume(ctx context.Context, state string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, keyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: oauth state", domain.ErrNotFound)
		}
		return "", fmt.Errorf("op=state.Consume: %w", err)
	}
	return userID, nil
}

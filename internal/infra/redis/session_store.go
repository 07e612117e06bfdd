package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

// SessionStore is the Redis implementation of app.EphemeralStore. Each
// session is one string key holding the JSON step id list, expired by Redis.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Set(ctx context.Context, key string, steps []string, ttl time.Duration) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), data, ttl).Err()
}

// SetIfAbsent uses SET NX EX so two concurrent creators cannot both win.
func (s *SessionStore) SetIfAbsent(ctx context.Context, key string, steps []string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(steps)
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, s.key(key), data, ttl).Result()
}

func (s *SessionStore) Get(ctx context.Context, key string) ([]string, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	var steps []string
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return steps, nil
}

func (s *SessionStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	switch {
	case ttl == -2:
		return 0, fmt.Errorf("%w: session %s", domain.ErrNotFound, key)
	case ttl < 0:
		// key without expiry
		return 0, nil
	}
	return ttl, nil
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}

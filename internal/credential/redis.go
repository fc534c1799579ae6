package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/i2v-orchestrator/internal/generation"
)

// RedisStore keeps the token in Redis so several processes share it.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore creates a store using client. prefix namespaces the key and
// may be empty.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	key := Key
	if prefix != "" {
		key = prefix + ":" + Key
	}
	return &RedisStore{client: client, key: key}
}

// Get returns the stored token or generation.ErrNoCredential.
func (s *RedisStore) Get(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", generation.ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("credential: redis get: %w", err)
	}
	if v == "" {
		return "", generation.ErrNoCredential
	}
	return v, nil
}

// Set stores the token without expiry.
func (s *RedisStore) Set(ctx context.Context, value string) error {
	if err := s.client.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("credential: redis set: %w", err)
	}
	return nil
}

// Clear deletes the token.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("credential: redis del: %w", err)
	}
	return nil
}

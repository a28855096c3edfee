package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth_state:"

// RedisStateStore keeps OAuth state values in Redis so any instance can
// complete a flow started on another. Expiry is delegated to Redis key TTLs.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Issue(ctx context.Context, provider string) (string, error) {
	state, err := newStateValue()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, stateKey(state), provider, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}

	return state, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state, provider string) (bool, error) {
	if state == "" {
		return false, nil
	}

	// GETDEL is atomic, so concurrent callbacks with the same state see it once
	stored, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return stored == provider, nil
}

// Purge is a no-op; Redis evicts expired keys itself
func (s *RedisStateStore) Purge(_ context.Context) (int, error) {
	return 0, nil
}

func stateKey(state string) string {
	return stateKeyPrefix + state
}

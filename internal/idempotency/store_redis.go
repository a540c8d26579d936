package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yDkay/payment-system/pkg/redis"
)

const redisScope = "http"

// RedisStore keeps idempotency records in Redis. Expiry is delegated to the
// key TTL, so SweepExpired has nothing to do.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a store over an established Redis client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.client.IdempotencyKey(redisScope, key))
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch idempotency record: %w", err)
	}
	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, nil
}

// PutNX implements Store.
func (s *RedisStore) PutNX(ctx context.Context, key string, record *Record, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("encode idempotency record: %w", err)
	}
	stored, err := s.client.SetNX(ctx, s.client.IdempotencyKey(redisScope, key), payload, ttl)
	if err != nil {
		return false, fmt.Errorf("store idempotency record: %w", err)
	}
	return stored, nil
}

// SweepExpired implements Store. Redis expires keys on its own.
func (s *RedisStore) SweepExpired(context.Context) (int, error) {
	return 0, nil
}

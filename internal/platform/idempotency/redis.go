package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "friperie:idem:"

// RedisStore shares reservations across instances. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Response, error) {
	ttl = ttlOrDefault(ttl)
	payload, err := json.Marshal(entry{Fingerprint: fingerprint, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return StateNew, Response{}, err
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, payload, ttl).Result()
	if err != nil {
		return StateNew, Response{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if ok {
		return StateNew, Response{}, nil
	}
	existing, err := s.load(ctx, key)
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Reserve(ctx, key, fingerprint, now, ttl)
	}
	if err != nil {
		return StateNew, Response{}, err
	}
	return existing.resolve(fingerprint)
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Response, now time.Time, ttl time.Duration) error {
	ttl = ttlOrDefault(ttl)
	current, err := s.load(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	current.Completed = true
	current.Response = resp
	current.ExpiresAt = now.Add(ttl)
	payload, err := json.Marshal(current)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) load(ctx context.Context, key string) (entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		return entry{}, err
	}
	var out entry
	if err := json.Unmarshal(raw, &out); err != nil {
		return entry{}, fmt.Errorf("idempotency: decode %s: %w", key, err)
	}
	return out, nil
}

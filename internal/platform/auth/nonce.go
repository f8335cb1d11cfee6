package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// NonceStore remembers webhook nonces so a captured request cannot be replayed.
type NonceStore interface {
	// UseNonce reports true when the nonce was unseen in scope and is now recorded until expiry.
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
}

// MemoryNonceStore keeps nonces in process. Only suitable for a single instance.
type MemoryNonceStore struct {
	mu     sync.Mutex
	now    func() time.Time
	nonces map[string]time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{now: time.Now, nonces: make(map[string]time.Time)}
}

func (s *MemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, key)
		}
	}
	key := scope + "::" + nonce
	if _, seen := s.nonces[key]; seen {
		return false, nil
	}
	s.nonces[key] = expiry
	return true, nil
}

// RedisNonceStore shares nonces across instances with SETNX.
type RedisNonceStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: "friperie:nonce:", now: time.Now}
}

func (s *RedisNonceStore) UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}
	if s == nil || s.client == nil {
		return false, errors.New("auth: redis nonce store not configured")
	}
	ttl := expiry.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.client.SetNX(ctx, s.prefix+scope+":"+nonce, 1, ttl).Result()
}

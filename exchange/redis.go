package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/linkauth/internal"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces exchange codes in Redis.
const DefaultPrefix = "oauth:code"

// RedisStore keeps exchange entries in Redis so any instance can redeem a
// code issued by another. Consumption uses GETDEL.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore keeps codes under prefix, DefaultPrefix when empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(code string) string {
	return s.prefix + ":" + code
}

// Put stores payload under a fresh random code for ttl.
func (s *RedisStore) Put(ctx context.Context, payload []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	code, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	// NX: never overwrite a live entry.
	ok, err := s.redis.SetNX(ctx, s.key(code), payload, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: code collision", ErrBackend)
	}
	return code, nil
}

// Consume atomically reads and deletes the entry for code.
func (s *RedisStore) Consume(ctx context.Context, code string) ([]byte, bool, error) {
	if code == "" {
		return nil, false, nil
	}
	data, err := s.redis.GetDel(ctx, s.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return data, true, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edusummarizer/hub/internal/metrics"
)

const keyPrefix = "fpcache:"

// RedisStore backs the fingerprint cache with Redis. Expiry rides on the
// native key TTL, so eviction is lazy from the caller's perspective and
// nothing sweeps in-process. Entries are unbounded in number; only the TTL
// limits growth.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return val, true, nil
}

// Set always overwrites any prior value for the key with a fresh TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// README: Dialogue state in Redis; expiry doubles as the session timeout.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "tripdesk:state:"

type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore keeps every document for ttl after its last write. Zero ttl disables expiry.
func NewRedisStore(redis *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redis, ttl: ttl}
}

func stateKey(key string) string { return stateKeyPrefix + key }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.redis.Get(ctx, stateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, doc []byte) error {
	if err := s.redis.Set(ctx, stateKey(key), doc, s.ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, stateKey(key)).Err(); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

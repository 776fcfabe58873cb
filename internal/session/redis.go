package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every key the Redis backend writes.
const DefaultRedisPrefix = "tasklist:session:"

// RedisBackend keeps session values in Redis with a TTL, so an idle session
// expires the way a browser session does.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a Redis backend. A zero ttl stores keys without
// expiry; an empty prefix uses DefaultRedisPrefix.
func NewRedisBackend(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Load implements Backend.
func (r *RedisBackend) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Save implements Backend. All keys are written in one MULTI/EXEC, which
// also renews the TTL of the session keys not being written, so the whole
// session expires together.
func (r *RedisBackend) Save(ctx context.Context, values map[string]string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, r.prefix+k, v, r.ttl)
		}
		if r.ttl <= 0 {
			return nil
		}
		for _, kind := range AllKinds {
			if _, written := values[string(kind)]; !written {
				pipe.Expire(ctx, r.prefix+string(kind), r.ttl)
			}
		}
		return nil
	})
	return err
}

// Remove implements Backend. A single DEL removes all keys atomically.
func (r *RedisBackend) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.rdb.Del(ctx, full...).Err()
}

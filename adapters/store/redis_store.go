package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharos-rwa/pharos/ports"
)

// invalidateScript writes the invalidation deadline unless a longer
// window is already recorded. A logout after a refresh rotation (or
// the other way round) must never shorten the existing window.
const invalidateScript = `
local ttl = redis.call("PTTL", KEYS[1])
if ttl < tonumber(ARGV[1]) then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[1])
end
return 1
`

// RedisStore is a Redis implementation of the Store interface, for
// deployments where a logout on one instance must be visible to all.
type RedisStore struct {
	client     *redis.Client
	invalidate *redis.Script
	prefix     string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client:     client,
		invalidate: redis.NewScript(invalidateScript),
		prefix:     "pharos:invalidated:",
	}
}

// InvalidateToken marks a token as invalidated until the expiry passes
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	deadline := time.Now().Add(expiry).UnixMilli()

	err := s.invalidate.Run(ctx, s.client,
		[]string{s.prefix + tokenID},
		expiry.Milliseconds(), deadline,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+tokenID).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	// The key TTL handles expiry; the stored deadline guards against a
	// replica serving a key whose TTL already lapsed on the primary.
	deadline, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, nil
	}
	return time.Now().UnixMilli() < deadline, nil
}

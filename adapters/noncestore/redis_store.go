package noncestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/ports"
)

// consumeScript atomically checks the stored nonce and marks it
// consumed. Returns 1 on success, -1 on value mismatch, -2 when the
// nonce was already consumed. A missing key is handled by the caller.
const consumeScript = `
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local rec = cjson.decode(raw)
if rec.value ~= ARGV[1] then
	return -1
end
if rec.consumed then
	return -2
end
rec.consumed = true
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	redis.call("SET", KEYS[1], cjson.encode(rec), "PX", ttl)
end
return 1
`

// RedisStore is a Redis implementation of the NonceStore interface,
// for deployments running more than one instance behind one endpoint.
type RedisStore struct {
	client  *redis.Client
	consume *redis.Script
	prefix  string
}

// NewRedisStore creates a new Redis nonce store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		consume: redis.NewScript(consumeScript),
		prefix:  "pharos:nonce:",
	}
}

type nonceRecord struct {
	Value    string `json:"value"`
	IssuedAt int64  `json:"issued_at"`
	Consumed bool   `json:"consumed,omitempty"`
}

// Issue creates a fresh nonce for the address. The SET overwrites any
// prior live nonce; the key TTL doubles as the expiry sweep.
func (s *RedisStore) Issue(ctx context.Context, address string, ttl time.Duration) (*core.Nonce, error) {
	value, err := randomValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := nonceRecord{Value: value, IssuedAt: now.Unix()}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nonce: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+key(address), payload, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return &core.Nonce{
		Address:   address,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Consume atomically spends the live nonce for the address.
func (s *RedisStore) Consume(ctx context.Context, address, value string) error {
	res, err := s.consume.Run(ctx, s.client, []string{s.prefix + key(address)}, value).Int()
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return core.ErrNonceExpired
	case -1:
		return core.ErrNonceMismatch
	case -2:
		return core.ErrNonceAlreadyUsed
	default:
		return fmt.Errorf("unexpected consume result %d", res)
	}
}

var _ ports.NonceStore = (*RedisStore)(nil)

package ports

import (
	"context"
	"time"

	"github.com/pharos-rwa/pharos/core"
)

// NonceStore holds at most one live challenge nonce per address and
// provides an atomic consume step.
type NonceStore interface {
	// Issue creates a fresh nonce for the address with the given TTL,
	// replacing any prior live nonce for that address.
	Issue(ctx context.Context, address string, ttl time.Duration) (*core.Nonce, error)

	// Consume atomically spends the live nonce for the address if its
	// value matches. Exactly one of two racing callers succeeds.
	// Returns core.ErrNonceMismatch, core.ErrNonceAlreadyUsed or
	// core.ErrNonceExpired on failure; the store is not mutated then.
	Consume(ctx context.Context, address, value string) error
}

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/pharos-rwa/pharos/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.invalidatedTokens[tokenID] = now.Add(expiry)

	// Opportunistic reap of entries whose invalidation window passed.
	for id, exp := range s.invalidatedTokens {
		if now.After(exp) {
			delete(s.invalidatedTokens, id)
		}
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// The invalidation record itself may have lapsed.
	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}

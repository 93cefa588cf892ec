package noncestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/ports"
)

// nonceBytes gives 256 bits of entropy per nonce.
const nonceBytes = 32

// MemoryStore is an in-memory implementation of the NonceStore
// interface. Consumed nonces are kept as tombstones until expiry so a
// replay is reported as already-used rather than expired.
type MemoryStore struct {
	nonces map[string]*core.Nonce // keyed by lowercase address
	mu     sync.Mutex
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a new in-memory nonce store with a periodic
// sweep of expired entries.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		nonces: make(map[string]*core.Nonce),
		stop:   make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}

	return s
}

// Issue creates a fresh nonce for the address, replacing any prior
// live nonce for that address.
func (s *MemoryStore) Issue(ctx context.Context, address string, ttl time.Duration) (*core.Nonce, error) {
	value, err := randomValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	nonce := &core.Nonce{
		Address:   address,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.nonces[key(address)] = nonce
	s.mu.Unlock()

	return nonce, nil
}

// Consume atomically spends the live nonce for the address. Exactly
// one of two racing callers with the same value observes success.
func (s *MemoryStore) Consume(ctx context.Context, address, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[key(address)]
	if !ok {
		return core.ErrNonceExpired
	}

	if nonce.Expired(time.Now()) {
		delete(s.nonces, key(address))
		return core.ErrNonceExpired
	}

	if nonce.Value != value {
		return core.ErrNonceMismatch
	}

	if nonce.Consumed {
		return core.ErrNonceAlreadyUsed
	}

	nonce.Consumed = true
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, nonce := range s.nonces {
		if nonce.Expired(now) {
			delete(s.nonces, k)
		}
	}
}

func randomValue() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// key canonicalizes an address for lookup; checksum casing must not
// split one address into two entries.
func key(address string) string {
	return strings.ToLower(address)
}

var _ ports.NonceStore = (*MemoryStore)(nil)

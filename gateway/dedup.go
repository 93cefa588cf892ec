package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/pharos-rwa/pharos/core"
)

type recordState int

const (
	stateInFlight recordState = iota
	stateCompleted
)

// record tracks one idempotency key. Only the guard holder and the
// confirmation poller mutate it, always under the deduplicator lock.
type record struct {
	state     recordState
	result    *core.ContractCallResult
	firstSeen time.Time
	settled   chan struct{} // closed once the result is terminal
}

// Deduplicator tracks in-flight and recently-completed write calls by
// idempotency key so retried submissions execute at most once.
type Deduplicator struct {
	mu        sync.Mutex
	records   map[string]*record
	retention time.Duration
	stop      chan struct{}
	once      sync.Once
}

// NewDeduplicator creates a deduplicator that retains completed
// records for the given window before treating the key as fresh.
func NewDeduplicator(retention, sweepInterval time.Duration) *Deduplicator {
	d := &Deduplicator{
		records:   make(map[string]*record),
		retention: retention,
		stop:      make(chan struct{}),
	}

	if sweepInterval > 0 {
		go d.sweepLoop(sweepInterval)
	}

	return d
}

// Guard is the completion handle returned by Begin. Exactly one of
// Complete or Abandon must be called.
type Guard struct {
	d   *Deduplicator
	key string
	rec *record
}

// Begin atomically registers key as in flight.
//
// When a completed record exists its result is returned and guard is
// nil. When another caller holds the key, core.ErrAlreadyInFlight is
// returned. Otherwise the caller owns the returned guard.
func (d *Deduplicator) Begin(key string) (*Guard, *core.ContractCallResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.records[key]; ok {
		if rec.state == stateInFlight {
			return nil, nil, core.ErrAlreadyInFlight
		}
		return nil, cloneResult(rec.result), nil
	}

	rec := &record{
		state:     stateInFlight,
		firstSeen: time.Now(),
		settled:   make(chan struct{}),
	}
	d.records[key] = rec

	return &Guard{d: d, key: key, rec: rec}, nil, nil
}

// Complete transitions the record to completed with the given result.
// A non-terminal (pending) result keeps later callers served from the
// record until Update settles it.
func (g *Guard) Complete(res *core.ContractCallResult) {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()

	res.CompletedAt = time.Now()
	g.rec.state = stateCompleted
	g.rec.result = cloneResult(res)
	if g.rec.result.Terminal() {
		close(g.rec.settled)
	}
}

// Abandon removes the record so a later caller may retry the same key.
func (g *Guard) Abandon() {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()

	delete(g.d.records, g.key)
}

// Update settles the result of a completed record, used when a pending
// transaction gains a confirmation.
func (d *Deduplicator) Update(key string, res *core.ContractCallResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[key]
	if !ok || rec.state != stateCompleted {
		return
	}

	wasTerminal := rec.result.Terminal()
	res.CompletedAt = time.Now()
	rec.result = cloneResult(res)
	if rec.result.Terminal() && !wasTerminal {
		close(rec.settled)
	}
}

// Lookup returns the current result for key, if any.
func (d *Deduplicator) Lookup(key string) (*core.ContractCallResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[key]
	if !ok || rec.state != stateCompleted {
		return nil, false
	}
	return cloneResult(rec.result), true
}

// Await blocks until the result for key is terminal.
func (d *Deduplicator) Await(ctx context.Context, key string) (*core.ContractCallResult, error) {
	d.mu.Lock()
	rec, ok := d.records[key]
	d.mu.Unlock()
	if !ok {
		return nil, core.ErrCallNotFound
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rec.settled:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneResult(rec.result), nil
}

// Close stops the background sweep.
func (d *Deduplicator) Close() {
	d.once.Do(func() { close(d.stop) })
}

func (d *Deduplicator) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sweep(time.Now())
		}
	}
}

// sweep evicts terminal records older than the retention window.
// In-flight and still-pending records are never evicted.
func (d *Deduplicator) sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, rec := range d.records {
		if rec.state != stateCompleted || !rec.result.Terminal() {
			continue
		}
		if now.Sub(rec.result.CompletedAt) > d.retention {
			delete(d.records, key)
		}
	}
}

func cloneResult(res *core.ContractCallResult) *core.ContractCallResult {
	if res == nil {
		return nil
	}
	c := *res
	return &c
}

package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Entry carries the checkout attempt state across the gateway redirect. It is
// keyed by the gateway session id and is deliberately short-lived: losing an
// entry (expiry, different browser) degrades to skipping the point award, it
// never fails the confirmation page.
type Entry struct {
	CartToken      string
	UserID         string
	PointsDebited  int
	CashbackPoints int
	FinalTotal     decimal.Decimal
}

// CorrelationStore is best-effort, short-TTL state shared between the Begin
// and OnReturn requests. It is not a durable table.
type CorrelationStore interface {
	Put(ctx context.Context, sessionID string, e Entry) error
	// Take returns and removes the entry for the session id. The second
	// return is false when no entry exists.
	Take(ctx context.Context, sessionID string) (Entry, bool, error)
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is an in-process CorrelationStore with TTL eviction, suitable
// for single-instance deployments and tests. Multi-instance deployments use
// the redis-backed store instead.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

var _ CorrelationStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Put stores the entry, replacing any previous one for the session id.
func (s *MemoryStore) Put(_ context.Context, sessionID string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistically drop expired entries so abandoned checkouts do not
	// accumulate.
	now := s.now()
	for id, me := range s.entries {
		if now.After(me.expiresAt) {
			delete(s.entries, id)
		}
	}

	s.entries[sessionID] = memoryEntry{entry: e, expiresAt: now.Add(s.ttl)}
	return nil
}

// Take removes and returns the entry for the session id.
func (s *MemoryStore) Take(_ context.Context, sessionID string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.entries[sessionID]
	if !ok {
		return Entry{}, false, nil
	}
	delete(s.entries, sessionID)
	if s.now().After(me.expiresAt) {
		return Entry{}, false, nil
	}
	return me.entry, true, nil
}

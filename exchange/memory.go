package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/linkauth/internal"
)

var (
	// ErrBackend wraps store failures.
	ErrBackend = errors.New("exchange store unavailable")
	// ErrInvalidTTL is returned by Put for a non-positive ttl.
	ErrInvalidTTL = errors.New("invalid exchange ttl")
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is the single-instance fallback. Lookup, expiry check and
// removal happen under one lock.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty single-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock replaces time.Now and returns s.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Put stores payload under a fresh code for ttl.
func (s *MemoryStore) Put(_ context.Context, payload []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	code, err := internal.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)

	s.mu.Lock()
	s.entries[code] = memoryEntry{payload: buf, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return code, nil
}

// Consume removes and returns the payload for code in one critical section.
func (s *MemoryStore) Consume(_ context.Context, code string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, code)
	if !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.payload, true, nil
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for code, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, code)
			n++
		}
	}
	return n
}

// Janitor calls Purge every interval until ctx is cancelled.
func (s *MemoryStore) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Purge()
		}
	}
}

// Len reports the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

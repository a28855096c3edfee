package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// StateStore issues and redeems the single-use state values that bind an
// OAuth redirect to its callback.
type StateStore interface {
	// Issue creates a new state value bound to provider
	Issue(ctx context.Context, provider string) (string, error)
	// Consume reports whether state was issued for provider and has not expired.
	// A state value can be consumed at most once.
	Consume(ctx context.Context, state, provider string) (bool, error)
	// Purge drops expired entries and returns how many were removed
	Purge(ctx context.Context) (int, error)
}

// newStateValue returns 32 random bytes, hex encoded
func newStateValue() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// stateEntry stores state metadata
type stateEntry struct {
	provider string
	expiry   time.Time
}

// MemoryStateStore keeps OAuth state values in process memory.
// Suitable for a single instance; use RedisStateStore when running several.
type MemoryStateStore struct {
	states map[string]stateEntry // state -> entry (provider + expiry)
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStateStore creates a store whose entries live for ttl
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]stateEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStateStore) Issue(_ context.Context, provider string) (string, error) {
	state, err := newStateValue()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.states[state] = stateEntry{
		provider: provider,
		expiry:   s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return state, nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state, provider string) (bool, error) {
	s.mu.Lock()
	entry, exists := s.states[state]
	// Delete on first sight so a replayed or mismatched state is dead either way
	delete(s.states, state)
	s.mu.Unlock()

	if !exists {
		return false, nil
	}

	if entry.provider != provider {
		return false, nil
	}

	return s.now().Before(entry.expiry), nil
}

func (s *MemoryStateStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for state, entry := range s.states {
		if !now.Before(entry.expiry) {
			delete(s.states, state)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of stored states, expired or not
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

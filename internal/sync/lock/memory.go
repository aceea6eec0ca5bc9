package lock

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

type memoryEntry struct {
	info  Info
	token string
}

// MemoryStore keeps locks in process memory. It only serializes callers
// within one process.
type MemoryStore struct {
	clock clock.PassiveClock

	mu    sync.Mutex
	locks map[string]memoryEntry
}

// NewMemoryStore creates an empty store. A nil clock uses the wall clock.
func NewMemoryStore(clk clock.PassiveClock) *MemoryStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryStore{clock: clk, locks: make(map[string]memoryEntry)}
}

// Acquire implements Store
func (s *MemoryStore) Acquire(_ context.Context, scope, holder, initiator, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.locks[scope]; ok && now.Before(e.info.ExpiresAt) {
		return false, nil
	}
	s.locks[scope] = memoryEntry{
		token: token,
		info: Info{
			Scope:      scope,
			Holder:     holder,
			Initiator:  initiator,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		},
	}
	return true, nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, scope string) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	e, ok := s.locks[scope]
	if !ok || !now.Before(e.info.ExpiresAt) {
		return nil, nil
	}
	info := e.info
	info.Age = now.Sub(info.AcquiredAt)
	return &info, nil
}

// Release implements Store
func (s *MemoryStore) Release(_ context.Context, scope, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.locks[scope]
	if !ok || e.token != token {
		return false, nil
	}
	delete(s.locks, scope)
	return true, nil
}

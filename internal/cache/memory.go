package cache

import (
	"context"
	"sync"
	"time"
)

// Memory implements Membership and FloodGuard in process memory. It is the
// fallback when Redis is unreachable and the default backend in tests. Safe
// for concurrent use.
type Memory struct {
	mu      sync.Mutex
	members map[int64]struct{}
	guards  map[int64]time.Time

	// now is a seam for tests; defaults to time.Now.
	now func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		members: make(map[int64]struct{}),
		guards:  make(map[int64]time.Time),
		now:     time.Now,
	}
}

// Contains reports set membership.
func (m *Memory) Contains(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[id]
	return ok, nil
}

// Add inserts the id.
func (m *Memory) Add(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[id] = struct{}{}
	return nil
}

// Remove deletes the id.
func (m *Memory) Remove(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
	return nil
}

// Clear empties the set. Flood guards are untouched; they expire on their own.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = make(map[int64]struct{})
	return nil
}

// Hit reports whether the id is guarded and arms the guard when it is not.
func (m *Memory) Hit(_ context.Context, id int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.guards[id]; ok && now.Before(exp) {
		return true, nil
	}
	m.guards[id] = now.Add(ttl)
	return false, nil
}

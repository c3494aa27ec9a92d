package evaluation

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	stats map[string]Stats
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[string]Stats)}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats[o.AgentID]
	s.Add(o.Confidence, o.Correct)
	m.stats[o.AgentID] = s

	return nil
}

// Stats implements Store.
func (m *MemoryStore) Stats(_ context.Context, agentID string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats[agentID], nil
}

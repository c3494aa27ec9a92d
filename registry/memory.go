package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrt/core"
)

// Entry is one registered agent as seen by InMemoryRegistry.
type Entry struct {
	Descriptor core.Descriptor
	LeaseID    string
	ExpiresAt  time.Time
}

// InMemoryRegistry is a thread-safe Registry kept in process memory.
// Leases expire TTL after their last registration or renewal.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*Entry // by agent id
	leases  map[string]string // lease id -> agent id
}

// NewInMemoryRegistry creates a registry whose leases live for three renewal
// intervals.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		ttl:     3 * DefaultRenewInterval,
		now:     time.Now,
		entries: make(map[string]*Entry),
		leases:  make(map[string]string),
	}
}

// Register implements Registry. Re-registering an agent replaces its lease.
func (r *InMemoryRegistry) Register(_ context.Context, desc core.Descriptor) (string, error) {
	if err := desc.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrRegistryRejected, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[desc.ID]; ok {
		delete(r.leases, old.LeaseID)
	}

	leaseID := uuid.NewString()
	r.entries[desc.ID] = &Entry{Descriptor: desc.Clone(), LeaseID: leaseID, ExpiresAt: r.now().Add(r.ttl)}
	r.leases[leaseID] = desc.ID

	return leaseID, nil
}

// Renew implements Registry.
func (r *InMemoryRegistry) Renew(_ context.Context, leaseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agentID, ok := r.leases[leaseID]
	if !ok {
		return core.ErrLeaseExpired
	}

	e := r.entries[agentID]
	if r.now().After(e.ExpiresAt) {
		delete(r.leases, leaseID)
		delete(r.entries, agentID)

		return core.ErrLeaseExpired
	}

	e.ExpiresAt = r.now().Add(r.ttl)

	return nil
}

// Unregister implements Registry. Unknown agents are ignored.
func (r *InMemoryRegistry) Unregister(_ context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[agentID]; ok {
		delete(r.leases, e.LeaseID)
		delete(r.entries, agentID)
	}

	return nil
}

// Agents returns the live entries sorted by agent id.
func (r *InMemoryRegistry) Agents() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]Entry, 0, len(r.entries))

	for _, e := range r.entries {
		if now.After(e.ExpiresAt) {
			continue
		}

		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.ID < out[j].Descriptor.ID })

	return out
}

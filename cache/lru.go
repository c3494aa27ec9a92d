package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hupe1980/agentrt/core"
)

type entry struct {
	res        *core.Result
	insertedAt time.Time
}

// LRUStore is an in-process Store bounded by entry count and TTL.
type LRUStore struct {
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewLRUStore creates a store holding at most size results for ttl each.
func NewLRUStore(size int, ttl time.Duration) (*LRUStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &LRUStore{entries: c, ttl: ttl, now: time.Now}, nil
}

// Get implements Store.
func (s *LRUStore) Get(_ context.Context, key string) (*core.Result, bool, error) {
	v, ok := s.entries.Get(key)
	if !ok {
		return nil, false, nil
	}

	e := v.(entry)
	if s.now().Sub(e.insertedAt) >= s.ttl {
		s.entries.Remove(key)
		return nil, false, nil
	}

	return e.res.Clone(), true, nil
}

// Set implements Store.
func (s *LRUStore) Set(_ context.Context, key string, res *core.Result) error {
	s.entries.Add(key, entry{res: res.Clone(), insertedAt: s.now()})
	return nil
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (s *LRUStore) Len() int { return s.entries.Len() }

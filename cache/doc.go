// Package cache provides bounded result caches for the runtime.
//
// Entries expire a fixed TTL after insertion. Concurrent misses for the same
// key are not coalesced: each caller computes and stores its own result.
package cache

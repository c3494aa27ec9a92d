package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/hupe1980/agentrt/core"
)

// DefaultTTL is the lifetime of a cached result.
const DefaultTTL = 5 * time.Minute

// Store caches analysis results by key.
type Store interface {
	// Get returns the cached result and true, or false on a miss or expiry.
	Get(ctx context.Context, key string) (*core.Result, bool, error)
	// Set stores res under key.
	Set(ctx context.Context, key string, res *core.Result) error
}

// Key derives a stable cache key for a request served by agentID. Object keys
// in the payload are serialized in sorted order, so semantically equal
// payloads collide. Agents sharing one store never see each other's entries.
func Key(agentID string, req core.Request) (string, error) {
	b, err := json.Marshal(struct {
		Agent string `json:"agent"`
		Task  string `json:"task"`
		Data  any    `json:"data"`
	}{agentID, req.Task, req.Data})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}

	h := xxhash.NewS64(0)
	_, _ = h.Write(b)

	return strconv.FormatUint(h.Sum64(), 16), nil
}

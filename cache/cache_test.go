package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

func TestKey_StableAcrossMapOrder(t *testing.T) {
	a, err := Key("a-1", core.Request{Task: "t", Data: map[string]any{"x": 1, "y": "z"}})
	require.NoError(t, err)

	b, err := Key("a-1", core.Request{Task: "t", Data: map[string]any{"y": "z", "x": 1}})
	require.NoError(t, err)

	c, err := Key("a-1", core.Request{Task: "other", Data: map[string]any{"x": 1, "y": "z"}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestKey_ScopedByAgent(t *testing.T) {
	req := core.Request{Task: "t", Data: "same"}

	a, err := Key("weather", req)
	require.NoError(t, err)

	b, err := Key("security", req)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestKey_UnencodablePayload(t *testing.T) {
	_, err := Key("a-1", core.Request{Task: "t", Data: make(chan int)})
	assert.Error(t, err)
}

func TestLRUStore_TTL(t *testing.T) {
	ctx := context.Background()

	s, err := NewLRUStore(8, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", &core.Result{Value: "v", Confidence: 0.7}))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got.Value)

	now = now.Add(time.Minute)

	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestLRUStore_Bounded(t *testing.T) {
	ctx := context.Background()

	s, err := NewLRUStore(2, 0)
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(ctx, k, &core.Result{Value: k}))
	}

	assert.Equal(t, 2, s.Len())

	_, ok, _ := s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestLRUStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()

	s, err := NewLRUStore(2, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", &core.Result{Metadata: map[string]string{"a": "1"}}))

	got, _, _ := s.Get(ctx, "k")
	got.Metadata["a"] = "mutated"

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "1", again.Metadata["a"])
}

func TestNewRedisStoreFromURL_InvalidURL(t *testing.T) {
	_, err := NewRedisStoreFromURL("://nope")
	assert.Error(t, err)
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
)

func TestInMemoryRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()
	desc := testutil.NewDescriptorBuilder("a1").Build()

	lease, err := reg.Register(ctx, desc)
	require.NoError(t, err)
	require.NotEmpty(t, lease)
	require.NoError(t, reg.Renew(ctx, lease))
	require.Len(t, reg.Agents(), 1)

	again, err := reg.Register(ctx, desc)
	require.NoError(t, err)
	assert.NotEqual(t, lease, again)
	assert.ErrorIs(t, reg.Renew(ctx, lease), core.ErrLeaseExpired)

	require.NoError(t, reg.Unregister(ctx, "a1"))
	assert.Empty(t, reg.Agents())
	assert.ErrorIs(t, reg.Renew(ctx, again), core.ErrLeaseExpired)
}

func TestInMemoryRegistry_Expiry(t *testing.T) {
	ctx := context.Background()
	reg := NewInMemoryRegistry()

	now := time.Now()
	reg.now = func() time.Time { return now }

	lease, err := reg.Register(ctx, testutil.NewDescriptorBuilder("a1").Build())
	require.NoError(t, err)

	now = now.Add(reg.ttl + time.Second)
	assert.Empty(t, reg.Agents())
	assert.ErrorIs(t, reg.Renew(ctx, lease), core.ErrLeaseExpired)
}

func TestInMemoryRegistry_RejectsInvalidDescriptor(t *testing.T) {
	_, err := NewInMemoryRegistry().Register(context.Background(), core.Descriptor{})
	assert.ErrorIs(t, err, core.ErrRegistryRejected)
}

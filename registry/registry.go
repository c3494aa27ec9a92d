package registry

import (
	"context"

	"github.com/hupe1980/agentrt/core"
)

// Registry is the client-visible contract of the central registry service.
//
// Register returns a non-empty lease id. An error wrapping
// core.ErrRegistryRejected marks a refusal that retrying cannot fix; any other
// error is treated as transient. Renew returns an error wrapping
// core.ErrLeaseExpired when the lease is unknown. Unregister is best effort.
type Registry interface {
	Register(ctx context.Context, desc core.Descriptor) (string, error)
	Renew(ctx context.Context, leaseID string) error
	Unregister(ctx context.Context, agentID string) error
}

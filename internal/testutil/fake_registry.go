package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// ErrUnavailable is returned by FakeRegistry while it simulates an outage.
var ErrUnavailable = errors.New("fake registry unavailable")

// RegistryCalls counts calls received by a FakeRegistry.
type RegistryCalls struct {
	Register   int
	Renew      int
	Unregister int
}

// FakeRegistry is a registry.Registry with switches for injecting failures.
// Hanging calls ignore their context and only return once Release is called,
// simulating a registry that never answers.
type FakeRegistry struct {
	mu sync.Mutex

	unavailable    bool
	reject         bool
	failRenewals   int
	hangRenew      bool
	hangUnregister bool

	calls            RegistryCalls
	leaseSeq         int
	activeLease      string
	renewInFlight    int
	maxRenewInFlight int

	release     chan struct{}
	releaseOnce sync.Once
}

// NewFakeRegistry returns a healthy fake.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{release: make(chan struct{})}
}

// SetUnavailable makes every call fail with ErrUnavailable.
func (f *FakeRegistry) SetUnavailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = v
}

// SetRejecting makes Register fail with core.ErrRegistryRejected.
func (f *FakeRegistry) SetRejecting(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = v
}

// FailRenewals makes the next n Renew calls fail.
func (f *FakeRegistry) FailRenewals(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRenewals = n
}

// HangRenew makes Renew block until Release.
func (f *FakeRegistry) HangRenew(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangRenew = v
}

// HangUnregister makes Unregister block until Release.
func (f *FakeRegistry) HangUnregister(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangUnregister = v
}

// Recover clears every injected failure.
func (f *FakeRegistry) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = false
	f.reject = false
	f.failRenewals = 0
	f.hangRenew = false
	f.hangUnregister = false
}

// Release unblocks all hanging calls. Safe to call more than once.
func (f *FakeRegistry) Release() {
	f.releaseOnce.Do(func() { close(f.release) })
}

// Calls returns a snapshot of the call counters.
func (f *FakeRegistry) Calls() RegistryCalls {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// MaxConcurrentRenewals reports the highest number of overlapping Renew calls seen.
func (f *FakeRegistry) MaxConcurrentRenewals() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxRenewInFlight
}

// Register implements registry.Registry.
func (f *FakeRegistry) Register(_ context.Context, desc core.Descriptor) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls.Register++

	if f.unavailable {
		return "", ErrUnavailable
	}

	if f.reject {
		return "", fmt.Errorf("%w: agent %s", core.ErrRegistryRejected, desc.ID)
	}

	f.leaseSeq++
	f.activeLease = fmt.Sprintf("lease-%d", f.leaseSeq)

	return f.activeLease, nil
}

// Renew implements registry.Registry.
func (f *FakeRegistry) Renew(_ context.Context, leaseID string) error {
	f.mu.Lock()
	f.calls.Renew++
	f.renewInFlight++

	if f.renewInFlight > f.maxRenewInFlight {
		f.maxRenewInFlight = f.renewInFlight
	}

	hang := f.hangRenew
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.renewInFlight--
		f.mu.Unlock()
	}()

	if hang {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return ErrUnavailable
	}

	if f.failRenewals > 0 {
		f.failRenewals--
		return ErrUnavailable
	}

	if leaseID != f.activeLease {
		return core.ErrLeaseExpired
	}

	return nil
}

// Unregister implements registry.Registry.
func (f *FakeRegistry) Unregister(_ context.Context, _ string) error {
	f.mu.Lock()
	f.calls.Unregister++
	hang := f.hangUnregister
	f.mu.Unlock()

	if hang {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return ErrUnavailable
	}

	f.activeLease = ""

	return nil
}

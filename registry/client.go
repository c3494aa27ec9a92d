package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

const (
	// DefaultRenewInterval is the fixed delay between lease renewals.
	DefaultRenewInterval = 30 * time.Second
	// DefaultRetryBackoff is the fixed delay before re-registering after a failure.
	DefaultRetryBackoff = 5 * time.Second
	// DefaultRegisterTimeout bounds a single Register call.
	DefaultRegisterTimeout = 10 * time.Second
	// DefaultRenewTimeout bounds a single Renew call.
	DefaultRenewTimeout = 5 * time.Second
	// DefaultUnregisterTimeout bounds Stop, including the final Unregister call.
	DefaultUnregisterTimeout = 5 * time.Second
)

// Options configures a Client. The durations exist so tests can shrink them;
// production code should keep the defaults.
type Options struct {
	// Endpoint is reported in RegistrationError values and logs.
	Endpoint string

	RenewInterval     time.Duration
	RetryBackoff      time.Duration
	RegisterTimeout   time.Duration
	RenewTimeout      time.Duration
	UnregisterTimeout time.Duration

	// OnTransition, when set, is called after every state change. It runs on
	// the goroutine that caused the change and must not block.
	OnTransition func(Transition)

	Logger logging.Logger
}

// Client owns one agent's registry lease. All methods are safe for
// concurrent use.
type Client struct {
	reg  Registry
	desc core.Descriptor
	opts Options

	mu       sync.Mutex
	state    State
	leaseID  string
	stopping bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewClient creates a Client in the Unregistered state.
func NewClient(reg Registry, desc core.Descriptor, optFns ...func(o *Options)) *Client {
	opts := Options{
		RenewInterval:     DefaultRenewInterval,
		RetryBackoff:      DefaultRetryBackoff,
		RegisterTimeout:   DefaultRegisterTimeout,
		RenewTimeout:      DefaultRenewTimeout,
		UnregisterTimeout: DefaultUnregisterTimeout,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{
		reg:   reg,
		desc:  desc,
		opts:  opts,
		state: StateUnregistered,
	}
}

// State returns the current lease state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// LeaseID returns the current lease id, or "" while no lease is held.
func (c *Client) LeaseID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.leaseID
}

// Start launches the background registration loop and returns immediately.
// It may be called again after an explicit rejection returned the client to
// Unregistered.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopping || c.state == StateTerminated {
		return errors.New("registry client stopped")
	}

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return core.ErrAlreadyStarted
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, c.done)

	return nil
}

// Stop cancels the loop, waits for it to exit, performs a single best-effort
// Unregister and moves the client to Terminated. The whole call is bounded by
// UnregisterTimeout; waiting for the loop may use at most half of it, so the
// Unregister call is attempted even when a renewal hangs. A
// *core.ShutdownTimeoutError is returned when a bound was hit; unregister
// failures are only logged.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return nil
	}

	c.stopping = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	start := time.Now()
	deadline := start.Add(c.opts.UnregisterTimeout)

	var stopErr error

	if cancel != nil {
		cancel()

		timer := time.NewTimer(c.opts.UnregisterTimeout / 2)
		select {
		case <-done:
		case <-timer.C:
			stopErr = &core.ShutdownTimeoutError{Phase: "renewal loop", Timeout: c.opts.UnregisterTimeout}
			c.opts.Logger.Warn("Renewal loop did not exit in time", "timeout", c.opts.UnregisterTimeout)
		}

		timer.Stop()
	}

	if c.State() != StateUnregistered {
		c.forceTransition(StateUnregistering)

		if err := c.unregister(deadline); err != nil {
			var te *core.ShutdownTimeoutError
			if errors.As(err, &te) {
				stopErr = err
			}

			c.opts.Logger.Warn("Unregister failed", "agent_id", c.desc.ID, "error", err)
		}
	}

	c.mu.Lock()
	c.leaseID = ""
	c.mu.Unlock()

	c.forceTransition(StateTerminated)

	return stopErr
}

func (c *Client) unregister(deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return &core.ShutdownTimeoutError{Phase: "unregister", Timeout: c.opts.UnregisterTimeout}
	}

	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.reg.Unregister(ctx, c.desc.ID) }()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return &core.ShutdownTimeoutError{Phase: "unregister", Timeout: c.opts.UnregisterTimeout}
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		switch c.register(ctx) {
		case registerStopped:
			return
		case registerRejected:
			return
		case registerFailed:
			if !sleep(ctx, c.opts.RetryBackoff) {
				return
			}

			continue
		}

		if !c.renewLoop(ctx) {
			return
		}

		if !sleep(ctx, c.opts.RetryBackoff) {
			return
		}
	}
}

type registerOutcome int

const (
	registerOK registerOutcome = iota
	registerFailed
	registerRejected
	registerStopped
)

func (c *Client) register(ctx context.Context) registerOutcome {
	if ctx.Err() != nil || !c.transition(StateRegistering, "") {
		return registerStopped
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.RegisterTimeout)
	leaseID, err := c.reg.Register(callCtx, c.desc.Clone())

	cancel()

	if ctx.Err() != nil {
		return registerStopped
	}

	if err == nil && leaseID == "" {
		err = errors.New("registry returned an empty lease id")
	}

	if err != nil {
		regErr := &core.RegistrationError{
			Endpoint: c.opts.Endpoint,
			Rejected: errors.Is(err, core.ErrRegistryRejected),
			Cause:    err,
		}

		if regErr.Rejected {
			c.opts.Logger.Error("Registration rejected", "agent_id", c.desc.ID, "error", regErr)
			c.transition(StateUnregistered, "")

			return registerRejected
		}

		c.opts.Logger.Warn("Registration failed, retrying", "agent_id", c.desc.ID, "backoff", c.opts.RetryBackoff, "error", regErr)
		c.transition(StateDegraded, "")

		return registerFailed
	}

	if !c.transition(StateActive, leaseID) {
		return registerStopped
	}

	c.opts.Logger.Info("Agent registered", "agent_id", c.desc.ID, "lease_id", leaseID)

	return registerOK
}

// renewLoop renews the lease until a renewal fails (returns true) or the
// loop is cancelled (returns false).
func (c *Client) renewLoop(ctx context.Context) bool {
	for {
		if !sleep(ctx, c.opts.RenewInterval) {
			return false
		}

		if ctx.Err() != nil {
			return false
		}

		leaseID := c.LeaseID()
		if !c.transition(StateRenewing, leaseID) {
			return false
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.RenewTimeout)
		err := c.reg.Renew(callCtx, leaseID)

		cancel()

		if ctx.Err() != nil {
			return false
		}

		if err == nil {
			c.transition(StateActive, leaseID)
			continue
		}

		c.opts.Logger.Warn("Lease renewal failed", "agent_id", c.desc.ID, "error", &core.RenewalError{LeaseID: leaseID, Cause: err})
		c.transition(StateDegraded, "")

		return true
	}
}

// transition is used by the loop. It is refused once Stop has begun so the
// loop can never overwrite Unregistering or Terminated.
func (c *Client) transition(to State, leaseID string) bool {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return false
	}

	t := c.apply(to, leaseID)
	c.mu.Unlock()

	c.notify(t)

	return true
}

func (c *Client) forceTransition(to State) {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		return
	}

	t := c.apply(to, c.leaseID)
	c.mu.Unlock()

	c.notify(t)
}

// apply must be called with c.mu held.
func (c *Client) apply(to State, leaseID string) Transition {
	t := Transition{From: c.state, To: to, LeaseID: leaseID, At: time.Now()}
	c.state = to
	c.leaseID = leaseID

	return t
}

func (c *Client) notify(t Transition) {
	c.opts.Logger.Debug("Lease state changed", "from", t.From.String(), "to", t.To.String(), "lease_id", t.LeaseID)

	if c.opts.OnTransition != nil {
		c.opts.OnTransition(t)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

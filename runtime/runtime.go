package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/evaluation"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
	"github.com/hupe1980/agentrt/registry"
	"github.com/hupe1980/agentrt/server"
)

// Config defines tuning parameters for the Runtime's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxWorkers: 32,
//	    Strategy:   confidence.StrategyHybrid,
//	}
type Config struct {
	// MaxWorkers bounds the number of analyzer hooks running at once.
	// Start may override it. Values below 1 are treated as 1.
	MaxWorkers int

	// Host is the interface the listener binds to. Empty binds all
	// interfaces and advertises localhost.
	Host string

	// Strategy is the confidence extraction strategy for raw hook results.
	Strategy confidence.Strategy

	// DefaultConfidence is used when no confidence can be derived. Zero is
	// honored; a negative value selects confidence.DefaultConfidence.
	DefaultConfidence float64

	// ExecuteTimeout bounds a single Execute call. Zero means no bound
	// beyond the caller's context.
	ExecuteTimeout time.Duration

	// DisableRegistration serves without ever contacting a registry.
	DisableRegistration bool
}

// DefaultConfig provides production-ready default configuration values.
//
// Configuration values:
//   - MaxWorkers: 10
//   - Strategy: hybrid (0.7 explicit-or-pattern, 0.3 keyword)
//   - DefaultConfidence: 0.5
var DefaultConfig = Config{
	MaxWorkers:        10,
	Strategy:          confidence.StrategyHybrid,
	DefaultConfidence: confidence.DefaultConfidence,
}

// Admitter decides whether a request may reach the analyzer.
// *policy.Engine implements it.
type Admitter interface {
	Admit(ctx context.Context, desc core.Descriptor, req core.Request) error
}

// Options configures a Runtime instance using the functional options pattern.
//
// Every dependency is optional. Without a Registry the runtime registers
// over HTTP with RegistryEndpoint; without an outcome store feedback is kept
// in memory.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Registry is the registry collaborator. When nil an HTTP registry at
	// RegistryEndpoint is used.
	Registry registry.Registry

	// RegistryEndpoint is the registry address (default localhost:50051).
	RegistryEndpoint string

	// RegistryOptions tweak the lease client, mostly for tests.
	RegistryOptions []func(o *registry.Options)

	// Validators run before the hook. Any error fails the request.
	Validators []Validator

	// Transforms run after normalization in the order given.
	Transforms []Transform

	// Admission, when set, is consulted after validation.
	Admission Admitter

	// Cache, when set, memoizes results by request.
	Cache cache.Store

	// Outcomes stores feedback used for calibration.
	Outcomes evaluation.Store

	// Metrics is optional; nil records nothing.
	Metrics *metrics.Collector

	// ServerOptions tweak the HTTP surface started by Start.
	ServerOptions []func(o *server.Options)

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithConfig replaces the runtime configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithRegistry sets the registry collaborator.
func WithRegistry(reg registry.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = reg }
}

// WithRegistryEndpoint sets the address of the HTTP registry.
func WithRegistryEndpoint(addr string) func(o *Options) {
	return func(o *Options) { o.RegistryEndpoint = addr }
}

// WithValidators appends request validators.
func WithValidators(v ...Validator) func(o *Options) {
	return func(o *Options) { o.Validators = append(o.Validators, v...) }
}

// WithTransforms appends result transforms.
func WithTransforms(t ...Transform) func(o *Options) {
	return func(o *Options) { o.Transforms = append(o.Transforms, t...) }
}

// WithAdmission sets the admission policy.
func WithAdmission(a Admitter) func(o *Options) {
	return func(o *Options) { o.Admission = a }
}

// WithCache enables result caching.
func WithCache(s cache.Store) func(o *Options) {
	return func(o *Options) { o.Cache = s }
}

// WithOutcomes sets the outcome store used by RecordOutcome.
func WithOutcomes(s evaluation.Store) func(o *Options) {
	return func(o *Options) { o.Outcomes = s }
}

// WithMetrics sets the prometheus collector.
func WithMetrics(m *metrics.Collector) func(o *Options) {
	return func(o *Options) { o.Metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Runtime hosts one analyzer behind the service contract.
//
// Concurrency Model:
//   - Execute may be called concurrently; hooks run on a weighted semaphore
//     sized by MaxWorkers
//   - the registry lease is owned by a registry.Client and never touched here
//   - the descriptor is immutable and handed out as clones
type Runtime struct {
	desc     core.Descriptor
	analyzer core.Analyzer
	engine   *confidence.Engine
	opts     Options

	mu         sync.Mutex
	sem        *semaphore.Weighted
	workers    int64
	httpServer *http.Server
	client     *registry.Client
	closed     atomic.Bool
}

// New creates a Runtime for analyzer, identified by desc.
func New(desc core.Descriptor, analyzer core.Analyzer, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Config:   DefaultConfig,
		Outcomes: evaluation.NewMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Outcomes == nil {
		opts.Outcomes = evaluation.NewMemoryStore()
	}

	if opts.Config.Strategy == "" {
		opts.Config.Strategy = confidence.StrategyHybrid
	}

	workers := int64(max(opts.Config.MaxWorkers, 1))

	return &Runtime{
		desc:     desc.Clone(),
		analyzer: analyzer,
		engine: confidence.NewEngine(func(o *confidence.Options) {
			o.Strategy = opts.Config.Strategy
			if opts.Config.DefaultConfidence >= 0 {
				o.Default = opts.Config.DefaultConfidence
			}
		}),
		opts:    opts,
		sem:     semaphore.NewWeighted(workers),
		workers: workers,
	}
}

// Start binds a listener on port (0 picks a free port), starts serving and
// kicks off registry registration in the background. Registration failures
// are logged and retried; they never fail Start. maxWorkers > 0 overrides
// Config.MaxWorkers. The bound port is returned.
func (r *Runtime) Start(port, maxWorkers int) (int, error) {
	if r.closed.Load() {
		return 0, core.ErrClosed
	}

	if err := r.desc.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Shutdown may have run while waiting for the lock.
	if r.closed.Load() {
		return 0, core.ErrClosed
	}

	if r.httpServer != nil {
		return 0, core.ErrAlreadyStarted
	}

	if maxWorkers > 0 {
		r.workers = int64(maxWorkers)
		r.sem = semaphore.NewWeighted(r.workers)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(r.opts.Config.Host, strconv.Itoa(port)))
	if err != nil {
		return 0, fmt.Errorf("listen on port %d: %w", port, err)
	}

	actual := ln.Addr().(*net.TCPAddr).Port

	host := r.opts.Config.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	address := net.JoinHostPort(host, strconv.Itoa(actual))

	srvOpts := append([]func(o *server.Options){func(o *server.Options) {
		o.BaseURL = "http://" + address
		o.Metrics = r.opts.Metrics
		o.Logger = r.opts.Logger
	}}, r.opts.ServerOptions...)

	srv := server.New(r, srvOpts...)

	r.httpServer = &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	r.httpServer.RegisterOnShutdown(srv.CloseStreams)

	go func(hs *http.Server) {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.opts.Logger.Error("HTTP server stopped", "error", err)
		}
	}(r.httpServer)

	r.opts.Logger.Info("Agent serving", "agent_id", r.desc.ID, "address", address, "workers", r.workers)

	if !r.opts.Config.DisableRegistration {
		r.startRegistration(address)
	}

	return actual, nil
}

func (r *Runtime) startRegistration(address string) {
	reg := r.opts.Registry
	endpoint := r.opts.RegistryEndpoint

	if reg == nil {
		httpReg := registry.NewHTTPRegistry(endpoint)
		reg = httpReg
		endpoint = httpReg.Endpoint()
	}

	desc := r.desc.Clone()
	if desc.Metadata == nil {
		desc.Metadata = make(map[string]string, 1)
	}

	desc.Metadata["address"] = address

	clientOpts := append([]func(o *registry.Options){func(o *registry.Options) {
		o.Endpoint = endpoint
		o.Logger = r.opts.Logger
		o.OnTransition = r.onLeaseTransition
	}}, r.opts.RegistryOptions...)

	r.client = registry.NewClient(reg, desc, clientOpts...)

	if err := r.client.Start(); err != nil {
		r.opts.Logger.Warn("Registry client not started", "error", err)
	}
}

func (r *Runtime) onLeaseTransition(t registry.Transition) {
	r.opts.Metrics.LeaseTransition(t.To.String())

	if rl, ok := r.opts.Logger.(*logging.RuntimeLogger); ok {
		rl.LogLeaseTransition(t.From.String(), t.To.String(), t.LeaseID)
		return
	}

	r.opts.Logger.Info("Lease state changed", "from", t.From.String(), "to", t.To.String(), "lease_id", t.LeaseID)
}

// GetCapabilities returns a snapshot of the agent descriptor.
func (r *Runtime) GetCapabilities() core.Descriptor {
	return r.desc.Clone()
}

// HealthCheck asks the analyzer when it implements core.HealthChecker and
// reports healthy otherwise. Registry state does not affect the answer.
func (r *Runtime) HealthCheck(ctx context.Context) (status core.HealthStatus) {
	if r.closed.Load() {
		return core.HealthStatus{Status: core.HealthUnhealthy, Message: "shutting down"}
	}

	hc, ok := r.analyzer.(core.HealthChecker)
	if !ok {
		return core.Healthy("")
	}

	defer func() {
		if p := recover(); p != nil {
			status = core.HealthStatus{Status: core.HealthUnhealthy, Message: fmt.Sprintf("health check panicked: %v", p)}
		}
	}()

	return hc.CheckHealth(ctx)
}

// RegistryState reports the lease state. It is Unregistered until Start
// began registration.
func (r *Runtime) RegistryState() registry.State {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()

	if client == nil {
		return registry.StateUnregistered
	}

	return client.State()
}

// RecordOutcome stores whether a result reported with confidence turned out
// correct. The statistics feed WithCalibration.
func (r *Runtime) RecordOutcome(ctx context.Context, confidence float64, correct bool) error {
	if confidence < 0 || confidence > 1 {
		return &core.ValidationError{Field: "confidence", Message: "must be within [0,1]"}
	}

	return r.opts.Outcomes.Record(ctx, evaluation.Outcome{
		AgentID:    r.desc.ID,
		Confidence: confidence,
		Correct:    correct,
		At:         time.Now(),
	})
}

// Shutdown stops the registry client (best-effort unregister bounded by the
// client's unregister timeout), then drains in-flight requests for up to
// gracePeriod before forcing connections closed. It always returns; the
// error reports which bound was exceeded. Subsequent calls return nil.
func (r *Runtime) Shutdown(gracePeriod time.Duration) error {
	if r.closed.Swap(true) {
		return nil
	}

	if rl, ok := r.opts.Logger.(*logging.RuntimeLogger); ok {
		defer rl.StartTimer("shutdown")()
	}

	r.mu.Lock()
	client, hs, sem, workers := r.client, r.httpServer, r.sem, r.workers
	r.mu.Unlock()

	var errs []error

	if client != nil {
		if err := client.Stop(); err != nil {
			r.opts.Logger.Warn("Registry client stopped uncleanly", "error", err)
			errs = append(errs, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	drained := true

	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			_ = hs.Close()

			r.opts.Logger.Warn("Forced HTTP shutdown", "error", err)

			drained = false
		}
	}

	// Direct Execute callers do not go through the HTTP server.
	if err := sem.Acquire(ctx, workers); err != nil {
		drained = false
	} else {
		sem.Release(workers)
	}

	if !drained {
		errs = append(errs, &core.ShutdownTimeoutError{Phase: "drain", Timeout: gracePeriod})
	}

	r.opts.Logger.Info("Agent stopped", "agent_id", r.desc.ID)

	return errors.Join(errs...)
}

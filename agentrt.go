// Package agentrt wires an agent runtime from configuration.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (file plus environment)
//  2. Calling New with their core.Analyzer
//  3. Calling Serve, which blocks until the context ends and then shuts the
//     runtime down within the configured grace period
//
// New turns the configuration into concrete collaborators: an LRU or Redis
// result cache, an in-memory or SQLite outcome store, the rego admission
// policy, prometheus metrics and a structured logger. Anything can be
// overridden with runtime options.
package agentrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/evaluation"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
	"github.com/hupe1980/agentrt/policy"
	"github.com/hupe1980/agentrt/runtime"
)

// Agent is a configured runtime plus the resources it owns.
type Agent struct {
	*runtime.Runtime

	cfg     config.Config
	logger  logging.Logger
	closers []io.Closer
}

// New builds a runtime for analyzer from cfg. Options are applied after the
// configuration, so they win.
func New(ctx context.Context, cfg config.Config, analyzer core.Analyzer, optFns ...func(o *runtime.Options)) (*Agent, error) {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:   logging.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Output:  os.Stderr,
		AgentID: cfg.Agent.ID,
	}).WithComponent("runtime")

	a := &Agent{cfg: cfg, logger: logger}

	desc := core.NewDescriptor(cfg.Agent.ID, cfg.Agent.Name, cfg.Agent.Capabilities, cfg.Agent.Expertise)
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	opts := []func(o *runtime.Options){
		runtime.WithLogger(logger),
		runtime.WithConfig(runtime.Config{
			MaxWorkers:          cfg.Server.MaxWorkers,
			Host:                cfg.Server.Host,
			Strategy:            confidence.Strategy(cfg.Confidence.Strategy),
			DefaultConfidence:   cfg.Confidence.Default,
			ExecuteTimeout:      cfg.Server.ExecuteTimeout.Std(),
			DisableRegistration: cfg.Registry.Disabled,
		}),
		runtime.WithRegistryEndpoint(cfg.Registry.Endpoint),
	}

	if cfg.Metrics {
		opts = append(opts, runtime.WithMetrics(metrics.New("agentrt")))
	}

	store, err := a.cacheStore()
	if err != nil {
		return nil, a.closeWith(err)
	}

	if store != nil {
		opts = append(opts, runtime.WithCache(store))
	}

	outcomes, err := a.outcomeStore()
	if err != nil {
		return nil, a.closeWith(err)
	}

	opts = append(opts, runtime.WithOutcomes(outcomes))

	if cfg.Policy.Enabled {
		module := ""

		if cfg.Policy.File != "" {
			b, err := os.ReadFile(cfg.Policy.File)
			if err != nil {
				return nil, a.closeWith(fmt.Errorf("read policy: %w", err))
			}

			module = string(b)
		}

		engine, err := policy.NewEngine(ctx, module)
		if err != nil {
			return nil, a.closeWith(err)
		}

		opts = append(opts, runtime.WithAdmission(engine))
	}

	if cfg.Confidence.Calibrate {
		opts = append(opts, runtime.WithTransforms(runtime.WithCalibration(outcomes)))
	}

	if cfg.Confidence.MinConfidence > 0 {
		opts = append(opts, runtime.WithTransforms(runtime.RequireMinimumConfidence(cfg.Confidence.MinConfidence)))
	}

	opts = append(opts, runtime.WithTransforms(runtime.WithReasoning("")))
	opts = append(opts, optFns...)

	a.Runtime = runtime.New(desc, analyzer, opts...)

	return a, nil
}

func (a *Agent) cacheStore() (cache.Store, error) {
	c := a.cfg.Cache

	switch {
	case c.RedisURL != "":
		s, err := cache.NewRedisStoreFromURL(c.RedisURL, func(o *cache.RedisOptions) {
			o.TTL = c.TTL.Std()
		})
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, s)

		return s, nil
	case c.Size > 0:
		return cache.NewLRUStore(c.Size, c.TTL.Std())
	default:
		return nil, nil
	}
}

func (a *Agent) outcomeStore() (evaluation.Store, error) {
	if a.cfg.Evaluation.SQLitePath == "" {
		return evaluation.NewMemoryStore(), nil
	}

	s, err := evaluation.NewSQLiteStore(a.cfg.Evaluation.SQLitePath)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, s)

	return s, nil
}

func (a *Agent) closeWith(err error) error {
	return errors.Join(err, a.close())
}

func (a *Agent) close() error {
	var errs []error

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}

// Serve starts the runtime on the configured port and blocks until ctx is
// done. It then shuts down within the configured grace period and releases
// owned resources.
func (a *Agent) Serve(ctx context.Context) error {
	port, err := a.Start(a.cfg.Server.Port, a.cfg.Server.MaxWorkers)
	if err != nil {
		return errors.Join(err, a.close())
	}

	a.logger.Info("Agent started", "port", port, "registry", a.cfg.Registry.Endpoint)

	<-ctx.Done()

	grace := a.cfg.Server.ShutdownGrace.Std()
	if grace <= 0 {
		grace = 30 * time.Second
	}

	return errors.Join(a.Shutdown(grace), a.close())
}

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

// Metadata keys set on every result.
const (
	MetaRequestID = "request_id"
	MetaAgentID   = "agent_id"
	MetaCache     = "cache"
)

// Invocation identifies one Execute call for transforms.
type Invocation struct {
	Descriptor core.Descriptor
	Request    core.Request
	RequestID  string
}

// Execute runs the analyzer for req and returns the normalized result.
//
// Failures are typed: *core.ValidationError for rejected input,
// *core.ExecutionError when the hook or a transform failed (panics
// included), the context error on cancellation, core.ErrClosed after
// Shutdown.
func (r *Runtime) Execute(ctx context.Context, req core.Request) (*core.Result, error) {
	if r.closed.Load() {
		return nil, core.ErrClosed
	}

	start := time.Now()

	done := r.opts.Metrics.TrackInFlight()
	defer done()

	res, outcome, err := r.execute(ctx, req)

	var conf float64
	if res != nil {
		conf = res.Confidence
	}

	r.opts.Metrics.ObserveExecution(outcome, conf, time.Since(start))
	r.logExecution(req.Task, conf, time.Since(start), err)

	return res, err
}

func (r *Runtime) execute(ctx context.Context, req core.Request) (*core.Result, string, error) {
	if err := r.validate(req); err != nil {
		return nil, metrics.OutcomeRejected, err
	}

	if r.opts.Admission != nil {
		if err := r.opts.Admission.Admit(ctx, r.desc, req); err != nil {
			return nil, metrics.OutcomeRejected, err
		}
	}

	inv := Invocation{
		Descriptor: r.desc,
		Request:    req,
		RequestID:  uuid.NewString(),
	}

	var key string

	if r.opts.Cache != nil {
		k, err := cache.Key(r.desc.ID, req)
		if err != nil {
			r.opts.Logger.Debug("Request not cacheable", "task", req.Task, "error", err)
		} else {
			key = k

			if hit, ok, err := r.opts.Cache.Get(ctx, key); err != nil {
				r.opts.Logger.Warn("Cache lookup failed", "task", req.Task, "error", err)
			} else if ok {
				hit = hit.WithMetadata(MetaRequestID, inv.RequestID).WithMetadata(MetaCache, "hit")
				return hit, metrics.OutcomeCached, nil
			}
		}
	}

	if r.opts.Config.ExecuteTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.opts.Config.ExecuteTimeout)
		defer cancel()
	}

	notes := &uncertaintyNotes{}
	ctx = context.WithValue(ctx, uncertaintyKey{}, notes)

	raw, err := r.invoke(ctx, req)
	if err != nil {
		return nil, metrics.OutcomeError, err
	}

	normalized := r.engine.Normalize(raw)
	res := &normalized
	res.Uncertainties = append(res.Uncertainties, notes.list()...)

	for _, t := range r.opts.Transforms {
		out, err := t(ctx, inv, res)
		if err != nil {
			return nil, metrics.OutcomeError, asExecutionError(req.Task, err)
		}

		if out != nil {
			res = out
		}
	}

	res.Confidence = core.Clamp01(res.Confidence)
	res = res.WithMetadata(MetaRequestID, inv.RequestID).WithMetadata(MetaAgentID, r.desc.ID)

	if key != "" {
		if err := r.opts.Cache.Set(ctx, key, res); err != nil {
			r.opts.Logger.Warn("Cache store failed", "task", req.Task, "error", err)
		}
	}

	return res, metrics.OutcomeSuccess, nil
}

func (r *Runtime) validate(req core.Request) error {
	if strings.TrimSpace(req.Task) == "" {
		return &core.ValidationError{Field: "task", Message: "must not be empty"}
	}

	for _, v := range r.opts.Validators {
		if err := v(req); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				return err
			}

			return &core.ValidationError{Message: err.Error()}
		}
	}

	return nil
}

type hookOutcome struct {
	raw any
	err error
}

// invoke runs the hook on the worker pool. The hook goroutine owns its
// worker slot until it returns, even when ctx ends first.
func (r *Runtime) invoke(ctx context.Context, req core.Request) (any, error) {
	r.mu.Lock()
	sem := r.sem
	r.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	ch := make(chan hookOutcome, 1)

	go func() {
		defer sem.Release(1)

		defer func() {
			if p := recover(); p != nil {
				cause := fmt.Errorf("panic: %v", p)
				if rl, ok := r.opts.Logger.(*logging.RuntimeLogger); ok {
					rl.ErrorWithStack(cause, "Analyzer panicked")
				}

				ch <- hookOutcome{err: &core.ExecutionError{Task: req.Task, Cause: cause}}
			}
		}()

		raw, err := r.analyzer.Analyze(ctx, req.Task, req.Data)
		ch <- hookOutcome{raw: raw, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, asExecutionError(req.Task, out.err)
		}

		return out.raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// asExecutionError keeps typed request errors and context errors intact and
// wraps everything else.
func asExecutionError(task string, err error) error {
	var (
		ve *core.ValidationError
		ee *core.ExecutionError
	)

	if errors.As(err, &ve) || errors.As(err, &ee) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &core.ExecutionError{Task: task, Cause: err}
}

func (r *Runtime) logExecution(task string, conf float64, d time.Duration, err error) {
	if rl, ok := r.opts.Logger.(*logging.RuntimeLogger); ok {
		rl.LogExecution(task, conf, d, err)
		return
	}

	if err != nil {
		r.opts.Logger.Warn("Execution failed", "task", task, "duration", d, "error", err)
		return
	}

	r.opts.Logger.Debug("Execution completed", "task", task, "confidence", conf, "duration", d)
}

type uncertaintyKey struct{}

type uncertaintyNotes struct {
	mu    sync.Mutex
	items []string
}

func (n *uncertaintyNotes) add(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.items = append(n.items, msg)
}

func (n *uncertaintyNotes) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.items...)
}

// NoteUncertainty records an uncertainty from inside an analyzer hook. The
// note is appended to the result's uncertainties. Outside an Execute call it
// does nothing.
func NoteUncertainty(ctx context.Context, msg string) {
	if n, ok := ctx.Value(uncertaintyKey{}).(*uncertaintyNotes); ok && msg != "" {
		n.add(msg)
	}
}

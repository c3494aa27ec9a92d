package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/registry"
)

func testDescriptor() core.Descriptor {
	return testutil.NewDescriptorBuilder("agent-1").
		Name("Analyst").
		Capabilities("analysis").
		Expertise(0.8).
		Build()
}

func fastRegistry(o *registry.Options) {
	o.RenewInterval = 20 * time.Millisecond
	o.RetryBackoff = 10 * time.Millisecond
	o.RegisterTimeout = 50 * time.Millisecond
	o.RenewTimeout = 50 * time.Millisecond
	o.UnregisterTimeout = 50 * time.Millisecond
}

type healthyAnalyzer struct {
	status core.HealthStatus
	panic  bool
}

func (h healthyAnalyzer) Analyze(context.Context, string, any) (any, error) { return "ok", nil }

func (h healthyAnalyzer) CheckHealth(context.Context) core.HealthStatus {
	if h.panic {
		panic("health check exploded")
	}

	return h.status
}

func TestStart_RegistryUnreachable(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	reg.SetUnavailable(true)

	rt := New(testDescriptor(), core.AnalyzerFunc(func(_ context.Context, task string, _ any) (any, error) {
		return core.Scored{Value: task, Confidence: 0.7}, nil
	}), func(o *Options) {
		o.Registry = reg
		o.RegistryOptions = append(o.RegistryOptions, fastRegistry)
	})

	port, err := rt.Start(0, 2)
	require.NoError(t, err)
	require.NotZero(t, port)

	base := fmt.Sprintf("http://localhost:%d", port)

	for i := 0; i < 10; i++ {
		assert.NotEqual(t, registry.StateActive, rt.RegistryState())
		time.Sleep(10 * time.Millisecond)
	}

	res, err := rt.Execute(context.Background(), core.Request{Task: "summarize"})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)

	assert.Equal(t, "agent-1", rt.GetCapabilities().ID)
	assert.Equal(t, core.HealthHealthy, rt.HealthCheck(context.Background()).Status)

	resp, err := http.Get(base + "/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/v1/execute", "application/json", strings.NewReader(`{"task":"remote"}`))
	require.NoError(t, err)

	var body core.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "remote", body.Value)

	assert.Greater(t, reg.Calls().Register, 1)
	assert.NotEqual(t, registry.StateActive, rt.RegistryState())

	require.NoError(t, rt.Shutdown(time.Second))
	assert.Equal(t, registry.StateTerminated, rt.RegistryState())
}

func TestStart_RegistersWithAddress(t *testing.T) {
	reg := registry.NewInMemoryRegistry()

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return "ok", nil
	}), WithRegistry(reg), func(o *Options) {
		o.RegistryOptions = append(o.RegistryOptions, fastRegistry)
	})

	port, err := rt.Start(0, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rt.RegistryState() == registry.StateActive
	}, time.Second, 5*time.Millisecond)

	agents := reg.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, fmt.Sprintf("localhost:%d", port), agents[0].Descriptor.Metadata["address"])

	_, err = rt.Start(0, 0)
	assert.ErrorIs(t, err, core.ErrAlreadyStarted)

	require.NoError(t, rt.Shutdown(time.Second))
	assert.Empty(t, reg.Agents())
}

func TestShutdown_BoundedWhenUnregisterHangs(t *testing.T) {
	reg := testutil.NewFakeRegistry()
	t.Cleanup(reg.Release)

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return "ok", nil
	}), WithRegistry(reg), func(o *Options) {
		o.RegistryOptions = append(o.RegistryOptions, fastRegistry)
	})

	_, err := rt.Start(0, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rt.RegistryState() == registry.StateActive
	}, time.Second, 5*time.Millisecond)

	reg.HangUnregister(true)

	grace := 100 * time.Millisecond
	start := time.Now()
	err = rt.Shutdown(grace)
	elapsed := time.Since(start)

	var st *core.ShutdownTimeoutError
	require.ErrorAs(t, err, &st)
	assert.Equal(t, "unregister", st.Phase)

	assert.Less(t, elapsed, grace+50*time.Millisecond+500*time.Millisecond)
	assert.Equal(t, registry.StateTerminated, rt.RegistryState())
}

func TestShutdown_DrainTimeout(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		close(started)
		<-release

		return "late", nil
	}))

	go func() { _, _ = rt.Execute(context.Background(), core.Request{Task: "slow"}) }()

	<-started

	err := rt.Shutdown(30 * time.Millisecond)
	close(release)

	var st *core.ShutdownTimeoutError
	require.ErrorAs(t, err, &st)
	assert.Equal(t, "drain", st.Phase)

	_, err = rt.Execute(context.Background(), core.Request{Task: "after"})
	assert.ErrorIs(t, err, core.ErrClosed)
	assert.Equal(t, core.HealthUnhealthy, rt.HealthCheck(context.Background()).Status)
	assert.NoError(t, rt.Shutdown(time.Second))
}

func TestShutdown_WaitsForInFlight(t *testing.T) {
	var finished atomic.Bool

	started := make(chan struct{})

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)

		return "done", nil
	}))

	go func() { _, _ = rt.Execute(context.Background(), core.Request{Task: "work"}) }()

	<-started
	require.NoError(t, rt.Shutdown(time.Second))
	assert.True(t, finished.Load())
}

func TestHealthCheck(t *testing.T) {
	rt := New(testDescriptor(), healthyAnalyzer{status: core.HealthStatus{Status: core.HealthDegraded, Message: "warming up"}})
	assert.Equal(t, core.HealthDegraded, rt.HealthCheck(context.Background()).Status)

	rt = New(testDescriptor(), healthyAnalyzer{panic: true})
	status := rt.HealthCheck(context.Background())
	assert.Equal(t, core.HealthUnhealthy, status.Status)
	assert.Contains(t, status.Message, "health check exploded")
}

func TestGetCapabilities_ReturnsSnapshot(t *testing.T) {
	rt := New(testDescriptor(), healthyAnalyzer{})

	d := rt.GetCapabilities()
	d.Capabilities[0] = "mutated"

	assert.Equal(t, []string{"analysis"}, rt.GetCapabilities().Capabilities)
}

func TestStart_InvalidDescriptor(t *testing.T) {
	rt := New(core.Descriptor{}, healthyAnalyzer{})

	_, err := rt.Start(0, 0)

	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestStart_AfterConcurrentShutdown(t *testing.T) {
	rt := New(testDescriptor(), healthyAnalyzer{}, WithConfig(Config{MaxWorkers: 1, DisableRegistration: true}))

	// Start blocks on the lock while Shutdown marks the runtime closed.
	rt.mu.Lock()

	done := make(chan error, 1)
	go func() {
		_, err := rt.Start(0, 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	rt.closed.Store(true)
	rt.mu.Unlock()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, core.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Nil(t, rt.httpServer)
	assert.Nil(t, rt.client)
}

func TestNew_ZeroDefaultConfidence(t *testing.T) {
	zero := New(testDescriptor(), analyzerReturning(42),
		WithConfig(Config{Strategy: confidence.StrategyExplicit, DefaultConfidence: 0}))

	res, err := zero.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.Zero(t, res.Confidence)

	fallback := New(testDescriptor(), analyzerReturning(42),
		WithConfig(Config{Strategy: confidence.StrategyExplicit, DefaultConfidence: -1}))

	res, err = fallback.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.InDelta(t, confidence.DefaultConfidence, res.Confidence, 1e-9)
}

func TestWorkerPoolBound(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		mu.Lock()
		current++
		peak = max(peak, current)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()

		return "ok", nil
	}), WithConfig(Config{MaxWorkers: 2}))

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := rt.Execute(context.Background(), core.Request{Task: "t"})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}

func TestRecordOutcome(t *testing.T) {
	rt := New(testDescriptor(), healthyAnalyzer{})

	require.NoError(t, rt.RecordOutcome(context.Background(), 0.8, true))

	var ve *core.ValidationError
	assert.True(t, errors.As(rt.RecordOutcome(context.Background(), 1.5, true), &ve))
}

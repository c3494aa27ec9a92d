package agentrt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
)

func testConfig(t *testing.T) config.Config {
	cfg := config.Defaults()
	cfg.Server.Port = 0
	cfg.Server.ShutdownGrace = config.Duration(time.Second)
	cfg.Registry.Disabled = true
	cfg.Cache.Size = 8
	cfg.Policy.Enabled = true
	cfg.Evaluation.SQLitePath = filepath.Join(t.TempDir(), "outcomes.db")
	cfg.Log.Level = "error"

	return cfg
}

func TestNew_WiresConfiguredStack(t *testing.T) {
	var calls int

	a, err := New(context.Background(), testConfig(t), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		calls++
		return "This is definitely right", nil
	}))
	require.NoError(t, err)

	ctx := context.Background()

	res, err := a.Execute(ctx, core.Request{Task: "check", Data: map[string]any{"capability": "analysis"}})
	require.NoError(t, err)
	assert.Contains(t, res.Reasoning, "Analysis completed by Analysis Agent")

	_, err = a.Execute(ctx, core.Request{Task: "check", Data: map[string]any{"capability": "analysis"}})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call served from cache")

	_, err = a.Execute(ctx, core.Request{Task: "check", Data: map[string]any{"capability": "translation"}})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, a.RecordOutcome(ctx, 0.8, true))
}

func TestNew_InvalidAgent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.ID = ""

	_, err := New(context.Background(), cfg, core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return nil, nil
	}))
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return "ok", nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- a.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return a.HealthCheck(context.Background()).Status == core.HealthHealthy
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/evaluation"
	"github.com/hupe1980/agentrt/metrics"
)

func analyzerReturning(v any) core.Analyzer {
	return core.AnalyzerFunc(func(context.Context, string, any) (any, error) { return v, nil })
}

type admitFunc func(ctx context.Context, desc core.Descriptor, req core.Request) error

func (f admitFunc) Admit(ctx context.Context, desc core.Descriptor, req core.Request) error {
	return f(ctx, desc, req)
}

func TestExecute_HybridScenario(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning(map[string]any{
		"text": "This is definitely correct, confidence 90%",
	}))

	res, err := rt.Execute(context.Background(), core.Request{Task: "verify"})
	require.NoError(t, err)

	// 0.7 * 0.90 (pattern) + 0.3 * (0.5 + 0.15 for "definitely")
	assert.InDelta(t, 0.825, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Metadata[MetaRequestID])
	assert.Equal(t, "agent-1", res.Metadata[MetaAgentID])
}

func TestExecute_ScoredUsedVerbatim(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning(core.Scored{Value: "x", Confidence: 0.42}))

	res, err := rt.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Value)
	assert.InDelta(t, 0.42, res.Confidence, 1e-9)
}

func TestExecute_EmptyTask(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning("x"))

	_, err := rt.Execute(context.Background(), core.Request{Task: "  "})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "task", ve.Field)
}

func TestExecute_HookError(t *testing.T) {
	cause := errors.New("model offline")

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return nil, cause
	}))

	_, err := rt.Execute(context.Background(), core.Request{Task: "t"})

	var ee *core.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "t", ee.Task)
	assert.ErrorIs(t, err, cause)
}

func TestExecute_HookPanicIsContained(t *testing.T) {
	var calls atomic.Int32

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}

		return "recovered", nil
	}), WithConfig(Config{MaxWorkers: 1}))

	_, err := rt.Execute(context.Background(), core.Request{Task: "t"})

	var ee *core.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "boom")

	// the worker slot was released
	res, err := rt.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Value)
}

func TestExecute_Timeout(t *testing.T) {
	rt := New(testDescriptor(), core.AnalyzerFunc(func(ctx context.Context, _ string, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithConfig(Config{MaxWorkers: 1, ExecuteTimeout: 20 * time.Millisecond}))

	_, err := rt.Execute(context.Background(), core.Request{Task: "t"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_Validators(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning("x"), WithValidators(RequireFields("city")))

	_, err := rt.Execute(context.Background(), core.Request{Task: "forecast", Data: map[string]any{"days": 3}})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "city", ve.Field)

	_, err = rt.Execute(context.Background(), core.Request{Task: "forecast", Data: map[string]any{"city": "Oslo"}})
	assert.NoError(t, err)
}

func TestExecute_SchemaValidator(t *testing.T) {
	type payload struct {
		City string `json:"city"`
		Days int    `json:"days"`
	}

	rt := New(testDescriptor(), analyzerReturning("x"), WithValidators(RequireSchema(SchemaFor(payload{}))))

	_, err := rt.Execute(context.Background(), core.Request{Task: "t", Data: map[string]any{"city": "Oslo", "days": "three"}})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "days", ve.Field)

	_, err = rt.Execute(context.Background(), core.Request{Task: "t", Data: payload{City: "Oslo", Days: 3}})
	assert.NoError(t, err)
}

func TestExecute_Admission(t *testing.T) {
	var hookCalled atomic.Bool

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		hookCalled.Store(true)
		return "x", nil
	}), WithAdmission(admitFunc(func(_ context.Context, _ core.Descriptor, req core.Request) error {
		if req.Task == "forbidden" {
			return &core.ValidationError{Message: "request denied: forbidden task"}
		}

		return nil
	})))

	_, err := rt.Execute(context.Background(), core.Request{Task: "forbidden"})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.False(t, hookCalled.Load())

	_, err = rt.Execute(context.Background(), core.Request{Task: "allowed"})
	assert.NoError(t, err)
}

func TestExecute_TransformsRunInOrder(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning(core.Scored{Value: "x", Confidence: 0.99}),
		WithTransforms(
			ClampConfidence(0.2, 0.9),
			WithReasoning(""),
			WithUncertainties(LowConfidenceNote(0.95)),
		))

	res, err := rt.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "Analysis completed by Analyst with confidence 0.90", res.Reasoning)
	assert.Equal(t, []string{"low confidence (0.90)"}, res.Uncertainties)
}

func TestExecute_RequireMinimumConfidence(t *testing.T) {
	rt := New(testDescriptor(), analyzerReturning(core.Scored{Value: "x", Confidence: 0.3}),
		WithTransforms(RequireMinimumConfidence(0.6)))

	_, err := rt.Execute(context.Background(), core.Request{Task: "t"})

	var ee *core.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, err.Error(), "below required minimum")
}

func TestExecute_NoteUncertainty(t *testing.T) {
	rt := New(testDescriptor(), core.AnalyzerFunc(func(ctx context.Context, _ string, _ any) (any, error) {
		NoteUncertainty(ctx, "sensor data is stale")
		return core.Scored{Value: "x", Confidence: 0.6}, nil
	}))

	res, err := rt.Execute(context.Background(), core.Request{Task: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sensor data is stale"}, res.Uncertainties)

	NoteUncertainty(context.Background(), "ignored")
}

func TestExecute_Cache(t *testing.T) {
	var calls atomic.Int32

	store, err := cache.NewLRUStore(16, time.Minute)
	require.NoError(t, err)

	m := metrics.New("test")

	rt := New(testDescriptor(), core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		calls.Add(1)
		return core.Scored{Value: "x", Confidence: 0.7}, nil
	}), WithCache(store), WithMetrics(m))

	req := core.Request{Task: "t", Data: map[string]any{"a": 1}}

	first, err := rt.Execute(context.Background(), req)
	require.NoError(t, err)

	second, err := rt.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "hit", second.Metadata[MetaCache])
	assert.NotEqual(t, first.Metadata[MetaRequestID], second.Metadata[MetaRequestID])
	assert.InDelta(t, first.Confidence, second.Confidence, 1e-9)
}

func TestExecute_CacheSharedAcrossAgents(t *testing.T) {
	store, err := cache.NewLRUStore(16, time.Minute)
	require.NoError(t, err)

	weather := New(core.NewDescriptor("weather", "Weather", []string{"forecast"}, 0.8),
		analyzerReturning(core.Scored{Value: "sunny", Confidence: 0.9}), WithCache(store))
	security := New(core.NewDescriptor("security", "Security", []string{"scan"}, 0.8),
		analyzerReturning(core.Scored{Value: "vulnerable", Confidence: 0.3}), WithCache(store))

	req := core.Request{Task: "analyze", Data: "same input"}

	_, err = weather.Execute(context.Background(), req)
	require.NoError(t, err)

	res, err := security.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "vulnerable", res.Value)
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
	assert.Equal(t, "security", res.Metadata[MetaAgentID])
	assert.Empty(t, res.Metadata[MetaCache])
	assert.Equal(t, 2, store.Len())
}

func TestExecute_Calibration(t *testing.T) {
	store := evaluation.NewMemoryStore()
	ctx := context.Background()

	// reports 0.9 but is right half the time
	for i := 0; i < 20; i++ {
		require.NoError(t, store.Record(ctx, evaluation.Outcome{AgentID: "agent-1", Confidence: 0.9, Correct: i%2 == 0}))
	}

	rt := New(testDescriptor(), analyzerReturning(core.Scored{Value: "x", Confidence: 0.9}),
		WithOutcomes(store), WithTransforms(WithCalibration(store)))

	res, err := rt.Execute(ctx, core.Request{Task: "t"})
	require.NoError(t, err)
	assert.Less(t, res.Confidence, 0.9)
	assert.Equal(t, "0.9000", res.Metadata["calibrated_from"])
}

func TestExecute_ConfidenceAlwaysBounded(t *testing.T) {
	raws := []any{
		"absolutely certain, confidence: 250",
		map[string]any{"confidence": -3},
		core.Scored{Value: "x", Confidence: 7},
		nil,
		42,
	}

	rt := New(testDescriptor(), core.AnalyzerFunc(func(_ context.Context, _ string, data any) (any, error) {
		return data, nil
	}))

	for _, raw := range raws {
		res, err := rt.Execute(context.Background(), core.Request{Task: "t", Data: raw})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
)

func scored(v any, c float64) core.Analyzer {
	return core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return core.Scored{Value: v, Confidence: c}, nil
	})
}

func failing(msg string) core.Analyzer {
	return core.AnalyzerFunc(func(context.Context, string, any) (any, error) {
		return nil, errors.New(msg)
	})
}

func TestEnsemble_Agreement(t *testing.T) {
	e := NewEnsemble([]core.Analyzer{scored("a", 0.9), scored("a", 0.9), scored("a", 0.9)})

	raw, err := e.Analyze(context.Background(), "t", nil)
	require.NoError(t, err)

	res := raw.(*core.Result)
	assert.Equal(t, "a", res.Value)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "0.95", res.Metadata["consistency"])
	assert.Empty(t, res.Uncertainties)
}

func TestEnsemble_Disagreement(t *testing.T) {
	e := NewEnsemble([]core.Analyzer{scored("a", 0.2), scored("b", 0.8)}, func(o *EnsembleOptions) {
		o.Strategy = confidence.AggregateMean
	})

	raw, err := e.Analyze(context.Background(), "t", nil)
	require.NoError(t, err)

	res := raw.(*core.Result)
	assert.Equal(t, "b", res.Value)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
	assert.Equal(t, "0.50", res.Metadata["consistency"])
	assert.Contains(t, res.Uncertainties, "ensemble members disagree")
}

func TestEnsemble_MemberFailure(t *testing.T) {
	e := NewEnsemble([]core.Analyzer{scored("a", 0.9), failing("down")})

	_, err := e.Analyze(context.Background(), "t", nil)
	assert.ErrorContains(t, err, "down")

	_, err = NewEnsemble(nil).Analyze(context.Background(), "t", nil)
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	f := NewFallback(0.7, failing("offline"), scored("weak", 0.4), scored("strong", 0.8), scored("unused", 0.99))

	raw, err := f.Analyze(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "strong", raw.(*core.Result).Value)
}

func TestFallback_NoneConfident(t *testing.T) {
	f := NewFallback(0.9, scored("weak", 0.4), scored("better", 0.6))

	raw, err := f.Analyze(context.Background(), "t", nil)
	require.NoError(t, err)

	res := raw.(*core.Result)
	assert.Equal(t, "better", res.Value)
	assert.Len(t, res.Uncertainties, 1)
}

func TestFallback_AllFail(t *testing.T) {
	_, err := NewFallback(0.5, failing("one"), failing("two")).Analyze(context.Background(), "t", nil)
	assert.ErrorContains(t, err, "one")
	assert.ErrorContains(t, err, "two")
}

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
)

// Fallback tries analyzers in order and returns the first result whose
// confidence reaches the threshold. When none does, the most confident
// result seen is returned. Failing analyzers are skipped; only when all of
// them fail is an error returned.
type Fallback struct {
	threshold float64
	chain     []core.Analyzer
	engine    *confidence.Engine
}

// NewFallback creates a Fallback over chain.
func NewFallback(threshold float64, chain ...core.Analyzer) *Fallback {
	return &Fallback{
		threshold: threshold,
		chain:     chain,
		engine:    confidence.NewEngine(),
	}
}

// Analyze implements core.Analyzer.
func (f *Fallback) Analyze(ctx context.Context, task string, data any) (any, error) {
	var (
		best *core.Result
		errs []error
	)

	for i, a := range f.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := a.Analyze(ctx, task, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("fallback step %d: %w", i, err))
			continue
		}

		res := f.engine.Normalize(raw)
		if res.Confidence >= f.threshold {
			return &res, nil
		}

		if best == nil || res.Confidence > best.Confidence {
			best = &res
		}
	}

	if best == nil {
		if len(errs) == 0 {
			return nil, fmt.Errorf("fallback chain is empty")
		}

		return nil, errors.Join(errs...)
	}

	best.Uncertainties = append(best.Uncertainties,
		fmt.Sprintf("no analyzer reached confidence %.2f", f.threshold))

	return best, nil
}

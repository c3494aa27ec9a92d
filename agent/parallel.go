package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
)

// EnsembleOptions configures an Ensemble.
type EnsembleOptions struct {
	// Strategy combines member confidences. Defaults to consensus.
	Strategy confidence.AggregationStrategy

	// Weights are used by the weighted strategy, one per member.
	Weights []float64

	// Engine normalizes member results. Defaults to a hybrid engine.
	Engine *confidence.Engine
}

// Ensemble runs its members concurrently on the same request.
//
// The result value is the value of the most confident member; its confidence
// is the aggregate of all member confidences. Agreement between members is
// reported in the "consistency" metadata entry. Any member failure fails the
// whole analysis.
type Ensemble struct {
	members []core.Analyzer
	opts    EnsembleOptions
}

// NewEnsemble creates an Ensemble over members.
func NewEnsemble(members []core.Analyzer, optFns ...func(o *EnsembleOptions)) *Ensemble {
	opts := EnsembleOptions{
		Strategy: confidence.AggregateConsensus,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Engine == nil {
		opts.Engine = confidence.NewEngine()
	}

	return &Ensemble{members: members, opts: opts}
}

// Analyze implements core.Analyzer.
func (e *Ensemble) Analyze(ctx context.Context, task string, data any) (any, error) {
	if len(e.members) == 0 {
		return nil, fmt.Errorf("ensemble has no members")
	}

	results := make([]core.Result, len(e.members))

	g, gctx := errgroup.WithContext(ctx)

	for i, m := range e.members {
		g.Go(func() error {
			raw, err := m.Analyze(gctx, task, data)
			if err != nil {
				return fmt.Errorf("ensemble member %d: %w", i, err)
			}

			results[i] = e.opts.Engine.Normalize(raw)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	confs := make([]float64, len(results))
	values := make([]any, len(results))
	best := 0

	for i, r := range results {
		confs[i] = r.Confidence
		values[i] = r.Value

		if r.Confidence > results[best].Confidence {
			best = i
		}
	}

	out := results[best].Clone()
	out.Confidence = confidence.Aggregate(confs, e.opts.Strategy, e.opts.Weights)

	consistency := confidence.ConsistencyConfidence(values)
	if consistency < 0.95 {
		out.Uncertainties = append(out.Uncertainties, "ensemble members disagree")
	}

	return out.WithMetadata("consistency", fmt.Sprintf("%.2f", consistency)).
		WithMetadata("members", fmt.Sprintf("%d", len(results))), nil
}

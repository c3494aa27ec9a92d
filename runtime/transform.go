package runtime

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrt/confidence"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/evaluation"
	"github.com/hupe1980/agentrt/internal/util"
)

// DefaultReasoningTemplate is used by WithReasoning when no template is given.
const DefaultReasoningTemplate = `Analysis completed by {{.name}} with confidence {{printf "%.2f" .confidence}}`

// Transform post-processes a normalized result. Transforms run in the order
// they were configured; each receives the previous one's output. Returning
// a nil result keeps the input. Errors fail the request.
type Transform func(ctx context.Context, inv Invocation, res *core.Result) (*core.Result, error)

// ClampConfidence bounds the confidence to [lo, hi].
func ClampConfidence(lo, hi float64) Transform {
	return func(_ context.Context, _ Invocation, res *core.Result) (*core.Result, error) {
		out := res.Clone()
		out.Confidence = min(max(out.Confidence, lo), hi)

		return out, nil
	}
}

// RequireMinimumConfidence fails the request when the confidence is below
// threshold.
func RequireMinimumConfidence(threshold float64) Transform {
	return func(_ context.Context, inv Invocation, res *core.Result) (*core.Result, error) {
		if res.Confidence < threshold {
			return nil, &core.ExecutionError{
				Task:  inv.Request.Task,
				Cause: fmt.Errorf("confidence %.2f below required minimum %.2f", res.Confidence, threshold),
			}
		}

		return res, nil
	}
}

// WithReasoning fills an empty Reasoning from a text/template. The template
// sees name, id, task, confidence and value. An empty tmpl selects
// DefaultReasoningTemplate.
func WithReasoning(tmpl string) Transform {
	if tmpl == "" {
		tmpl = DefaultReasoningTemplate
	}

	return func(_ context.Context, inv Invocation, res *core.Result) (*core.Result, error) {
		if res.Reasoning != "" {
			return res, nil
		}

		text, err := util.RenderTemplate(tmpl, map[string]any{
			"name":       inv.Descriptor.Name,
			"id":         inv.Descriptor.ID,
			"task":       inv.Request.Task,
			"confidence": res.Confidence,
			"value":      res.Value,
		})
		if err != nil {
			return nil, fmt.Errorf("render reasoning: %w", err)
		}

		out := res.Clone()
		out.Reasoning = text

		return out, nil
	}
}

// WithUncertainties appends the uncertainties reported by fn.
func WithUncertainties(fn func(ctx context.Context, inv Invocation, res *core.Result) []string) Transform {
	return func(ctx context.Context, inv Invocation, res *core.Result) (*core.Result, error) {
		extra := fn(ctx, inv, res)
		if len(extra) == 0 {
			return res, nil
		}

		out := res.Clone()
		out.Uncertainties = append(out.Uncertainties, extra...)

		return out, nil
	}
}

// LowConfidenceNote returns an uncertainty function flagging results below
// threshold, for use with WithUncertainties.
func LowConfidenceNote(threshold float64) func(context.Context, Invocation, *core.Result) []string {
	return func(_ context.Context, _ Invocation, res *core.Result) []string {
		if res.Confidence < threshold {
			return []string{fmt.Sprintf("low confidence (%.2f)", res.Confidence)}
		}

		return nil
	}
}

// WithCalibration adjusts the confidence with the bias and scale learned
// from the agent's recorded outcomes. If the statistics cannot be read the
// result passes through with a note.
func WithCalibration(store evaluation.Store) Transform {
	return func(ctx context.Context, inv Invocation, res *core.Result) (*core.Result, error) {
		stats, err := store.Stats(ctx, inv.Descriptor.ID)
		if err != nil {
			out := res.Clone()
			out.Uncertainties = append(out.Uncertainties, "calibration unavailable")

			return out, nil
		}

		cal := stats.Calibration()
		if cal == evaluation.Identity {
			return res, nil
		}

		out := res.Clone()
		out.Confidence = confidence.Calibrate(res.Confidence, cal.Bias, cal.Scale)

		return out.WithMetadata("calibrated_from", fmt.Sprintf("%.4f", res.Confidence)), nil
	}
}

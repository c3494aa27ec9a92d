package confidence

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hupe1980/agentrt/core"
)

// AggregationStrategy selects how Aggregate combines several confidences.
type AggregationStrategy string

const (
	AggregateMin       AggregationStrategy = "min"
	AggregateMax       AggregationStrategy = "max"
	AggregateMean      AggregationStrategy = "mean"
	AggregateWeighted  AggregationStrategy = "weighted"
	AggregateConsensus AggregationStrategy = "consensus"
)

const (
	consensusVarianceFactor = 2.0
	consensusMaxPenalty     = 0.5

	consistencyFloor = 0.5
	consistencySpan  = 0.45
)

// Aggregate combines confidences with strategy. Weighted aggregation uses the
// caller's weights when they match len(confidences) and sum to a positive
// value, otherwise weights 1..n. Unknown strategies fall back to the mean.
// An empty input yields DefaultConfidence.
func Aggregate(confidences []float64, strategy AggregationStrategy, weights []float64) float64 {
	if len(confidences) == 0 {
		return DefaultConfidence
	}

	switch strategy {
	case AggregateMin:
		out := confidences[0]
		for _, c := range confidences[1:] {
			out = math.Min(out, c)
		}

		return core.Clamp01(out)
	case AggregateMax:
		out := confidences[0]
		for _, c := range confidences[1:] {
			out = math.Max(out, c)
		}

		return core.Clamp01(out)
	case AggregateWeighted:
		return core.Clamp01(weightedMean(confidences, weights))
	case AggregateConsensus:
		m := mean(confidences)

		variance := 0.0
		for _, c := range confidences {
			d := c - m
			variance += d * d
		}

		variance /= float64(len(confidences))

		return core.Clamp01(m * (1 - math.Min(variance*consensusVarianceFactor, consensusMaxPenalty)))
	default:
		return core.Clamp01(mean(confidences))
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func weightedMean(values, weights []float64) float64 {
	if len(weights) == len(values) {
		sum, total := 0.0, 0.0
		for i, v := range values {
			sum += v * weights[i]
			total += weights[i]
		}

		if total > 0 {
			return sum / total
		}
	}

	sum, total := 0.0, 0.0
	for i, v := range values {
		w := float64(i + 1)
		sum += v * w
		total += w
	}

	return sum / total
}

// ConsistencyConfidence scores agreement among independently produced
// results. Results are compared by their canonical JSON form (object keys
// sorted). Full agreement yields 0.95; n distinct results out of n yields 0.5.
// Fewer than two results carry no agreement signal and yield 0.5.
func ConsistencyConfidence(results []any) float64 {
	n := len(results)
	if n < 2 {
		return consistencyFloor
	}

	distinct := make(map[string]struct{}, n)
	for _, r := range results {
		distinct[canonical(r)] = struct{}{}
	}

	if len(distinct) == 1 {
		return consistencyFloor + consistencySpan
	}

	agreement := 1 - float64(len(distinct)-1)/float64(n-1)

	return core.Clamp01(consistencyFloor + consistencySpan*agreement)
}

func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}

	return string(b)
}

// Calibrate adjusts a raw confidence with historical bias and scale:
// clamp01((raw-0.5)*scale + 0.5 - bias).
func Calibrate(raw, bias, scale float64) float64 {
	return core.Clamp01((raw-0.5)*scale + 0.5 - bias)
}

package evaluation

import (
	"context"
	"time"
)

const (
	// MinSamples is the number of outcomes required before Calibration departs
	// from the identity.
	MinSamples = 10

	minScale = 0.5
	maxScale = 1.5
)

// Outcome is the observed correctness of one result.
type Outcome struct {
	AgentID    string
	Task       string
	Confidence float64
	Correct    bool
	At         time.Time
}

// Store persists outcomes and aggregates them per agent.
type Store interface {
	Record(ctx context.Context, o Outcome) error
	Stats(ctx context.Context, agentID string) (Stats, error)
}

// Stats are running sums over recorded outcomes, where p is the reported
// confidence and y is 1 for a correct result and 0 otherwise.
type Stats struct {
	N     int
	SumP  float64
	SumY  float64
	SumPP float64
	SumPY float64
}

// Add folds one outcome into the sums.
func (s *Stats) Add(confidence float64, correct bool) {
	y := 0.0
	if correct {
		y = 1
	}

	s.N++
	s.SumP += confidence
	s.SumY += y
	s.SumPP += confidence * confidence
	s.SumPY += confidence * y
}

// Accuracy is the fraction of correct outcomes.
func (s Stats) Accuracy() float64 {
	if s.N == 0 {
		return 0
	}

	return s.SumY / float64(s.N)
}

// MeanConfidence is the average reported confidence.
func (s Stats) MeanConfidence() float64 {
	if s.N == 0 {
		return 0
	}

	return s.SumP / float64(s.N)
}

// Brier is the mean squared error between confidence and correctness.
func (s Stats) Brier() float64 {
	if s.N == 0 {
		return 0
	}

	// y*y == y for y in {0,1}
	return (s.SumPP - 2*s.SumPY + s.SumY) / float64(s.N)
}

// Calibration holds the parameters for confidence.Calibrate.
// A positive Bias means the agent is overconfident.
type Calibration struct {
	Bias  float64 `json:"bias"`
	Scale float64 `json:"scale"`
}

// Identity leaves confidences unchanged.
var Identity = Calibration{Bias: 0, Scale: 1}

// Calibration derives bias and scale from the sums. Bias is mean confidence
// minus accuracy. Scale is the least-squares slope of correctness over
// confidence, bounded to [0.5,1.5]. Below MinSamples the identity is returned.
func (s Stats) Calibration() Calibration {
	if s.N < MinSamples {
		return Identity
	}

	n := float64(s.N)
	meanP := s.SumP / n
	meanY := s.SumY / n

	scale := 1.0
	if varP := s.SumPP/n - meanP*meanP; varP > 1e-9 {
		scale = (s.SumPY/n - meanP*meanY) / varP
	}

	scale = min(max(scale, minScale), maxScale)

	return Calibration{Bias: meanP - meanY, Scale: scale}
}

package core

import (
	"maps"
	"slices"
)

// Request is one analysis call: a task label plus an optional payload.
//
// Data is decoded once at the network boundary into plain Go values
// (map[string]any, []any, string, float64, bool or nil).
type Request struct {
	Task string `json:"task"`
	Data any    `json:"data,omitempty"`
}

// Result is the uniform response envelope. Confidence is always within [0,1].
type Result struct {
	Value         any               `json:"value"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning,omitempty"`
	Uncertainties []string          `json:"uncertainties,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy of r whose slices and maps are not shared.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}

	cp := *r
	cp.Uncertainties = slices.Clone(r.Uncertainties)
	cp.Metadata = maps.Clone(r.Metadata)

	return &cp
}

// WithMetadata returns a copy of r with key set to value.
func (r *Result) WithMetadata(key, value string) *Result {
	cp := r.Clone()
	if cp.Metadata == nil {
		cp.Metadata = make(map[string]string, 1)
	}

	cp.Metadata[key] = value

	return cp
}

// Scored is returned by an Analyzer that already knows its confidence.
// A confidence within [0,1] is used verbatim by the runtime.
type Scored struct {
	Value      any
	Confidence float64
}

// HealthState enumerates the reported health of an agent.
type HealthState string

const (
	// HealthHealthy indicates the agent is fully operational.
	HealthHealthy HealthState = "healthy"
	// HealthDegraded indicates the agent serves requests with reduced quality.
	HealthDegraded HealthState = "degraded"
	// HealthUnhealthy indicates the agent cannot serve requests.
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthStatus is the answer to a health probe.
type HealthStatus struct {
	Status  HealthState `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Healthy returns a healthy status with an optional message.
func Healthy(msg string) HealthStatus { return HealthStatus{Status: HealthHealthy, Message: msg} }

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

package core

import (
	"maps"
	"slices"
)

// Descriptor is the identity and capability record of one agent instance.
//
// A Descriptor is created once at startup and never mutated afterwards; it is
// shared read-only by the runtime and the registry client. Use Clone when a
// caller-owned copy is required.
type Descriptor struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Capabilities     []string           `json:"capabilities"`
	ExpertiseLevel   float64            `json:"expertiseLevel"`
	CapabilityScores map[string]float64 `json:"capabilityScores,omitempty"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
}

// NewDescriptor builds a Descriptor, de-duplicating capabilities and clamping
// the expertise level to [0,1].
func NewDescriptor(id, name string, capabilities []string, expertise float64, optFns ...func(d *Descriptor)) Descriptor {
	seen := make(map[string]struct{}, len(capabilities))
	caps := make([]string, 0, len(capabilities))

	for _, c := range capabilities {
		if _, ok := seen[c]; ok || c == "" {
			continue
		}

		seen[c] = struct{}{}
		caps = append(caps, c)
	}

	d := Descriptor{
		ID:             id,
		Name:           name,
		Capabilities:   caps,
		ExpertiseLevel: Clamp01(expertise),
	}

	for _, fn := range optFns {
		fn(&d)
	}

	d.CapabilityScores = maps.Clone(d.CapabilityScores)
	for k, v := range d.CapabilityScores {
		d.CapabilityScores[k] = Clamp01(v)
	}

	return d
}

// Validate reports whether the descriptor can be registered.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "agent id is required"}
	}

	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "agent name is required"}
	}

	return nil
}

// HasCapability reports whether the agent advertises the capability tag.
func (d Descriptor) HasCapability(c string) bool {
	return slices.Contains(d.Capabilities, c)
}

// Clone returns a deep copy so callers cannot mutate the shared descriptor.
func (d Descriptor) Clone() Descriptor {
	cp := d
	cp.Capabilities = slices.Clone(d.Capabilities)
	cp.CapabilityScores = maps.Clone(d.CapabilityScores)
	cp.Metadata = maps.Clone(d.Metadata)

	return cp
}

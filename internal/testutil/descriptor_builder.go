package testutil

import (
	"github.com/hupe1980/agentrt/core"
)

// DescriptorBuilder helps construct descriptors with fluent chaining for tests.
// Example:
//
//	desc := NewDescriptorBuilder("agent-1").Capabilities("weather").Expertise(0.8).Build()
type DescriptorBuilder struct {
	id        string
	name      string
	caps      []string
	expertise float64
	scores    map[string]float64
}

// NewDescriptorBuilder creates a builder whose name defaults to the id.
func NewDescriptorBuilder(id string) *DescriptorBuilder {
	return &DescriptorBuilder{id: id, name: id, expertise: 0.5}
}

// Name sets the display name (chainable).
func (b *DescriptorBuilder) Name(name string) *DescriptorBuilder {
	b.name = name
	return b
}

// Capabilities appends capability tags (chainable).
func (b *DescriptorBuilder) Capabilities(caps ...string) *DescriptorBuilder {
	b.caps = append(b.caps, caps...)
	return b
}

// Expertise sets the expertise level (chainable).
func (b *DescriptorBuilder) Expertise(v float64) *DescriptorBuilder {
	b.expertise = v
	return b
}

// Score sets a per-capability score (chainable).
func (b *DescriptorBuilder) Score(capability string, v float64) *DescriptorBuilder {
	if b.scores == nil {
		b.scores = map[string]float64{}
	}

	b.scores[capability] = v

	return b
}

// Build returns the descriptor.
func (b *DescriptorBuilder) Build() core.Descriptor {
	return core.NewDescriptor(b.id, b.name, b.caps, b.expertise, func(d *core.Descriptor) {
		d.CapabilityScores = b.scores
	})
}

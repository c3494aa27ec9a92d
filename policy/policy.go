// Package policy admits or refuses analysis requests with OPA rego rules.
//
// Policies live in package agentrt.admission and populate the set "deny"
// with human readable reasons. An empty set admits the request.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/hupe1980/agentrt/core"
)

const query = "data.agentrt.admission.deny"

// DefaultPolicy refuses oversized task labels and tasks outside the agent's
// advertised capabilities when the request names one.
const DefaultPolicy = `
package agentrt.admission

deny contains msg if {
	count(input.task) > 256
	msg := "task label exceeds 256 characters"
}

deny contains msg if {
	cap := input.data.capability
	is_string(cap)
	not cap in input.agent.capabilities
	msg := sprintf("capability %q is not offered by this agent", [cap])
}
`

// Engine evaluates a prepared admission query.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles module. An empty module selects DefaultPolicy.
func NewEngine(ctx context.Context, module string) (*Engine, error) {
	if strings.TrimSpace(module) == "" {
		module = DefaultPolicy
	}

	r := rego.New(
		rego.Query(query),
		rego.Module("admission.rego", module),
	)

	q, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: q}, nil
}

// Input is the document exposed to rules as input.
type Input struct {
	Task  string          `json:"task"`
	Data  any             `json:"data"`
	Agent core.Descriptor `json:"agent"`
}

// Admit returns a *core.ValidationError listing every deny reason, or nil.
func (e *Engine) Admit(ctx context.Context, desc core.Descriptor, req core.Request) error {
	reasons, err := e.Deny(ctx, Input{Task: req.Task, Data: req.Data, Agent: desc})
	if err != nil {
		return err
	}

	if len(reasons) == 0 {
		return nil
	}

	return &core.ValidationError{Message: "request denied: " + strings.Join(reasons, "; ")}
}

// Deny evaluates the rules and returns the sorted deny reasons.
func (e *Engine) Deny(ctx context.Context, in Input) ([]string, error) {
	input := map[string]any{
		"task": in.Task,
		"data": in.Data,
		"agent": map[string]any{
			"id":           in.Agent.ID,
			"name":         in.Agent.Name,
			"capabilities": stringsToAny(in.Agent.Capabilities),
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	set, ok := results[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("policy returned %T, want a set of strings", results[0].Expressions[0].Value)
	}

	reasons := make([]string, 0, len(set))
	for _, v := range set {
		reasons = append(reasons, fmt.Sprint(v))
	}

	sort.Strings(reasons)

	return reasons, nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}

	return out
}

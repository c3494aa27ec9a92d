package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
	"github.com/hupe1980/agentrt/model"
)

// DefaultInstruction asks the model to state its confidence in a form the
// confidence engine recognizes.
const DefaultInstruction = "You are an analysis agent. Answer the task concisely. " +
	"End your answer with a line of the form \"confidence: <number between 0 and 1>\"."

// DefaultPromptTemplate renders the user message from task and payload.
const DefaultPromptTemplate = "Task: {{.task}}{{if .data}}\nInput: {{.data}}{{end}}"

// ModelAgentOptions configures a ModelAgent instance.
type ModelAgentOptions struct {
	Instruction Instruction

	// PromptTemplate is a text/template over task and data (JSON-encoded).
	PromptTemplate string

	// Stream requests streamed generation from the model.
	Stream bool
}

// ModelAgent answers analysis requests with a language model.
//
// The model's reply is returned as text, or as a decoded object when the
// reply is a JSON object, so explicit confidence fields are honored and
// free-text confidence statements are picked up by pattern extraction.
type ModelAgent struct {
	llm  model.Model
	opts ModelAgentOptions
}

// NewModelAgent creates a ModelAgent backed by llm.
func NewModelAgent(llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:    NewInstructionFromText(DefaultInstruction),
		PromptTemplate: DefaultPromptTemplate,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{llm: llm, opts: opts}
}

// Analyze implements core.Analyzer.
func (a *ModelAgent) Analyze(ctx context.Context, task string, data any) (any, error) {
	instruction, err := a.opts.Instruction.Resolve(ctx, task, data)
	if err != nil {
		return nil, fmt.Errorf("resolve instruction: %w", err)
	}

	prompt, err := a.prompt(task, data)
	if err != nil {
		return nil, err
	}

	resp, err := model.Collect(ctx, a.llm, model.Request{
		Instructions: instruction,
		Messages:     []model.Message{{Role: model.RoleUser, Text: prompt}},
		Stream:       a.opts.Stream,
	})
	if err != nil {
		return nil, err
	}

	return decodeReply(resp.Text), nil
}

// CheckHealth implements core.HealthChecker.
func (a *ModelAgent) CheckHealth(context.Context) core.HealthStatus {
	info := a.llm.Info()
	return core.Healthy(fmt.Sprintf("%s/%s", info.Provider, info.Name))
}

func (a *ModelAgent) prompt(task string, data any) (string, error) {
	vars := map[string]any{"task": task}

	switch v := data.(type) {
	case nil:
	case string:
		vars["data"] = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", &core.ValidationError{Field: "data", Message: fmt.Sprintf("payload is not encodable: %v", err)}
		}

		vars["data"] = string(b)
	}

	text, err := util.RenderTemplate(a.opts.PromptTemplate, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	return text, nil
}

// decodeReply returns a JSON object reply as a map and anything else as
// trimmed text.
func decodeReply(text string) any {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
	}

	return trimmed
}

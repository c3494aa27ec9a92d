package main

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/model"
	"github.com/hupe1980/agentrt/model/anthropic"
	"github.com/hupe1980/agentrt/model/openai"
)

// newAnalyzer builds the model agent selected by cfg.
func newAnalyzer(cfg config.ModelConfig) (core.Analyzer, error) {
	var llm model.Model

	switch cfg.Provider {
	case "openai":
		llm = openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
		})
	case "anthropic":
		llm = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
		})
	case "mock", "":
		llm = model.NewMockModel("mock", "local")
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}

	return agent.NewModelAgent(llm), nil
}

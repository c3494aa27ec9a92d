package a2a

import (
	"strings"

	sdka2a "github.com/a2aproject/a2a-go/a2a"

	"github.com/hupe1980/agentrt/core"
)

// NewAgentCard describes desc as an A2A agent reachable under baseURL.
// Every capability tag becomes a skill.
func NewAgentCard(desc core.Descriptor, optFns ...func(o *Options)) *sdka2a.AgentCard {
	opts := Options{Version: "1.0.0"}

	for _, fn := range optFns {
		fn(&opts)
	}

	a2aURL := strings.TrimRight(opts.BaseURL, "/") + "/a2a"

	skills := make([]sdka2a.AgentSkill, 0, len(desc.Capabilities))
	for _, c := range desc.Capabilities {
		skills = append(skills, sdka2a.AgentSkill{
			ID:          c,
			Name:        c,
			Description: "Analysis for " + c,
			Tags:        []string{"analysis", c},
			InputModes:  []string{"application/json", "text/plain"},
			OutputModes: []string{"application/json"},
		})
	}

	description := opts.Description
	if description == "" {
		description = desc.Name + " analysis agent"
	}

	return &sdka2a.AgentCard{
		Name:            desc.Name,
		Description:     description,
		URL:             a2aURL,
		Version:         opts.Version,
		ProtocolVersion: "1.0",
		Provider: &sdka2a.AgentProvider{
			Org: desc.ID,
			URL: opts.BaseURL,
		},
		PreferredTransport: sdka2a.TransportProtocolJSONRPC,
		Capabilities: sdka2a.AgentCapabilities{
			Streaming: false,
		},
		Skills:             skills,
		DefaultInputModes:  []string{"application/json", "text/plain"},
		DefaultOutputModes: []string{"application/json"},
	}
}

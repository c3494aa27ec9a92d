package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

func TestEngine_DefaultPolicy(t *testing.T) {
	ctx := context.Background()

	e, err := NewEngine(ctx, "")
	require.NoError(t, err)

	desc := core.NewDescriptor("a1", "weather", []string{"forecast"}, 0.8)

	require.NoError(t, e.Admit(ctx, desc, core.Request{Task: "forecast"}))
	require.NoError(t, e.Admit(ctx, desc, core.Request{Task: "forecast", Data: map[string]any{"capability": "forecast"}}))

	err = e.Admit(ctx, desc, core.Request{Task: "x", Data: map[string]any{"capability": "trading"}})

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, `capability "trading"`)

	err = e.Admit(ctx, desc, core.Request{Task: strings.Repeat("t", 300)})
	assert.Error(t, err)
}

func TestEngine_CustomPolicy(t *testing.T) {
	ctx := context.Background()

	module := `
package agentrt.admission

deny contains "secrets are off limits" if {
	input.data.path == "/etc/shadow"
}
`

	e, err := NewEngine(ctx, module)
	require.NoError(t, err)

	reasons, err := e.Deny(ctx, Input{Task: "read", Data: map[string]any{"path": "/etc/shadow"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"secrets are off limits"}, reasons)

	reasons, err = e.Deny(ctx, Input{Task: "read", Data: map[string]any{"path": "/tmp/x"}})
	require.NoError(t, err)
	assert.Empty(t, reasons)
}

func TestNewEngine_InvalidModule(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n deny contains if {")
	assert.Error(t, err)
}

package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
)

type forecastPayload struct {
	City  string   `json:"city"`
	Days  int      `json:"days"`
	Units *string  `json:"units"`
	Tags  []string `json:"tags,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(forecastPayload{})

	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []string{"city", "days"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["days"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
}

func TestValidatePayload(t *testing.T) {
	schema := CreateSchema(&forecastPayload{})

	require.NoError(t, ValidatePayload(map[string]any{"city": "Berlin", "days": 3.0}, schema))

	err := ValidatePayload(map[string]any{"city": "Berlin"}, schema)

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "days", ve.Field)

	err = ValidatePayload(map[string]any{"city": "Berlin", "days": 2.5}, schema)
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, "expected type integer")

	assert.Error(t, ValidatePayload("not an object", schema))
	assert.Error(t, ValidatePayload(nil, schema))
}

func TestValidatePayload_EnumAndRange(t *testing.T) {
	schema := Schema{
		"type":     "object",
		"required": []any{"level"},
		"properties": map[string]any{
			"level": map[string]any{"type": "string", "enum": []any{"low", "high"}},
			"score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}

	assert.NoError(t, ValidatePayload(map[string]any{"level": "low", "score": 0.4}, schema))
	assert.Error(t, ValidatePayload(map[string]any{"level": "mid"}, schema))
	assert.Error(t, ValidatePayload(map[string]any{"level": "low", "score": 1.5}, schema))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Analysis completed by {{.name}} with confidence {{printf \"%.2f\" .confidence}}", map[string]any{
		"name":       "weather",
		"confidence": 0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, "Analysis completed by weather with confidence 0.80", out)

	out, err = RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

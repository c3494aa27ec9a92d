package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
)

// Validator inspects a request before the hook runs.
type Validator func(req core.Request) error

// RequireFields rejects requests whose payload lacks any of fields.
func RequireFields(fields ...string) Validator {
	return func(req core.Request) error {
		if req.Data == nil {
			return &core.ValidationError{Field: "data", Message: "payload is required"}
		}

		m, err := asMap(req.Data)
		if err != nil {
			return err
		}

		for _, f := range fields {
			if _, ok := m[f]; !ok {
				return &core.ValidationError{Field: f, Message: "required field missing"}
			}
		}

		return nil
	}
}

// RequireSchema validates the payload against a JSON-schema subset
// (type, properties, required, enum, minimum, maximum). Schemas can be
// derived from Go structs with SchemaFor.
func RequireSchema(schema map[string]any) Validator {
	return func(req core.Request) error {
		m, err := asMap(req.Data)
		if err != nil {
			return err
		}

		return util.ValidatePayload(m, schema)
	}
}

// SchemaFor derives a schema from the exported fields of a struct value.
func SchemaFor(v any) map[string]any {
	return util.CreateSchema(v)
}

// asMap views a payload as a JSON object. Non-map values are round-tripped
// through JSON so structs validate the same as decoded bodies.
func asMap(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, &core.ValidationError{Field: "data", Message: fmt.Sprintf("payload is not encodable: %v", err)}
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &core.ValidationError{Field: "data", Message: "payload must be an object"}
	}

	return m, nil
}

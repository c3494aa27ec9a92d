package util

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/hupe1980/agentrt/core"
)

// Schema is a small JSON-schema subset describing an object payload:
// "type", "properties", "required", plus per-property "enum", "minimum"
// and "maximum".
type Schema = map[string]any

// CreateSchema creates a payload schema from a Go struct using reflection.
// Non-pointer fields without omitempty are required.
func CreateSchema(structType any) Schema {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return Schema{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := map[string]any{
			"type": getJSONType(field.Type),
		}

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, fieldName)
		}
	}

	schema := Schema{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidatePayload checks a decoded request payload against schema and
// returns a *core.ValidationError describing the first violation.
func ValidatePayload(data any, schema Schema) error {
	params, ok := data.(map[string]any)
	if !ok {
		if data == nil {
			return &core.ValidationError{Message: "payload is required"}
		}

		return &core.ValidationError{Message: fmt.Sprintf("payload must be an object, got %T", data)}
	}

	for _, fieldName := range requiredFields(schema["required"]) {
		if _, exists := params[fieldName]; !exists {
			return &core.ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue // extra fields are allowed
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		if err := validateProperty(fieldName, value, propMap); err != nil {
			return err
		}
	}

	return nil
}

func validateProperty(name string, value any, prop map[string]any) error {
	expectedType, _ := prop["type"].(string)
	if !isValidType(value, expectedType) {
		return &core.ValidationError{
			Field:   name,
			Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
		}
	}

	if enum, ok := prop["enum"].([]any); ok && !slices.Contains(enum, value) {
		return &core.ValidationError{Field: name, Message: fmt.Sprintf("value %v is not one of %v", value, enum)}
	}

	if n, ok := toFloat(value); ok {
		if minV, ok := toFloat(prop["minimum"]); ok && n < minV {
			return &core.ValidationError{Field: name, Message: fmt.Sprintf("value %v is below minimum %v", value, minV)}
		}

		if maxV, ok := toFloat(prop["maximum"]); ok && n > maxV {
			return &core.ValidationError{Field: name, Message: fmt.Sprintf("value %v is above maximum %v", value, maxV)}
		}
	}

	return nil
}

func requiredFields(v any) []string {
	switch r := v.(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}

	return false
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true // nil is valid for any type
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON numbers decode as float64
			return v == float64(int64(v))
		}

		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}

		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

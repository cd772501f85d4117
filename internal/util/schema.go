package util

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaFor reflects a JSON schema object from a Go value (usually a struct
// pointer). Fields are required when tagged `jsonschema:"required"`.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	b, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	delete(schema, "$schema")
	delete(schema, "$id")

	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}

	return schema, nil
}

// RequiredFields returns schema["required"] regardless of whether it was
// built in Go ([]string) or decoded from JSON ([]any).
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// MissingFields walks value alongside schema and returns the path of every
// required property that is absent or null, e.g. "speakers[1].role". Empty
// strings and empty lists count as present.
func MissingFields(value any, schema map[string]any) []string {
	out := missingFields(value, schema, "", nil)
	slices.Sort(out)

	return out
}

func missingFields(value any, schema map[string]any, path string, out []string) []string {
	switch v := value.(type) {
	case map[string]any:
		for _, name := range RequiredFields(schema) {
			if field, ok := v[name]; !ok || field == nil {
				out = append(out, joinPath(path, name))
			}
		}

		properties, _ := schema["properties"].(map[string]any)
		for name, prop := range properties {
			propSchema, ok := prop.(map[string]any)
			if !ok || v[name] == nil {
				continue
			}

			out = missingFields(v[name], propSchema, joinPath(path, name), out)
		}
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return out
		}

		for i, item := range v {
			out = missingFields(item, items, fmt.Sprintf("%s[%d]", path, i), out)
		}
	}

	return out
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "." + name
}

// ValidateParameters validates parameters against a JSON schema.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, fieldName := range RequiredFields(schema) {
		if _, exists := params[fieldName]; !exists {
			return &ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
	}

	return nil
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
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
		switch value.(type) {
		case []any, []string, []map[string]any:
			return true
		}

		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

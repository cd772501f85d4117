package model

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
)

// FunctionResponseText renders a function response the way provider
// adapters send it back: strings verbatim, everything else as JSON.
func FunctionResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		b, _ := json.Marshal(map[string]any{"error": fr.Error})
		return string(b)
	}

	switch v := fr.Response.(type) {
	case nil:
		return "{}"
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(b)
	}
}

// FunctionResponseMap renders a function response as a JSON object. Scalar
// results are wrapped under "result".
func FunctionResponseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}

	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}

	b, err := json.Marshal(fr.Response)
	if err == nil {
		var m map[string]any
		if json.Unmarshal(b, &m) == nil && m != nil {
			return m
		}
	}

	return map[string]any{"result": fr.Response}
}

// DecodeArguments parses a JSON argument object. Empty or malformed input
// yields an empty map.
func DecodeArguments(args string) map[string]any {
	out := map[string]any{}
	if args == "" {
		return out
	}

	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return map[string]any{}
	}

	return out
}

// EncodeArguments is the inverse of DecodeArguments.
func EncodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(b)
}

// RequiredFields extracts the "required" list of a JSON schema, accepting
// both []string and []any encodings.
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

package tool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/adkpatterns/core"
)

// StateTool reads and writes session state on behalf of a model. Writes are
// attached to the function response event, so they are persisted before the
// model sees the result.
type StateTool struct {
	name     string
	prefixes []string
	readOnly bool
}

// StateToolOption configures a StateTool.
type StateToolOption func(*StateTool)

// WithStateToolName overrides the default tool name "state".
func WithStateToolName(name string) StateToolOption {
	return func(t *StateTool) { t.name = name }
}

// WithKeyPrefixes limits the tool to keys starting with one of prefixes.
func WithKeyPrefixes(prefixes ...string) StateToolOption {
	return func(t *StateTool) { t.prefixes = prefixes }
}

// WithReadOnly disables set, delete and increment.
func WithReadOnly() StateToolOption {
	return func(t *StateTool) { t.readOnly = true }
}

// NewStateTool creates a state tool supporting the operations get, set,
// delete, list and increment.
func NewStateTool(optFns ...StateToolOption) *StateTool {
	t := &StateTool{name: "state"}

	for _, fn := range optFns {
		fn(t)
	}

	return t
}

// Name returns the tool identifier.
func (t *StateTool) Name() string { return t.name }

// Description returns the tool description.
func (t *StateTool) Description() string {
	d := "Inspect or update the session state scratchpad. Operations: get, list"
	if !t.readOnly {
		d += ", set, delete, increment"
	}

	if len(t.prefixes) > 0 {
		d += ". Keys must start with " + strings.Join(t.prefixes, " or ")
	}

	return d + "."
}

// Parameters returns the JSON schema for tool parameters.
func (t *StateTool) Parameters() map[string]any {
	ops := []string{"get", "list"}
	if !t.readOnly {
		ops = append(ops, "set", "delete", "increment")
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        ops,
				"description": "The state operation to perform",
			},
			"key": map[string]any{
				"type":        "string",
				"description": "State key (list uses it as an optional prefix filter)",
			},
			"value": map[string]any{
				"description": "Value for set",
			},
			"by": map[string]any{
				"type":        "integer",
				"description": "Increment step (default 1)",
			},
		},
		"required": []string{"operation"},
	}
}

// Call dispatches on the operation argument.
func (t *StateTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)
	key, _ := args["key"].(string)

	switch op {
	case "get":
		return t.get(tc, key)
	case "list":
		return t.list(tc, key), nil
	case "set", "delete", "increment":
		if t.readOnly {
			return nil, NewToolError(t.name, fmt.Sprintf("operation %q not allowed", op), CodeValidation)
		}
	default:
		return nil, NewToolError(t.name, fmt.Sprintf("unknown operation: %q", op), CodeValidation)
	}

	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	switch op {
	case "set":
		value, ok := args["value"]
		if !ok {
			return nil, NewToolError(t.name, "value is required for set", CodeValidation)
		}

		tc.SetState(key, value)

		return map[string]any{"key": key, "value": value, "success": true}, nil
	case "delete":
		tc.DeleteState(key)

		return map[string]any{"key": key, "success": true}, nil
	default:
		by := 1
		if v, ok := args["by"]; ok {
			by = core.IntState(v)
		}

		cur, _ := tc.GetState(key)
		n := core.IntState(cur) + by
		tc.SetState(key, n)

		return map[string]any{"key": key, "value": n, "success": true}, nil
	}
}

func (t *StateTool) get(tc *core.ToolContext, key string) (any, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	v, ok := tc.GetState(key)

	return map[string]any{"key": key, "exists": ok, "value": v}, nil
}

func (t *StateTool) list(tc *core.ToolContext, prefix string) map[string]any {
	snap := tc.StateSnapshot()

	keys := make([]string, 0, len(snap))
	for k := range snap {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}

		if t.allowed(k) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	values := make(map[string]any, len(keys))
	for _, k := range keys {
		values[k] = snap[k]
	}

	return map[string]any{"keys": keys, "values": values, "count": len(keys)}
}

func (t *StateTool) checkKey(key string) error {
	if key == "" {
		return NewToolError(t.name, "key is required", CodeValidation)
	}

	if !t.allowed(key) {
		return NewToolError(t.name, fmt.Sprintf("key %q is outside the allowed prefixes", key), CodeValidation)
	}

	return nil
}

func (t *StateTool) allowed(key string) bool {
	if len(t.prefixes) == 0 {
		return true
	}

	for _, p := range t.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}

	return false
}

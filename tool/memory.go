package tool

import (
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
)

const defaultMemoryLimit = 5

type loadMemoryArgs struct {
	Query string `json:"query" jsonschema:"required,description=What to recall"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of memories (default 5)"`
}

type saveMemoryArgs struct {
	Content string         `json:"content" jsonschema:"required,description=Fact to remember"`
	Tags    []string       `json:"tags,omitempty" jsonschema:"description=Optional labels"`
	Extra   map[string]any `json:"metadata,omitempty" jsonschema:"description=Optional metadata"`
}

// NewLoadMemoryTool returns load_memory, which searches the session's memory
// store.
func NewLoadMemoryTool() (*TypedTool[loadMemoryArgs], error) {
	return NewTypedTool[loadMemoryArgs]("load_memory",
		"Search long-term memory for facts relevant to the query.",
		func(tc *core.ToolContext, args loadMemoryArgs) (any, error) {
			limit := args.Limit
			if limit <= 0 {
				limit = defaultMemoryLimit
			}

			results, err := tc.SearchMemory(args.Query, limit)
			if err != nil {
				return nil, fmt.Errorf("search memory: %w", err)
			}

			return map[string]any{"query": args.Query, "count": len(results), "memories": results}, nil
		})
}

// NewSaveMemoryTool returns save_memory, which stores a fact in the
// session's memory store.
func NewSaveMemoryTool() (*TypedTool[saveMemoryArgs], error) {
	return NewTypedTool[saveMemoryArgs]("save_memory",
		"Store a fact in long-term memory so it can be recalled later.",
		func(tc *core.ToolContext, args saveMemoryArgs) (any, error) {
			md := map[string]any{"agent": tc.AgentName()}
			for k, v := range args.Extra {
				md[k] = v
			}

			if len(args.Tags) > 0 {
				md["tags"] = args.Tags
			}

			if err := tc.StoreMemory(args.Content, md); err != nil {
				return nil, fmt.Errorf("store memory: %w", err)
			}

			return map[string]any{"success": true}, nil
		})
}

// Package memory contains core.MemoryStore implementations. The in-memory
// store ranks stored snippets by keyword overlap with the query, which is
// enough for the load_memory and save_memory tools in tests and demos.
package memory

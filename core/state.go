package core

import (
	"encoding/json"
	"math"
	"strconv"
)

// State key prefixes. They are naming conventions for the flat session
// state map: app-wide, per-user and scratch values.
const (
	StatePrefixApp  = "app:"
	StatePrefixUser = "user:"
	StatePrefixTemp = "temp:"
)

// IntState converts a numeric state value to int. Values round-tripped
// through JSON arrive as float64 or json.Number, so counters must not
// assume the type they were written with.
func IntState(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(math.Round(float64(n)))
	case float64:
		return int(math.Round(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(math.Round(f))
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}

	return 0
}

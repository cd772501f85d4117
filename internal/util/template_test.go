package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(m map[string]any) StateLookup {
	return func(k string) (any, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestInjectState(t *testing.T) {
	state := lookup(map[string]any{
		"flight_options": "Flight A",
		"user:name":      "Ada",
		"count":          3,
		"plan":           map[string]any{"title": "x"},
		"empty":          "",
	})

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{"plain", "no placeholders", "no placeholders", false},
		{"simple", "Flights: {flight_options}", "Flights: Flight A", false},
		{"prefixed", "Hi {user:name}!", "Hi Ada!", false},
		{"number", "n={count}", "n=3", false},
		{"map as json", "{plan}", `{"title":"x"}`, false},
		{"optional missing", "[{missing?}]", "[]", false},
		{"required missing", "{missing}", "", true},
		{"empty string value", "[{empty}]", "[]", false},
		{"json literal kept", `Return {"a": 1}`, `Return {"a": 1}`, false},
		{"double braces kept", "{{flight_options}}", "{{flight_options}}", false},
		{"invalid prefix kept", "{foo:bar}", "{foo:bar}", false},
		{"spaces trimmed", "{ count }", "3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InjectState(tt.template, state, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInjectState_Artifacts(t *testing.T) {
	artifacts := func(name string) ([]byte, error) {
		if name == "notes.txt" {
			return []byte("remember"), nil
		}
		return nil, errors.New("not found")
	}

	got, err := InjectState("{artifact.notes.txt}", nil, artifacts)
	require.NoError(t, err)
	assert.Equal(t, "remember", got)

	got, err = InjectState("[{artifact.other?}]", nil, artifacts)
	require.NoError(t, err)
	assert.Equal(t, "[]", got)

	_, err = InjectState("{artifact.other}", nil, artifacts)
	assert.Error(t, err)
}

func TestListPlaceholders(t *testing.T) {
	got := ListPlaceholders("{a} {b?} {a} {user:c} {not valid} {{d}}")
	assert.Equal(t, []string{"a", "b", "user:c"}, got)
	assert.True(t, HasPlaceholders("x {a}"))
	assert.False(t, HasPlaceholders("x"))
}

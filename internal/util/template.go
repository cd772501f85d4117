package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// Prefixes accepted in front of a state key inside a placeholder.
var statePrefixes = []string{"app:", "user:", "temp:"}

// placeholderRegex matches {key}, {key?}, {artifact.name} and brace runs such
// as {{x}} so that they can be inspected and, if invalid, left untouched.
var placeholderRegex = regexp.MustCompile(`{+[^{}]*}+`)

// StateLookup resolves a state key.
type StateLookup func(key string) (any, bool)

// ArtifactLookup resolves an artifact by name.
type ArtifactLookup func(name string) ([]byte, error)

// InjectState replaces placeholders in template with state values.
//
//	{key}             value of key, error when missing
//	{key?}            value of key, empty when missing
//	{user:key}        prefixed keys (app:, user:, temp:)
//	{artifact.name}   text of an artifact, when artifacts is non-nil
//
// Placeholders whose content is not a valid identifier are kept verbatim,
// so JSON samples inside prompts survive.
func InjectState(template string, state StateLookup, artifacts ArtifactLookup) (string, error) {
	if template == "" {
		return "", nil
	}

	var (
		sb   strings.Builder
		last int
	)

	for _, idx := range placeholderRegex.FindAllStringIndex(template, -1) {
		start, end := idx[0], idx[1]
		sb.WriteString(template[last:start])

		repl, err := replacePlaceholder(template[start:end], state, artifacts)
		if err != nil {
			return "", err
		}

		sb.WriteString(repl)

		last = end
	}

	sb.WriteString(template[last:])

	return sb.String(), nil
}

// HasPlaceholders reports whether template contains placeholder syntax.
func HasPlaceholders(template string) bool { return placeholderRegex.MatchString(template) }

// ListPlaceholders returns the distinct state keys referenced by template.
func ListPlaceholders(template string) []string {
	var (
		names []string
		seen  = map[string]bool{}
	)

	for _, m := range placeholderRegex.FindAllString(template, -1) {
		name := strings.TrimSuffix(strings.TrimSpace(strings.Trim(m, "{}")), "?")
		if !isValidStateName(name) || seen[name] {
			continue
		}

		seen[name] = true
		names = append(names, name)
	}

	return names
}

func replacePlaceholder(match string, state StateLookup, artifacts ArtifactLookup) (string, error) {
	// Double-braced text is never a placeholder.
	if strings.HasPrefix(match, "{{") && strings.HasSuffix(match, "}}") {
		return match, nil
	}

	name := strings.TrimSpace(strings.Trim(match, "{}"))

	optional := strings.HasSuffix(name, "?")
	name = strings.TrimSuffix(name, "?")

	if after, ok := strings.CutPrefix(name, "artifact."); ok && artifacts != nil {
		data, err := artifacts(after)
		if err != nil {
			if optional {
				return "", nil
			}

			return "", fmt.Errorf("artifact %q: %w", after, err)
		}

		return string(data), nil
	}

	if !isValidStateName(name) {
		return match, nil
	}

	var (
		v  any
		ok bool
	)

	if state != nil {
		v, ok = state(name)
	}

	if !ok || v == nil {
		if optional {
			return "", nil
		}

		return "", fmt.Errorf("context variable not found: %q", name)
	}

	return FormatValue(v), nil
}

// FormatValue renders a state value for prompt inclusion.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any, []string, []map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}

		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func isValidStateName(name string) bool {
	prefix, rest, found := strings.Cut(name, ":")
	if !found {
		return isIdentifier(name)
	}

	return slices.Contains(statePrefixes, prefix+":") && isIdentifier(rest)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

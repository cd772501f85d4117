// Package evaluation scores agent runs against expectations: response
// similarity, required phrases and tool trajectories.
package evaluation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/adkpatterns/core"
)

// Invocation is one user turn and what the agent did with it.
type Invocation struct {
	UserContent   core.Content
	FinalResponse core.Content
	ToolCalls     []core.FunctionCall
}

// Collect builds an Invocation from runner output. The first user event is
// the input; the last non-user final response is the output.
func Collect(events []core.Event) Invocation {
	var inv Invocation

	userSeen := false

	for _, ev := range events {
		if ev.IsPartial() {
			continue
		}

		if ev.Author == core.AuthorUser {
			if !userSeen && ev.Content != nil {
				inv.UserContent = *ev.Content
				userSeen = true
			}

			continue
		}

		inv.ToolCalls = append(inv.ToolCalls, ev.GetFunctionCalls()...)

		if ev.Content != nil && ev.IsFinalResponse() && strings.TrimSpace(ev.Text()) != "" {
			inv.FinalResponse = *ev.Content
		}
	}

	return inv
}

// Result is the outcome of one evaluator.
type Result struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Details   string  `json:"details,omitempty"`
}

// Evaluator scores an invocation.
type Evaluator interface {
	Name() string
	Evaluate(invocation Invocation) (*Result, error)
}

// Evaluate runs every evaluator. All results are returned; the error joins
// evaluator failures.
func Evaluate(inv Invocation, evaluators ...Evaluator) ([]Result, error) {
	results := make([]Result, 0, len(evaluators))

	var errs []error

	for _, e := range evaluators {
		r, err := e.Evaluate(inv)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}

		results = append(results, *r)
	}

	return results, errors.Join(errs...)
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}

	return len(results) > 0
}

func newResult(name string, score, threshold float64, details string) *Result {
	return &Result{
		Name:      name,
		Score:     score,
		Threshold: threshold,
		Passed:    score >= threshold,
		Details:   details,
	}
}

// ResponseMatch compares the final response with a reference using
// unigram F1 (ROUGE-1).
type ResponseMatch struct {
	Reference string
	// Threshold defaults to 0.8.
	Threshold float64
}

// Name implements Evaluator.
func (ResponseMatch) Name() string { return "response_match" }

// Evaluate implements Evaluator.
func (m ResponseMatch) Evaluate(inv Invocation) (*Result, error) {
	threshold := m.Threshold
	if threshold == 0 {
		threshold = 0.8
	}

	score := rouge1(m.Reference, inv.FinalResponse.Text())

	return newResult(m.Name(), score, threshold, ""), nil
}

// ContainsAll requires every phrase in the final response
// (case-insensitive).
type ContainsAll struct {
	Phrases []string
}

// Name implements Evaluator.
func (ContainsAll) Name() string { return "contains_all" }

// Evaluate implements Evaluator.
func (c ContainsAll) Evaluate(inv Invocation) (*Result, error) {
	if len(c.Phrases) == 0 {
		return nil, errors.New("no phrases configured")
	}

	text := strings.ToLower(inv.FinalResponse.Text())

	var missing []string

	for _, p := range c.Phrases {
		if !strings.Contains(text, strings.ToLower(p)) {
			missing = append(missing, p)
		}
	}

	score := float64(len(c.Phrases)-len(missing)) / float64(len(c.Phrases))

	details := ""
	if len(missing) > 0 {
		details = "missing: " + strings.Join(missing, ", ")
	}

	return newResult(c.Name(), score, 1, details), nil
}

// ToolTrajectory requires the exact ordered list of tool names.
type ToolTrajectory struct {
	Expected []string
}

// Name implements Evaluator.
func (ToolTrajectory) Name() string { return "tool_trajectory" }

// Evaluate implements Evaluator.
func (t ToolTrajectory) Evaluate(inv Invocation) (*Result, error) {
	actual := make([]string, len(inv.ToolCalls))
	for i, c := range inv.ToolCalls {
		actual[i] = c.Name
	}

	score := 0.0
	if strings.Join(actual, "\x00") == strings.Join(t.Expected, "\x00") {
		score = 1
	}

	return newResult(t.Name(), score, 1, fmt.Sprintf("expected %v, got %v", t.Expected, actual)), nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func rouge1(reference, candidate string) float64 {
	ref, cand := tokenize(reference), tokenize(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		if len(ref) == len(cand) {
			return 1
		}

		return 0
	}

	counts := map[string]int{}
	for _, w := range ref {
		counts[w]++
	}

	overlap := 0

	for _, w := range cand {
		if counts[w] > 0 {
			counts[w]--
			overlap++
		}
	}

	if overlap == 0 {
		return 0
	}

	precision := float64(overlap) / float64(len(cand))
	recall := float64(overlap) / float64(len(ref))

	return 2 * precision * recall / (precision + recall)
}

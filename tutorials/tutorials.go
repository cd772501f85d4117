// Package tutorials lists the ready-made agent compositions. Each entry
// builds its agent tree from a model.Resolver, so the same tutorial runs
// against Gemini, OpenAI, Anthropic, Ollama or a scripted test model.
package tutorials

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tutorials/essay"
	"github.com/hupe1980/adkpatterns/tutorials/finance"
	"github.com/hupe1980/adkpatterns/tutorials/hello"
	"github.com/hupe1980/adkpatterns/tutorials/moderator"
	"github.com/hupe1980/adkpatterns/tutorials/podcast"
	"github.com/hupe1980/adkpatterns/tutorials/travel"
)

// Tutorial describes one runnable composition.
type Tutorial struct {
	Name         string
	Description  string
	SamplePrompt string
	Build        func(models model.Resolver) (core.Agent, error)
}

var all = []Tutorial{
	{
		Name:         "hello",
		Description:  "A single friendly model agent",
		SamplePrompt: "Hi! What can you do?",
		Build:        hello.New,
	},
	{
		Name:         "podcast",
		Description:  "Sequential pipeline: structured episode plan, then transcript",
		SamplePrompt: "Plan an episode about the history of the Go programming language.",
		Build:        podcast.New,
	},
	{
		Name:         "travel",
		Description:  "Parallel flight, hotel and activity search merged into an itinerary",
		SamplePrompt: "Plan a 3-day trip to Lisbon in May for two people.",
		Build:        travel.New,
	},
	{
		Name:         "essay",
		Description:  "Draft once, then critique and refine in a loop of at most 5 rounds",
		SamplePrompt: "Write an essay about why open source matters.",
		Build:        essay.New,
	},
	{
		Name:         "moderator",
		Description:  "Callbacks for usage tracking, content blocking and redaction",
		SamplePrompt: "Write a 300-word article about renewable energy and check its grammar.",
		Build:        moderator.New,
	},
	{
		Name:         "finance",
		Description:  "Personal finance calculator with three deterministic tools",
		SamplePrompt: "$10k at 6% for 5 years, compounded annually. What will it grow to?",
		Build:        finance.New,
	},
}

// All returns every tutorial in presentation order.
func All() []Tutorial { return slices.Clone(all) }

// Names returns the tutorial names.
func Names() []string {
	names := make([]string, 0, len(all))
	for _, t := range all {
		names = append(names, t.Name)
	}

	return names
}

// Lookup finds a tutorial by name, ignoring case.
func Lookup(name string) (Tutorial, error) {
	for _, t := range all {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}

	return Tutorial{}, fmt.Errorf("unknown tutorial %q (available: %s)", name, strings.Join(Names(), ", "))
}

// BuildAll builds every tutorial's root agent.
func BuildAll(models model.Resolver) ([]core.Agent, error) {
	agents := make([]core.Agent, 0, len(all))

	for _, t := range all {
		a, err := t.Build(models)
		if err != nil {
			return nil, fmt.Errorf("tutorial %s: %w", t.Name, err)
		}

		agents = append(agents, a)
	}

	return agents, nil
}

package config

import (
	"errors"
	"fmt"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/flow"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

// BuildOptions supplies what a document refers to by name.
type BuildOptions struct {
	// Models resolves the model identifier of llm agents.
	Models model.Resolver
	// Tools resolves tool names.
	Tools tool.Registry
	// Callbacks are attached per agent name.
	Callbacks map[string]callback.Set
}

// Build turns a validated config into an agent tree.
func Build(cfg *AgentConfig, opts BuildOptions) (core.Agent, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return build(cfg, opts)
}

func build(cfg *AgentConfig, opts BuildOptions) (core.Agent, error) {
	if cfg.Type == TypeLLM {
		return buildModelAgent(cfg, opts)
	}

	children := make([]core.Agent, 0, len(cfg.SubAgents))

	for i := range cfg.SubAgents {
		child, err := build(&cfg.SubAgents[i], opts)
		if err != nil {
			return nil, err
		}

		children = append(children, child)
	}

	var a interface {
		core.Agent
		SetDescription(string)
		UseCallbacks(...callback.Set)
	}

	switch cfg.Type {
	case TypeSequential:
		a = agent.NewSequentialAgent(cfg.Name, children...)
	case TypeParallel:
		a = agent.NewParallelAgent(cfg.Name, cfg.Timeout, children...)
	case TypeLoop:
		loopOpts := []agent.LoopOption{agent.WithInterval(cfg.Interval)}
		if cfg.MaxIterations > 0 {
			loopOpts = append(loopOpts, agent.WithMaxIterations(cfg.MaxIterations))
		}

		a = agent.NewLoopAgent(cfg.Name, children, loopOpts...)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, cfg.Type)
	}

	if cfg.Description != "" {
		a.SetDescription(cfg.Description)
	}

	if cbs, ok := opts.Callbacks[cfg.Name]; ok {
		a.UseCallbacks(cbs)
	}

	return a, nil
}

func buildModelAgent(cfg *AgentConfig, opts BuildOptions) (core.Agent, error) {
	if opts.Models == nil {
		return nil, fmt.Errorf("agent %q: no model resolver configured", cfg.Name)
	}

	llm, err := opts.Models(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}

	tools, err := opts.Tools.Resolve(cfg.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}

	return agent.NewModelAgent(cfg.Name, llm, func(o *agent.ModelAgentOptions) {
		o.Description = cfg.Description
		o.Tools = tools
		o.OutputKey = cfg.OutputKey
		o.Callbacks = opts.Callbacks[cfg.Name]

		if cfg.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Instruction)
		}

		if cfg.GlobalInstruction != "" {
			o.GlobalInstruction = agent.NewInstructionFromText(cfg.GlobalInstruction)
		}

		if cfg.IncludeContents == "none" {
			o.IncludeContents = flow.IncludeNone
		}

		if cfg.Streaming != nil {
			o.EnableStreaming = *cfg.Streaming
		}

		if cfg.AllowTransfer != nil {
			o.AllowTransfer = *cfg.AllowTransfer
		}
	}), nil
}

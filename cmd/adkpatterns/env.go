package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/adkpatterns"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/config"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/metrics"
	"github.com/hupe1980/adkpatterns/model/registry"
	"github.com/hupe1980/adkpatterns/session"
	"github.com/hupe1980/adkpatterns/tool"
	"github.com/hupe1980/adkpatterns/tracing"
	"github.com/hupe1980/adkpatterns/tutorials/finance"
	"github.com/hupe1980/adkpatterns/tutorials/moderator"
	"github.com/hupe1980/adkpatterns/tutorials/podcast"
)

const serviceName = "adkpatterns"

// environment holds everything a command needs to run agents.
type environment struct {
	app      *adkpatterns.App
	logger   logging.Logger
	models   *registry.Registry
	recorder *metrics.Recorder
	closers  []func(context.Context) error
}

func (g *Globals) setup() (*environment, error) {
	level, err := logging.ParseLogLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    g.LogFormat,
		Output:    os.Stderr,
		Component: serviceName,
	})

	if len(g.EnvFile) > 0 {
		if err := config.LoadDotEnv(g.EnvFile...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}

		g.fillFromEnv()
	}

	env := &environment{logger: logger}

	var store core.SessionStore

	switch g.Store {
	case "sqlite":
		s, err := session.NewSQLiteStore(g.DB)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}

		env.closers = append(env.closers, func(context.Context) error { return s.Close() })
		store = s

		logger.Debug("session.store.opened", "path", g.DB)
	default:
		store = session.NewInMemoryStore()
	}

	tokens, err := metrics.NewTokenCounter()
	if err != nil {
		logger.Warn("metrics.tokenizer.unavailable", "error", err.Error())
	}

	env.recorder = metrics.NewRecorder(func(o *metrics.Options) {
		o.TokenCounter = tokens
	})

	cbs := env.recorder.Callbacks()

	if g.Trace {
		tp, err := tracing.NewStdoutProvider(os.Stderr, serviceName)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}

		env.closers = append(env.closers, tp.Shutdown)
		cbs = cbs.Merge(tracing.Callbacks(tp.Tracer(serviceName)))
	}

	if level == logging.LogLevelDebug {
		cbs = cbs.Merge(callback.Logging(logger))
	}

	env.app = adkpatterns.New(func(o *adkpatterns.Options) {
		o.SessionStore = store
		o.Callbacks = cbs
		o.Logger = logger
	})

	env.models = registry.New(func(o *registry.Options) {
		o.Provider = g.Provider
		o.Model = g.Model
		o.GoogleAPIKey = g.GoogleAPIKey
		o.OpenAIAPIKey = g.OpenAIAPIKey
		o.AnthropicAPIKey = g.AnthropicAPIKey
		o.OllamaHost = g.OllamaHost
	})

	return env, nil
}

// fillFromEnv picks up keys that only appeared after loading --env-file.
func (g *Globals) fillFromEnv() {
	for _, kv := range []struct {
		dst *string
		key string
	}{
		{&g.GoogleAPIKey, "GOOGLE_API_KEY"},
		{&g.OpenAIAPIKey, "OPENAI_API_KEY"},
		{&g.AnthropicAPIKey, "ANTHROPIC_API_KEY"},
		{&g.OllamaHost, "OLLAMA_HOST"},
	} {
		if *kv.dst == "" {
			*kv.dst = os.Getenv(kv.key)
		}
	}
}

func (e *environment) Close(ctx context.Context) error {
	var errs []error

	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// builtinTools are the tools a YAML agent can refer to by name.
func builtinTools() (tool.Registry, error) {
	tools := []tool.Tool{
		tool.NewExitLoopTool(),
		tool.NewStateTool(),
	}

	loadMemory, err := tool.NewLoadMemoryTool()
	if err != nil {
		return nil, err
	}

	saveMemory, err := tool.NewSaveMemoryTool()
	if err != nil {
		return nil, err
	}

	savePlan, err := podcast.NewSavePlanTool()
	if err != nil {
		return nil, err
	}

	tools = append(tools, loadMemory, saveMemory, savePlan)

	for _, group := range []func() ([]tool.Tool, error){finance.Tools, moderator.Tools} {
		ts, err := group()
		if err != nil {
			return nil, err
		}

		tools = append(tools, ts...)
	}

	return tool.NewRegistry(tools...), nil
}

func (e *environment) buildConfigAgent(path string) (core.Agent, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	tools, err := builtinTools()
	if err != nil {
		return nil, err
	}

	return config.Build(cfg, config.BuildOptions{
		Models: e.models.Resolver(),
		Tools:  tools,
	})
}

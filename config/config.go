// Package config loads declarative agent trees from YAML.
//
// A document describes one root agent:
//
//	name: EssayRefinementSystem
//	type: sequential
//	sub_agents:
//	  - name: InitialWriter
//	    type: llm
//	    model: ${ESSAY_MODEL:-gemini-2.5-flash}
//	    instruction: Write a short essay about {topic}.
//	    output_key: current_essay
//	  - name: RefinementLoop
//	    type: loop
//	    max_iterations: 5
//	    sub_agents: [...]
//
// Environment references (${VAR}, ${VAR:-default}) are expanded before
// decoding. Durations accept Go syntax ("1s", "250ms").
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Agent types.
const (
	TypeLLM        = "llm"
	TypeSequential = "sequential"
	TypeParallel   = "parallel"
	TypeLoop       = "loop"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid agent config")

// AgentConfig describes one node of the agent tree.
type AgentConfig struct {
	Name              string        `yaml:"name"`
	Type              string        `yaml:"type"`
	Description       string        `yaml:"description"`
	Model             string        `yaml:"model"`
	Instruction       string        `yaml:"instruction"`
	GlobalInstruction string        `yaml:"global_instruction"`
	OutputKey         string        `yaml:"output_key"`
	Tools             []string      `yaml:"tools"`
	IncludeContents   string        `yaml:"include_contents"`
	Streaming         *bool         `yaml:"streaming"`
	AllowTransfer     *bool         `yaml:"allow_transfer"`
	MaxIterations     int           `yaml:"max_iterations"`
	Interval          time.Duration `yaml:"interval"`
	Timeout           time.Duration `yaml:"timeout"`
	SubAgents         []AgentConfig `yaml:"sub_agents"`
}

// Load reads and validates a YAML file.
func Load(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*AgentConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}

	var cfg AgentConfig
	if err := decode(expandValue(raw), &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func decode(input any, out *AgentConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	return nil
}

// Validate checks names, types and the shape of every node.
func (c *AgentConfig) Validate() error {
	seen := map[string]bool{}

	var errs []error

	c.walk(func(a *AgentConfig) {
		if a.Name == "" {
			errs = append(errs, errors.New("agent without name"))
		} else if seen[a.Name] {
			errs = append(errs, fmt.Errorf("duplicate agent name %q", a.Name))
		}

		seen[a.Name] = true

		switch a.Type {
		case TypeLLM:
			if a.Model == "" {
				errs = append(errs, fmt.Errorf("llm agent %q: model is required", a.Name))
			}

			if len(a.SubAgents) > 0 {
				errs = append(errs, fmt.Errorf("llm agent %q: sub_agents are not supported", a.Name))
			}

			switch a.IncludeContents {
			case "", "default", "none":
			default:
				errs = append(errs, fmt.Errorf("llm agent %q: include_contents must be default or none", a.Name))
			}
		case TypeSequential, TypeParallel, TypeLoop:
			if len(a.SubAgents) == 0 {
				errs = append(errs, fmt.Errorf("%s agent %q: sub_agents are required", a.Type, a.Name))
			}

			if a.MaxIterations < 0 {
				errs = append(errs, fmt.Errorf("%s agent %q: max_iterations must not be negative", a.Type, a.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("agent %q: unknown type %q", a.Name, a.Type))
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

func (c *AgentConfig) walk(fn func(*AgentConfig)) {
	fn(c)

	for i := range c.SubAgents {
		c.SubAgents[i].walk(fn)
	}
}

// LoadDotEnv loads the given .env files in order. Missing files are skipped
// and existing variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if f == "" {
			continue
		}

		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[2 : len(match)-1]

		if name, def, ok := strings.Cut(inner, ":-"); ok {
			if v := os.Getenv(name); v != "" {
				return v
			}

			return def
		}

		return os.Getenv(inner)
	})
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnv(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(item)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item)
		}

		return out
	default:
		return v
	}
}

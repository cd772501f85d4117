package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

const essayYAML = `
name: EssayRefinementSystem
type: sequential
description: Drafts and refines an essay
sub_agents:
  - name: InitialWriter
    type: llm
    model: ${ESSAY_MODEL:-gemini-2.5-flash}
    instruction: Write a short essay.
    output_key: current_essay
    streaming: false
  - name: RefinementLoop
    type: loop
    max_iterations: 3
    interval: 1ms
    sub_agents:
      - name: Critic
        type: llm
        model: gemini-2.5-flash
        instruction: "Critique: {current_essay}"
        output_key: critique
        include_contents: none
      - name: Refiner
        type: llm
        model: gemini-2.5-flash
        tools: exit_loop
        output_key: current_essay
`

func TestParse(t *testing.T) {
	t.Setenv("ESSAY_MODEL", "gpt-4o-mini")

	cfg, err := Parse([]byte(essayYAML))
	require.NoError(t, err)

	assert.Equal(t, TypeSequential, cfg.Type)
	require.Len(t, cfg.SubAgents, 2)
	assert.Equal(t, "gpt-4o-mini", cfg.SubAgents[0].Model)
	require.NotNil(t, cfg.SubAgents[0].Streaming)
	assert.False(t, *cfg.SubAgents[0].Streaming)

	loop := cfg.SubAgents[1]
	assert.Equal(t, 3, loop.MaxIterations)
	assert.Equal(t, time.Millisecond, loop.Interval)
	assert.Equal(t, "none", loop.SubAgents[0].IncludeContents)
	assert.Equal(t, []string{"exit_loop"}, loop.SubAgents[1].Tools)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ADK_SET", "value")

	assert.Equal(t, "value", expandEnv("${ADK_SET}"))
	assert.Equal(t, "value", expandEnv("${ADK_SET:-fallback}"))
	assert.Equal(t, "fallback", expandEnv("${ADK_UNSET_VAR:-fallback}"))
	assert.Equal(t, "", expandEnv("${ADK_UNSET_VAR}"))
	assert.Equal(t, "{state_key}", expandEnv("{state_key}"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown type", "name: a\ntype: swarm\n", `unknown type "swarm"`},
		{"llm without model", "name: a\ntype: llm\n", "model is required"},
		{"composite without children", "name: a\ntype: parallel\n", "sub_agents are required"},
		{"duplicate names", "name: a\ntype: sequential\nsub_agents:\n  - {name: a, type: llm, model: m}\n", `duplicate agent name "a"`},
		{"llm with children", "name: a\ntype: llm\nmodel: m\nsub_agents:\n  - {name: b, type: llm, model: m}\n", "sub_agents are not supported"},
		{"bad include_contents", "name: a\ntype: llm\nmodel: m\ninclude_contents: some\n", "include_contents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("name: a\ntype: llm\nmodel: m\nflavour: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flavour")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: hello\ntype: llm\nmodel: gemini-2.5-flash\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", cfg.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ADK_DOTENV_TEST=loaded\n"), 0o600))

	t.Cleanup(func() { os.Unsetenv("ADK_DOTENV_TEST") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), path))
	assert.Equal(t, "loaded", os.Getenv("ADK_DOTENV_TEST"))
}

func TestBuild_RunsEssayTree(t *testing.T) {
	cfg, err := Parse([]byte(essayYAML))
	require.NoError(t, err)

	writer := model.NewScriptedModel("writer", model.NewTextResponse("Draft essay."))
	critic := model.NewScriptedModel("critic", model.NewTextResponse("APPROVED - Essay is complete."))
	refiner := model.NewScriptedModel("refiner",
		model.NewToolCallResponse(core.FunctionCall{ID: "x1", Name: tool.ExitLoopName}),
	)

	queue := []model.Model{writer, critic, refiner}
	models := func(string) (model.Model, error) {
		m := queue[0]
		queue = queue[1:]

		return m, nil
	}

	var before int

	root, err := Build(cfg, BuildOptions{
		Models: models,
		Tools:  tool.NewRegistry(tool.NewExitLoopTool()),
		Callbacks: map[string]callback.Set{
			"RefinementLoop": {BeforeAgent: []callback.BeforeAgent{func(*core.CallbackContext) (*core.Content, error) {
				before++
				return nil, nil
			}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Drafts and refines an essay", root.Description())

	loop, ok := root.(*agent.SequentialAgent).FindAgent("RefinementLoop").(*agent.LoopAgent)
	require.True(t, ok)
	assert.Equal(t, 3, loop.MaxIterations())

	res := testutil.RunAgent(t, root, "Write about Go.")
	require.NoError(t, res.Err)

	assert.Equal(t, "Draft essay.", res.State("current_essay"))
	assert.Equal(t, "APPROVED - Essay is complete.", res.State("critique"))
	assert.Equal(t, 1, before)
	assert.Equal(t, 1, critic.Calls())
	assert.Equal(t, 1, refiner.Calls())
}

func TestBuild_Errors(t *testing.T) {
	cfg, err := Parse([]byte("name: a\ntype: llm\nmodel: m\ntools: [nope]\n"))
	require.NoError(t, err)

	_, err = Build(cfg, BuildOptions{})
	assert.ErrorContains(t, err, "no model resolver")

	_, err = Build(cfg, BuildOptions{Models: model.StaticResolver(map[string]model.Model{"*": model.NewMockModel("m")})})
	assert.ErrorIs(t, err, tool.ErrToolNotFound)

	_, err = Build(cfg, BuildOptions{Models: model.StaticResolver(nil), Tools: tool.NewRegistry()})
	assert.ErrorContains(t, err, `no model registered for "m"`)
}

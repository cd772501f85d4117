// Package podcast is a two-step sequential pipeline. PodcastPlanner turns a
// topic into a structured PodcastEpisodePlan through the save_episode_plan
// tool; TranscriptWriter then scripts the episode from that plan.
package podcast

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

const (
	RootName    = "PodcastTranscriptAgent"
	PlannerName = "PodcastPlanner"
	WriterName  = "TranscriptWriter"
	ModelID     = "gemini-2.5-flash"

	SavePlanToolName = "save_episode_plan"

	KeyEpisodePlan       = "episode_plan"
	KeyPodcastTranscript = "podcast_transcript"

	// PlanArtifact is the artifact the saved plan is written to.
	PlanArtifact = "episode_plan.json"
)

const PlannerInstruction = `You are a podcast producer. Plan an episode about the topic the user gives you.

Decide on:
- A catchy episode title
- Two or three speakers, each with a short speaker_id, a name and a role (host, co-host, guest expert)
- Three to five main segments, each with a title and a few script points

Call the 'save_episode_plan' function exactly once with the complete plan.
After the plan is saved, reply with one sentence summarizing the episode.`

const WriterInstruction = `You are a podcast script writer. Write a full transcript for the episode planned below.

**Episode Plan:**
{episode_plan}

**Guidelines:**
- Open with the host introducing the episode title and the speakers
- Cover every segment in order and every script point within it
- Prefix each line with the speaker's name, e.g. "Alex: ..."
- Keep the conversation natural, with questions, reactions and hand-offs
- Close with a short wrap-up and sign-off

Output ONLY the transcript.`

// NewSavePlanTool returns the tool the planner uses to submit its outline.
// A valid plan is stored in state under episode_plan and as the
// episode_plan.json artifact.
func NewSavePlanTool() (tool.Tool, error) {
	return tool.NewTypedTool[PodcastEpisodePlan](SavePlanToolName,
		"Saves the structured podcast episode plan: title, speakers and segments.",
		func(tc *core.ToolContext, plan PodcastEpisodePlan) (any, error) {
			if err := plan.Validate(); err != nil {
				return nil, tool.NewToolError(SavePlanToolName, err.Error(), tool.CodeValidation)
			}

			data, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encode plan: %w", err)
			}

			if err := tc.SaveArtifact(PlanArtifact, data); err != nil {
				return nil, fmt.Errorf("save %s: %w", PlanArtifact, err)
			}

			var state map[string]any
			if err := json.Unmarshal(data, &state); err != nil {
				return nil, fmt.Errorf("decode plan: %w", err)
			}

			tc.SetState(KeyEpisodePlan, state)
			tc.LogInfo("podcast.plan.saved", "title", plan.EpisodeTitle, "segments", len(plan.Segments))

			return map[string]any{
				"status":        "success",
				"episode_title": plan.EpisodeTitle,
				"speakers":      len(plan.Speakers),
				"segments":      len(plan.Segments),
			}, nil
		})
}

// New builds the podcast pipeline.
func New(models model.Resolver) (core.Agent, error) {
	saveTool, err := NewSavePlanTool()
	if err != nil {
		return nil, err
	}

	plannerLLM, err := models(ModelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PlannerName, err)
	}

	writerLLM, err := models(ModelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", WriterName, err)
	}

	planner := agent.NewModelAgent(PlannerName, plannerLLM, func(o *agent.ModelAgentOptions) {
		o.Description = "Plans the episode structure and saves it as a PodcastEpisodePlan"
		o.Instruction = agent.NewInstructionFromText(PlannerInstruction)
		o.Tools = []tool.Tool{saveTool}
	})

	writer := agent.NewModelAgent(WriterName, writerLLM, func(o *agent.ModelAgentOptions) {
		o.Description = "Writes the podcast transcript from the saved episode plan"
		o.Instruction = agent.NewInstructionFromText(WriterInstruction)
		o.OutputKey = KeyPodcastTranscript
	})

	root := agent.NewSequentialAgent(RootName, planner, writer)
	root.SetDescription("Plans a podcast episode and writes its transcript")

	return root, nil
}

// Package essay drafts an essay once and then refines it in a bounded loop.
// The critic either lists improvements or approves with ApprovalPhrase; the
// refiner then rewrites current_essay or calls exit_loop, which escalates
// and ends RefinementLoop.
package essay

import (
	"fmt"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

const (
	RootName    = "EssayRefinementSystem"
	LoopName    = "RefinementLoop"
	WriterName  = "InitialWriter"
	CriticName  = "Critic"
	RefinerName = "Refiner"

	WriterModelID = "gemini-2.5-flash"
	ReviewModelID = "gemini-2.5-pro"

	KeyCurrentEssay = "current_essay"
	KeyCritique     = "critique"

	// MaxIterations caps the critic/refiner rounds.
	MaxIterations = 5

	ApprovalPhrase = "APPROVED - Essay is complete."
)

const InitialWriterInstruction = `You are a skilled essay writer. Write a first draft of an essay on the topic the user requests.

**Requirements:**
- A clear thesis in the opening paragraph
- Two or three body paragraphs with supporting arguments
- A short concluding paragraph

Keep the essay between 300 and 500 words.
Output ONLY the essay text, no titles, explanations or meta-commentary.`

const CriticInstruction = `You are an experienced essay critic and teacher. Review the essay below and evaluate its quality. Your primary objective is to drive iterative improvement through continuous feedback.

**Essay to Review:**
{current_essay}

**Evaluation Criteria:**
- Clear thesis and organization
- Strong supporting arguments
- Good grammar and style
- Engaging and coherent writing

**Your Task:**
Your primary goal is to ensure the essay meets all evaluation criteria to a high standard.

IF this appears to be an *initial draft* that has not yet received feedback,
you *must* provide 2-3 specific, actionable improvements. It is expected that all first
drafts require some level of revision.

ELSE (if the essay has already been revised or is of high quality):
  Carefully review the essay against all criteria.

  IF the essay meets ALL criteria exceptionally well and genuinely requires no further improvements:
    Output EXACTLY this phrase: 'APPROVED - Essay is complete.'

  ELSE (if the essay still requires any improvement, even minor):
    Provide 2-3 specific, actionable improvements. Be constructive and clear.
    Example: 'The thesis is vague - make it more specific about X.'

Output ONLY the approval phrase OR the specific feedback and improvement suggestions.
Your output should clearly indicate either approval or specific areas for improvement.
Prioritize providing feedback to ensure multiple rounds of iteration.

`

const RefinerInstruction = `You are an essay editor. Read the critique below and take appropriate action.

**Current Essay:**
{current_essay}

**Critique:**
{critique}

**Your Task:**
IF the critique says 'APPROVED - Essay is complete.':
  Call the 'exit_loop' function immediately. Do NOT output any text.
  This means your response should ONLY be the function call, nothing else.

ELSE (the critique contains improvement suggestions):
  Apply the suggested improvements to create a better version of the essay.
  Output ONLY the improved essay text, no explanations or meta-commentary.
  Do NOT call any functions when improving the essay.

IMPORTANT: You must EITHER call exit_loop OR output improved essay text.
Never do both in the same response.`

func newModelAgent(models model.Resolver, name, modelID string, fn func(o *agent.ModelAgentOptions)) (*agent.ModelAgent, error) {
	llm, err := models(modelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return agent.NewModelAgent(name, llm, fn), nil
}

// New builds the essay refinement system.
func New(models model.Resolver) (core.Agent, error) {
	writer, err := newModelAgent(models, WriterName, WriterModelID, func(o *agent.ModelAgentOptions) {
		o.Description = "Writes the first draft of an essay"
		o.Instruction = agent.NewInstructionFromText(InitialWriterInstruction)
		o.OutputKey = KeyCurrentEssay
	})
	if err != nil {
		return nil, err
	}

	critic, err := newModelAgent(models, CriticName, ReviewModelID, func(o *agent.ModelAgentOptions) {
		o.Description = "Evaluates essay quality and provides feedback"
		o.Instruction = agent.NewInstructionFromText(CriticInstruction)
		o.OutputKey = KeyCritique
	})
	if err != nil {
		return nil, err
	}

	refiner, err := newModelAgent(models, RefinerName, ReviewModelID, func(o *agent.ModelAgentOptions) {
		o.Description = "Improves essay based on critique or signals completion"
		o.Instruction = agent.NewInstructionFromText(RefinerInstruction)
		o.Tools = []tool.Tool{tool.NewExitLoopTool()}
		o.OutputKey = KeyCurrentEssay
	})
	if err != nil {
		return nil, err
	}

	loop := agent.NewLoopAgent(LoopName, []core.Agent{critic, refiner}, agent.WithMaxIterations(MaxIterations))
	loop.SetDescription("Critiques and refines the essay until it is approved")

	root := agent.NewSequentialAgent(RootName, writer, loop)
	root.SetDescription("Complete essay writing and refinement system")

	return root, nil
}

package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

// Error codes attached to error events emitted by flows.
const (
	ErrorCodeModel     = "MODEL_ERROR"
	ErrorCodeCallLimit = "MODEL_CALL_LIMIT"
	ErrorCodeProcessor = "PROCESSOR_ERROR"
)

// ErrNoResponse is returned when a model closes its stream without a final
// response.
var ErrNoResponse = errors.New("model returned no final response")

// BaseFlow is a request -> model -> tools loop with pluggable processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
	extraTools         []tool.Tool
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(DefaultFunctionExecutorConfig()),
	}
}

// AddRequestProcessor appends a request processor; registration order is
// execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the default parallel executor.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) { f.executor = e }

// addTool makes a tool executable without it being one of the agent's own.
func (f *BaseFlow) addTool(t tool.Tool) { f.extraTools = append(f.extraTools, t) }

// tools returns the agent's tools followed by flow supplied ones.
func (f *BaseFlow) tools() []tool.Tool {
	own := f.agent.GetTools()
	out := make([]tool.Tool, 0, len(own)+len(f.extraTools))
	out = append(out, own...)

	for _, t := range f.extraTools {
		if _, err := tool.Find(own, t.Name()); err != nil {
			out = append(out, t)
		}
	}

	return out
}

// Run loops model steps until one of them ends the turn.
func (f *BaseFlow) Run(runCtx *core.RunContext) error {
	for step := 1; ; step++ {
		if err := runCtx.Err(); err != nil {
			return err
		}

		done, err := f.runStep(runCtx, step)
		if err != nil || done {
			return err
		}
	}
}

// runStep performs one model call plus the tool executions it requests. It
// reports whether the turn is over.
func (f *BaseFlow) runStep(runCtx *core.RunContext, step int) (bool, error) {
	name := f.agent.GetName()

	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return true, fmt.Errorf("refresh session: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			err = fmt.Errorf("request processor %s: %w", processor.Name(), err)
			return true, f.fail(runCtx, ErrorCodeProcessor, err)
		}
	}

	for _, t := range f.agent.GetTools() {
		if !req.HasTool(t.Name()) {
			req.Tools = append(req.Tools, definition(t))
		}
	}

	cbCtx := core.NewCallbackContext(runCtx)
	callbacks := f.agent.Callbacks()

	resp, err := callbacks.RunBeforeModel(cbCtx, req)
	if err != nil {
		return true, fmt.Errorf("before model callback: %w", err)
	}

	if resp != nil {
		runCtx.LogDebug("agent.model.skipped", "agent", name, "step", step)
	} else {
		resp, err = f.callModel(runCtx, req, step)
		if err != nil {
			return true, err
		}
	}

	replaced, err := callbacks.RunAfterModel(cbCtx, resp)
	if err != nil {
		return true, fmt.Errorf("after model callback: %w", err)
	}

	if replaced != nil {
		resp = replaced
	}

	for _, processor := range f.responseProcessors {
		if err := processor.ProcessResponse(runCtx, resp, f.agent); err != nil {
			err = fmt.Errorf("response processor %s: %w", processor.Name(), err)
			return true, f.fail(runCtx, ErrorCodeProcessor, err)
		}
	}

	ev := core.NewEvent(runCtx.RunID, name)
	content := resp.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}

	ev.Content = &content

	calls := ev.GetFunctionCalls()
	if len(calls) == 0 {
		complete := true
		ev.TurnComplete = &complete
	}

	if err := runCtx.EmitAndWait(ev); err != nil {
		return true, err
	}

	if len(calls) == 0 {
		return true, nil
	}

	responses, err := f.executor.Execute(runCtx, f.agent, f.tools(), calls, runCtx.EmitAndWait)
	if err != nil {
		return true, err
	}

	return f.afterTools(runCtx, responses)
}

// afterTools inspects function response events for control signals.
func (f *BaseFlow) afterTools(runCtx *core.RunContext, responses []core.Event) (bool, error) {
	var transfer string

	for _, ev := range responses {
		if ev.IsEscalation() {
			runCtx.LogInfo("agent.flow.escalated", "agent", f.agent.GetName())
			return true, nil
		}

		if s := ev.Actions.SkipSummarization; s != nil && *s {
			return true, nil
		}

		if t := ev.Actions.TransferToAgent; t != nil && *t != "" {
			transfer = *t
		}
	}

	if transfer != "" {
		return true, f.agent.TransferToAgent(runCtx, transfer)
	}

	return false, nil
}

// callModel runs the limiter and the model. Partial chunks are emitted as
// they arrive; the final response is returned.
func (f *BaseFlow) callModel(runCtx *core.RunContext, req *model.Request, step int) (*model.Response, error) {
	name := f.agent.GetName()

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return nil, f.fail(runCtx, ErrorCodeCallLimit, err)
		}
	}

	llm := f.agent.GetLLM()
	if llm == nil {
		return nil, fmt.Errorf("agent %s has no model", name)
	}

	runCtx.LogDebug("agent.model.request", "agent", name, "model", llm.Info().Name, "step", step,
		"contents", len(req.Contents), "tools", len(req.Tools))

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var final *model.Response

	for resp := range respCh {
		if resp.Partial {
			ev := core.NewEvent(runCtx.RunID, name)
			content := resp.Content
			ev.Content = &content
			partial := true
			ev.Partial = &partial

			if err := runCtx.EmitEvent(ev); err != nil {
				return nil, err
			}

			continue
		}

		r := resp
		final = &r
	}

	if err, ok := <-errCh; ok && err != nil {
		return nil, f.fail(runCtx, ErrorCodeModel, fmt.Errorf("model %s: %w", llm.Info().Name, err))
	}

	if final == nil {
		return nil, f.fail(runCtx, ErrorCodeModel, ErrNoResponse)
	}

	return final, nil
}

// fail records err as an error event and returns it.
func (f *BaseFlow) fail(runCtx *core.RunContext, code string, err error) error {
	runCtx.LogError("agent.flow.error", "agent", f.agent.GetName(), "code", code, "error", err.Error())

	if runCtx.Err() != nil {
		return err
	}

	if emitErr := runCtx.EmitAndWait(core.NewErrorEvent(runCtx.RunID, f.agent.GetName(), code, err.Error())); emitErr != nil {
		return errors.Join(err, emitErr)
	}

	return err
}

func definition(t tool.Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/tool"
)

// FunctionExecutor executes a batch of function calls and emits one function
// response event per call. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (a panicking tool becomes an error response)
//   - Apply ToolContext accumulated actions to the emitted events
//
// Execute returns the emitted events so the caller can inspect control
// signals such as escalation or transfer.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, tools []tool.Tool, calls []core.FunctionCall, emit func(core.Event) error) ([]core.Event, error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 runs every call of a batch at once
	PreserveOrder  bool // emit in call order instead of completion order
	LogStartEvents bool
}

// DefaultFunctionExecutorConfig returns the configuration used by flows.
func DefaultFunctionExecutorConfig() FunctionExecutorConfig {
	return FunctionExecutorConfig{PreserveOrder: true, LogStartEvents: true}
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs an executor that runs the calls of
// a batch concurrently. Events are emitted from the calling goroutine once
// the whole batch finished.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	tools []tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event) error,
) ([]core.Event, error) {
	n := len(calls)
	if n == 0 {
		return nil, nil
	}

	pending := make([]*pendingCall, n)
	done := make(chan int, n)

	g := new(errgroup.Group)
	if e.cfg.MaxParallel > 0 {
		g.SetLimit(e.cfg.MaxParallel)
	}

	for i, fc := range calls {
		g.Go(func() error {
			pending[i] = e.executeOne(runCtx, agent, tools, fc)
			done <- i

			return nil
		})
	}

	_ = g.Wait()
	close(done)

	order := make([]int, 0, n)
	if e.cfg.PreserveOrder {
		for i := range n {
			order = append(order, i)
		}
	} else {
		for i := range done {
			order = append(order, i)
		}
	}

	emitted := make([]core.Event, 0, n)

	// After-tool callbacks run here, one call at a time, so each one reads
	// the state persisted with the previous response of the batch.
	for _, i := range order {
		if err := runCtx.Err(); err != nil {
			return emitted, err
		}

		ev := e.finish(runCtx, agent, pending[i])

		if err := emit(ev); err != nil {
			runCtx.LogError("agent.function.emit.error", "function", calls[i].Name, "error", err.Error())
			return emitted, err
		}

		emitted = append(emitted, ev)
	}

	return emitted, nil
}

// pendingCall is a call whose tool has run but whose response is not built
// yet.
type pendingCall struct {
	fc      core.FunctionCall
	toolCtx *core.ToolContext
	args    map[string]any
	result  any
	err     error
	// executed is false when the call failed early or a before-tool
	// callback answered it.
	executed bool
}

// executeOne runs the before-tool callbacks and the tool.
func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, agent FlowAgent, tools []tool.Tool, fc core.FunctionCall) *pendingCall {
	p := &pendingCall{fc: fc, toolCtx: core.NewToolContext(runCtx, fc.ID)}

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	e.call(agent, tools, p)

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", p.err != nil,
	)

	return p
}

func (e *parallelFunctionExecutor) call(agent FlowAgent, tools []tool.Tool, p *pendingCall) {
	fc := p.fc

	defer recoverToolPanic(p)

	args, err := decodeArguments(fc.Arguments)
	if err != nil {
		p.err = tool.NewToolError(fc.Name, err.Error(), tool.CodeValidation)
		return
	}

	p.args = args

	t, err := tool.Find(tools, fc.Name)
	if err != nil {
		p.err = tool.NewToolError(fc.Name, err.Error(), tool.CodeNotFound)
		return
	}

	override, err := agent.Callbacks().RunBeforeTool(p.toolCtx, fc.Name, args)
	if err != nil {
		p.err = err
		return
	}

	if override != nil {
		p.result = override
		return
	}

	result, err := t.Call(p.toolCtx, args)
	if err != nil {
		p.err = err
		return
	}

	p.result, p.executed = result, true
}

// finish runs the after-tool callbacks and builds the response event.
func (e *parallelFunctionExecutor) finish(runCtx *core.RunContext, agent FlowAgent, p *pendingCall) core.Event {
	if p.executed {
		func() {
			defer recoverToolPanic(p)

			replaced, err := agent.Callbacks().RunAfterTool(p.toolCtx, p.fc.Name, p.args, p.result)
			switch {
			case err != nil:
				p.result, p.err = nil, err
			case replaced != nil:
				p.result = replaced
			}
		}()
	}

	ev := core.NewFunctionResponseEvent(runCtx.RunID, agent.GetName(), p.fc.ID, p.fc.Name, p.result, p.err)
	p.toolCtx.ApplyActions(&ev)

	return ev
}

func recoverToolPanic(p *pendingCall) {
	if r := recover(); r != nil {
		p.toolCtx.LogError("agent.function.panic", "function", p.fc.Name, "recover", r, "stack", string(debug.Stack()))
		p.result, p.err = nil, tool.NewToolError(p.fc.Name, fmt.Sprintf("panic: %v", r), tool.CodePanic)
		p.executed = false
	}
}

func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

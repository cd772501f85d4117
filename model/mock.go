package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/adkpatterns/core"
)

// MockModel is a lightweight in‑memory Model useful for tests & demos. It
// echoes the last user input unless a canned response was registered for it.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[prompt] = response
}

// Generate implements Model; emits optional streaming word chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		input := req.LastUserText()
		if input == "" {
			errCh <- fmt.Errorf("no user input provided")
			return
		}

		m.mu.Lock()
		full := m.responses[input]
		m.mu.Unlock()

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}

		respCh <- NewTextResponse(full)
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// ScriptedModel replays a fixed queue of responses, one per Generate call,
// and records every request it receives.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	script   []Response
	requests []Request
	err      error
}

// NewScriptedModel creates a model that returns responses in order.
func NewScriptedModel(name string, responses ...Response) *ScriptedModel {
	return &ScriptedModel{
		info:   Info{Name: name, Provider: "mock", SupportsTools: true},
		script: responses,
	}
}

// Then appends further responses to the script.
func (m *ScriptedModel) Then(responses ...Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.script = append(m.script, responses...)

	return m
}

// FailWith makes every subsequent call fail with err.
func (m *ScriptedModel) FailWith(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err

	return m
}

// Requests returns a copy of all received requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

// Remaining returns how many scripted responses are left.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.script)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		next Response
		err  = m.err
	)

	if err == nil {
		if len(m.script) == 0 {
			err = fmt.Errorf("scripted model %s: script exhausted", m.info.Name)
		} else {
			next = m.script[0]
			m.script = m.script[1:]
		}
	}
	m.mu.Unlock()

	return emitOne(ctx, next, err)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// FuncModel answers every request with the result of a function. It is safe
// for concurrent use when fn is.
type FuncModel struct {
	info Info
	fn   func(Request) (Response, error)
}

// NewFuncModel wraps fn as a Model.
func NewFuncModel(name string, fn func(Request) (Response, error)) *FuncModel {
	return &FuncModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}, fn: fn}
}

// Generate implements Model.
func (m *FuncModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	resp, err := m.fn(req)
	return emitOne(ctx, resp, err)
}

// Info implements Model.
func (m *FuncModel) Info() Info { return m.info }

func emitOne(ctx context.Context, resp Response, err error) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	defer close(respCh)
	defer close(errCh)

	if err != nil {
		errCh <- err
		return respCh, errCh
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		errCh <- ctxErr
		return respCh, errCh
	}

	respCh <- resp

	return respCh, errCh
}

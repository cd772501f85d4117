package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "authorA")
	assert.Equal(t, "authorA", e.Author)
	assert.Equal(t, "inv-123", e.InvocationID)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	msg := NewMessageEvent("inv", "agent1", "hello world")
	require.NotNil(t, msg.Content)
	assert.Equal(t, RoleAssistant, msg.Content.Role)
	assert.Equal(t, "hello world", msg.Text())

	user := NewUserMessageEvent("inv", "hi")
	assert.Equal(t, AuthorUser, user.Author)
	assert.Equal(t, RoleUser, user.Content.Role)

	call := NewFunctionCallEvent("inv", "agent2", "c1", "do_stuff", `{"a":1}`)
	calls := call.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "do_stuff", calls[0].Name)
	assert.Equal(t, `{"a":1}`, calls[0].Arguments)

	ok := NewFunctionResponseEvent("inv", "agent2", "c1", "do_stuff", 42, nil)
	resps := ok.GetFunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, 42, resps[0].Response)
	assert.Empty(t, resps[0].Error)

	failed := NewFunctionResponseEvent("inv", "agent2", "c2", "do_stuff", nil, errors.New("boom"))
	assert.Equal(t, "boom", failed.GetFunctionResponses()[0].Error)

	errEv := NewErrorEvent("inv", "agent", "model_error", "nope")
	assert.True(t, errEv.IsError())
	assert.Equal(t, "model_error", *errEv.ErrorCode)
}

func TestEvent_IsFinalResponse(t *testing.T) {
	partial := true
	skip := true

	partialEv := NewMessageEvent("inv", "a", "x")
	partialEv.Partial = &partial

	skipped := NewFunctionResponseEvent("inv", "a", "c", "f", "ok", nil)
	skipped.Actions.SkipSummarization = &skip

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"bare", NewEvent("inv", "a"), true},
		{"partial", partialEv, false},
		{"function call", NewFunctionCallEvent("inv", "a", "c", "f", ""), false},
		{"function response", NewFunctionResponseEvent("inv", "a", "c", "f", "ok", nil), false},
		{"skip summarization", skipped, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.IsFinalResponse())
		})
	}
}

func TestEvent_Escalation(t *testing.T) {
	e := NewEvent("inv", "a")
	assert.False(t, e.IsEscalation())

	b := true
	e.Actions.Escalate = &b
	assert.True(t, e.IsEscalation())
}

func TestEvent_IDUniqueness(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}

func TestFinalText(t *testing.T) {
	events := []Event{
		NewUserMessageEvent("inv", "question"),
		NewMessageEvent("inv", "a", "first"),
		NewFunctionCallEvent("inv", "a", "c", "f", "{}"),
		NewMessageEvent("inv", "b", "answer"),
		NewStateEvent("inv", "b", map[string]any{"k": 1}),
	}

	assert.Equal(t, "answer", FinalText(events))
	assert.Empty(t, FinalText(nil))
}

func TestContent_JSONRoundTrip(t *testing.T) {
	mime := "text/plain"
	in := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		FilePart{File: FilePartFile{URI: "file://x", MimeType: &mime}},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "f", Arguments: `{"x":1}`}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "1", Name: "f", Response: "ok"}},
	}}

	ev := NewEvent("inv", "a")
	ev.Content = &in

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var out Event
	require.NoError(t, json.Unmarshal(b, &out))
	require.NotNil(t, out.Content)
	require.Len(t, out.Content.Parts, 5)
	assert.Equal(t, TextPart{Text: "hello"}, out.Content.Parts[0])
	assert.Equal(t, "file://x", out.Content.Parts[2].(FilePart).File.URI)
	assert.Equal(t, "f", out.GetFunctionCalls()[0].Name)
	assert.Equal(t, "ok", out.GetFunctionResponses()[0].Response)
}

func TestContent_UnmarshalUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"video"}]}`), &c)
	assert.Error(t, err)
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns"
	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/metrics"
	"github.com/hupe1980/adkpatterns/model"
)

func newTestServer(t *testing.T, responses ...model.Response) *httptest.Server {
	t.Helper()

	rec := metrics.NewRecorder()
	app := adkpatterns.New(func(o *adkpatterns.Options) { o.Callbacks = rec.Callbacks() })

	app.RegisterAgent(agent.NewModelAgent("greeter", model.NewScriptedModel("m", responses...), func(o *agent.ModelAgentOptions) {
		o.Description = "Says hello"
		o.OutputKey = "greeting"
	}))

	srv := httptest.NewServer(New(app, func(o *Options) { o.Metrics = rec.Handler() }))
	t.Cleanup(srv.Close)

	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestServer_ListAgents(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/agents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Agents []AgentInfo `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []AgentInfo{{Name: "greeter", Description: "Says hello"}}, body.Agents)
}

func TestServer_RunAndSession(t *testing.T) {
	srv := newTestServer(t, model.NewTextResponse("Hello, Ada!"))

	resp := post(t, srv.URL+"/v1/agents/greeter/sessions/s1:run", `{"message":"I am Ada"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "s1", run.SessionID)
	assert.Equal(t, "Hello, Ada!", run.FinalText)
	assert.Equal(t, "Hello, Ada!", run.State["greeting"])
	assert.Len(t, run.Events, 2)
	assert.Empty(t, run.Error)

	sessResp, err := http.Get(srv.URL + "/v1/sessions/s1")
	require.NoError(t, err)
	defer sessResp.Body.Close()

	var sess SessionResponse
	require.NoError(t, json.NewDecoder(sessResp.Body).Decode(&sess))
	assert.Equal(t, "s1", sess.ID)
	assert.Len(t, sess.Events, 2)
	assert.Equal(t, "Hello, Ada!", sess.State["greeting"])

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	var sb bytes.Buffer
	_, err = sb.ReadFrom(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `adk_agent_runs_total{agent="greeter"} 1`)
}

func TestServer_RunErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"invalid json", "/v1/agents/greeter/sessions/s1:run", `{`, http.StatusBadRequest},
		{"empty message", "/v1/agents/greeter/sessions/s1:run", `{"message":""}`, http.StatusBadRequest},
		{"unknown agent", "/v1/agents/nobody/sessions/s1:run", `{"message":"hi"}`, http.StatusNotFound},
		{"unknown agent stream", "/v1/agents/nobody/sessions/s1:stream", `{"message":"hi"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServer_ModelFailure(t *testing.T) {
	// The scripted model has nothing to say, so the run fails.
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/v1/agents/greeter/sessions/s2:run", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var run RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Contains(t, run.Error, "script exhausted")
}

func TestServer_SessionNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Stream(t *testing.T) {
	srv := newTestServer(t, model.NewTextResponse("streamed"))

	resp := post(t, srv.URL+"/v1/agents/greeter/sessions/s3:stream", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var sb bytes.Buffer
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)

	out := sb.String()
	assert.Contains(t, out, "event: event\n")
	assert.Contains(t, out, "streamed")
	assert.Contains(t, out, "event: done\n")
}

// Package metrics exposes Prometheus metrics for agent runs, model calls and
// tool calls. A Recorder produces a callback.Set that feeds the collectors;
// attach it to an agent tree and serve Handler on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

// Options configures a Recorder.
type Options struct {
	// Namespace prefixes every metric name. Default "adk".
	Namespace string
	// Registry receives the collectors. A fresh registry is used when nil.
	Registry *prometheus.Registry
	// TokenCounter estimates usage when a provider reports none.
	TokenCounter *TokenCounter
}

// Recorder owns the collectors.
type Recorder struct {
	registry *prometheus.Registry
	counter  *TokenCounter

	agentRuns     *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	tokens        *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec

	mu      sync.Mutex
	pending map[string]pendingCall
}

type pendingCall struct {
	start        time.Time
	promptTokens int
}

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(optFns ...func(o *Options)) *Recorder {
	opts := Options{Namespace: "adk"}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(opts.Registry)
	ns := opts.Namespace

	return &Recorder{
		registry: opts.Registry,
		counter:  opts.TokenCounter,
		agentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "agent_runs_total",
			Help:      "Completed agent invocations by agent.",
		}, []string{"agent"}),
		agentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "agent_run_duration_seconds",
			Help:      "Duration of agent invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		modelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "model_calls_total",
			Help:      "Model calls by agent and finish reason.",
		}, []string{"agent", "finish_reason"}),
		modelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "model_call_duration_seconds",
			Help:      "Duration of model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "model_tokens_total",
			Help:      "Tokens used by model calls (prompt or completion).",
		}, []string{"agent", "type"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tool_calls_total",
			Help:      "Tool calls by agent and tool.",
		}, []string{"agent", "tool"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		pending: map[string]pendingCall{},
	}
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) begin(key string, promptTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[key] = pendingCall{start: time.Now(), promptTokens: promptTokens}
}

func (r *Recorder) end(key string) (pendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[key]
	delete(r.pending, key)

	return p, ok
}

func agentKey(cbCtx *core.CallbackContext) string {
	return "agent/" + cbCtx.RunID() + "/" + cbCtx.Branch() + "/" + cbCtx.AgentName()
}

func modelKey(cbCtx *core.CallbackContext) string {
	return "model/" + cbCtx.RunID() + "/" + cbCtx.Branch() + "/" + cbCtx.AgentName()
}

// Callbacks returns hooks feeding the collectors. They never short-circuit.
func (r *Recorder) Callbacks() callback.Set {
	return callback.Set{
		BeforeAgent: []callback.BeforeAgent{func(cbCtx *core.CallbackContext) (*core.Content, error) {
			r.begin(agentKey(cbCtx), 0)
			return nil, nil
		}},
		AfterAgent: []callback.AfterAgent{func(cbCtx *core.CallbackContext) (*core.Content, error) {
			r.agentRuns.WithLabelValues(cbCtx.AgentName()).Inc()

			if p, ok := r.end(agentKey(cbCtx)); ok {
				r.agentDuration.WithLabelValues(cbCtx.AgentName()).Observe(time.Since(p.start).Seconds())
			}

			return nil, nil
		}},
		BeforeModel: []callback.BeforeModel{func(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error) {
			r.begin(modelKey(cbCtx), r.counter.CountRequest(req))
			return nil, nil
		}},
		AfterModel: []callback.AfterModel{func(cbCtx *core.CallbackContext, resp *model.Response) (*model.Response, error) {
			r.observeModel(cbCtx.AgentName(), modelKey(cbCtx), resp)
			return nil, nil
		}},
		BeforeTool: []callback.BeforeTool{func(toolCtx *core.ToolContext, _ string, _ map[string]any) (map[string]any, error) {
			r.begin("tool/"+toolCtx.FunctionCallID(), 0)
			return nil, nil
		}},
		AfterTool: []callback.AfterTool{func(toolCtx *core.ToolContext, name string, _ map[string]any, _ any) (any, error) {
			r.toolCalls.WithLabelValues(toolCtx.AgentName(), name).Inc()

			if p, ok := r.end("tool/" + toolCtx.FunctionCallID()); ok {
				r.toolDuration.WithLabelValues(name).Observe(time.Since(p.start).Seconds())
			}

			return nil, nil
		}},
	}
}

func (r *Recorder) observeModel(agentName, key string, resp *model.Response) {
	finish := resp.FinishReason
	if finish == "" {
		finish = "unknown"
	}

	r.modelCalls.WithLabelValues(agentName, finish).Inc()

	p, ok := r.end(key)
	if ok {
		r.modelDuration.WithLabelValues(agentName).Observe(time.Since(p.start).Seconds())
	}

	prompt, completion := p.promptTokens, 0
	if resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	} else {
		completion = r.counter.Count(resp.Text())
	}

	r.tokens.WithLabelValues(agentName, "prompt").Add(float64(prompt))
	r.tokens.WithLabelValues(agentName, "completion").Add(float64(completion))
}

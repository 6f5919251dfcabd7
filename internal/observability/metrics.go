package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Dialog turn throughput and policy-mode outcomes
//   - LLM request performance, token usage, and fallback rate
//   - Tool execution patterns and latencies through the resilient tool client
//   - Evidence Gate decisions (pre-LLM blocks, post-LLM filters)
//   - Retrieval coverage and hybrid-strategy mix
//   - Alert evaluation cycles and webhook delivery outcomes
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.DialogTurnCompleted("normal", "success")
//	defer metrics.LLMRequestDuration("anthropic", "claude-3-opus").Observe(time.Since(start).Seconds())
type Metrics struct {
	// DialogTurnCounter counts completed dialog turns.
	// Labels: policy_mode (normal|conservative|refuse), status (success|error)
	DialogTurnCounter *prometheus.CounterVec

	// DialogTurnDuration measures end-to-end turn latency in seconds.
	// Labels: policy_mode
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s
	DialogTurnDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai|sandbox), model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error|fallback)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolCallCounter counts tool invocations through the resilient tool
	// client. Labels: tool_name, status (success|error), priority
	// (critical|important|optional)
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolCallDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (dialog|tool|gate|retrieval|alert), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active dialog sessions.
	ActiveSessions prometheus.Gauge

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// GateDecisionCounter counts Evidence Gate outcomes.
	// Labels: phase (pre_llm|post_llm), outcome (pass|blocked|filtered)
	GateDecisionCounter *prometheus.CounterVec

	// RetrievalDuration measures hybrid retrieval latency in seconds.
	// Labels: strategy (trgm|qdrant|hybrid|trgm_fallback)
	// Buckets: 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 2s
	RetrievalDuration *prometheus.HistogramVec

	// RetrievalHitsReturned tracks how many evidence hits a retrieval call
	// returned. Labels: strategy
	RetrievalHitsReturned *prometheus.HistogramVec

	// CacheOutcome counts cache reads by hit/miss.
	// Labels: resource (persona|prompt|tool_result), outcome (hit|miss)
	CacheOutcome *prometheus.CounterVec

	// AlertEvaluationCounter counts alert evaluation cycles.
	// Labels: outcome (firing|resolved|unchanged)
	AlertEvaluationCounter *prometheus.CounterVec

	// AlertWebhookCounter counts webhook dispatch attempts.
	// Labels: status (sent|failed|skipped)
	AlertWebhookCounter *prometheus.CounterVec

	// ExperimentAssignmentCounter counts experiment bucket assignments.
	// Labels: experiment_id, variant
	ExperimentAssignmentCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		DialogTurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_dialog_turns_total",
				Help: "Total number of dialog turns by policy mode and status",
			},
			[]string{"policy_mode", "status"},
		),

		DialogTurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_dialog_turn_duration_seconds",
				Help:    "Duration of a full dialog turn in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"policy_mode"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_tool_calls_total",
				Help: "Total number of tool calls by tool name, status, and priority",
			},
			[]string{"tool_name", "status", "priority"},
		),

		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "groundedcore_active_sessions",
				Help: "Current number of active dialog sessions",
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		GateDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_gate_decisions_total",
				Help: "Total number of Evidence Gate decisions by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),

		RetrievalDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_retrieval_duration_seconds",
				Help:    "Duration of evidence retrieval calls in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"strategy"},
		),

		RetrievalHitsReturned: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundedcore_retrieval_hits_returned",
				Help:    "Number of evidence hits returned per retrieval call",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
			[]string{"strategy"},
		),

		CacheOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_cache_outcomes_total",
				Help: "Total number of cache reads by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),

		AlertEvaluationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_alert_evaluations_total",
				Help: "Total number of alert rule evaluations by outcome",
			},
			[]string{"outcome"},
		),

		AlertWebhookCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_alert_webhooks_total",
				Help: "Total number of alert webhook dispatch attempts by status",
			},
			[]string{"status"},
		),

		ExperimentAssignmentCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundedcore_experiment_assignments_total",
				Help: "Total number of experiment subject assignments by experiment and variant",
			},
			[]string{"experiment_id", "variant"},
		),
	}
}

// RecordDialogTurn records a completed dialog turn's outcome and latency.
//
// Example:
//
//	start := time.Now()
//	// ... run the turn ...
//	metrics.RecordDialogTurn("normal", "success", time.Since(start).Seconds())
func (m *Metrics) RecordDialogTurn(policyMode, status string, durationSeconds float64) {
	m.DialogTurnCounter.WithLabelValues(policyMode, status).Inc()
	m.DialogTurnDuration.WithLabelValues(policyMode).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-opus", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolCall records metrics for one resilient-tool-client call.
//
// Example:
//
//	start := time.Now()
//	// ... call the tool ...
//	metrics.RecordToolCall("retrieve_evidence", "success", "important", time.Since(start).Seconds())
func (m *Metrics) RecordToolCall(toolName, status, priority string, durationSeconds float64) {
	m.ToolCallCounter.WithLabelValues(toolName, status, priority).Inc()
	m.ToolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("dialog", "llm_timeout")
//	metrics.RecordError("gate", "forbidden_topic")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge.
func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// RecordHTTPRequest records metrics for an HTTP request.
//
// Example:
//
//	start := time.Now()
//	// ... handle HTTP request ...
//	metrics.RecordHTTPRequest("POST", "/v1/npc/chat", "200", time.Since(start).Seconds())
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordGateDecision records one Evidence Gate decision.
//
// Example:
//
//	metrics.RecordGateDecision("pre_llm", "blocked")
//	metrics.RecordGateDecision("post_llm", "filtered")
func (m *Metrics) RecordGateDecision(phase, outcome string) {
	m.GateDecisionCounter.WithLabelValues(phase, outcome).Inc()
}

// RecordRetrieval records one evidence retrieval call's latency and hit count.
//
// Example:
//
//	start := time.Now()
//	// ... run hybrid retrieval ...
//	metrics.RecordRetrieval("hybrid", time.Since(start).Seconds(), len(items))
func (m *Metrics) RecordRetrieval(strategy string, durationSeconds float64, hits int) {
	m.RetrievalDuration.WithLabelValues(strategy).Observe(durationSeconds)
	m.RetrievalHitsReturned.WithLabelValues(strategy).Observe(float64(hits))
}

// RecordCacheOutcome records a cache read's hit/miss outcome.
//
// Example:
//
//	metrics.RecordCacheOutcome("persona", "hit")
func (m *Metrics) RecordCacheOutcome(resource, outcome string) {
	m.CacheOutcome.WithLabelValues(resource, outcome).Inc()
}

// RecordAlertEvaluation records one alert rule's evaluation outcome.
//
// Example:
//
//	metrics.RecordAlertEvaluation("firing")
func (m *Metrics) RecordAlertEvaluation(outcome string) {
	m.AlertEvaluationCounter.WithLabelValues(outcome).Inc()
}

// RecordAlertWebhook records one webhook dispatch attempt's delivery status.
//
// Example:
//
//	metrics.RecordAlertWebhook("sent")
func (m *Metrics) RecordAlertWebhook(status string) {
	m.AlertWebhookCounter.WithLabelValues(status).Inc()
}

// RecordExperimentAssignment records one stable-bucketing assignment.
//
// Example:
//
//	metrics.RecordExperimentAssignment("exp-hybrid-weights", "treatment")
func (m *Metrics) RecordExperimentAssignment(experimentID, variant string) {
	m.ExperimentAssignmentCounter.WithLabelValues(experimentID, variant).Inc()
}

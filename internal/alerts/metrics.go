package alerts

import (
	"context"
	"sort"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Metric name constants are the vocabulary AlertRule.Metric draws from.
const (
	MetricSuccessRate       = "success_rate"
	MetricConservativeRate  = "conservative_rate"
	MetricRefuseRate        = "refuse_rate"
	MetricCitationRate      = "citation_rate"
	MetricRetrievalCoverage = "retrieval_coverage"
	MetricLatencyP50Ms      = "latency_p50_ms"
	MetricLatencyP95Ms      = "latency_p95_ms"
	MetricFallbackRate      = "fallback_rate"
	MetricEmbeddingCost     = "embedding_cost"
	MetricFeedbackBacklog   = "feedback_backlog"
)

// Snapshot is one rolling-window read of every metric a rule might
// reference, scoped to one (tenant, site).
type Snapshot struct {
	Window time.Duration
	Values map[string]float64
}

// Get returns the named metric's value, or false if this snapshot has no
// opinion on it (the rule referencing it is skipped, not treated as zero).
func (s Snapshot) Get(metric string) (float64, bool) {
	v, ok := s.Values[metric]
	return v, ok
}

// MetricsSource produces a Snapshot for one (tenant, site) over a rolling
// window. Implementations MUST NOT raise for an empty window; an empty
// trace ledger simply yields snapshots with no data for rate metrics.
type MetricsSource interface {
	Snapshot(ctx context.Context, scope domain.Scope, window time.Duration) (Snapshot, error)
}

// TraceLister is the narrow slice of trace.Store TraceMetrics depends on.
type TraceLister interface {
	List(ctx context.Context, filter domain.TraceFilter) ([]domain.TraceRecord, error)
}

// FeedbackBacklog is the narrow slice of a feedback store TraceMetrics
// reads the pending-item count from. Optional: a nil FeedbackBacklog
// simply yields no feedback_backlog metric.
type FeedbackBacklog interface {
	List(scope domain.Scope, status domain.FeedbackStatus, feedbackType domain.FeedbackType, severity domain.FeedbackSeverity, limit int) ([]domain.Feedback, error)
}

// TraceMetrics derives alert metrics from the trace ledger (and, if
// configured, a feedback backlog count). It is the default MetricsSource;
// embedding_cost and fallback_rate are approximations noted inline since
// neither the ledger nor the LLM audit trail currently carries a
// dedicated field for them.
type TraceMetrics struct {
	Traces   TraceLister
	Feedback FeedbackBacklog
	now      func() time.Time
}

// NewTraceMetrics builds a TraceMetrics over the given trace lister.
// feedback may be nil.
func NewTraceMetrics(traces TraceLister, feedback FeedbackBacklog) *TraceMetrics {
	return &TraceMetrics{Traces: traces, Feedback: feedback, now: time.Now}
}

func (m *TraceMetrics) Snapshot(ctx context.Context, scope domain.Scope, window time.Duration) (Snapshot, error) {
	now := time.Now()
	if m.now != nil {
		now = m.now()
	}
	records, err := m.Traces.List(ctx, domain.TraceFilter{Scope: scope, CreatedFrom: now.Add(-window)})
	if err != nil {
		return Snapshot{}, err
	}

	values := map[string]float64{}
	total := len(records)
	if total > 0 {
		var success, conservative, refuse, cited int
		var chatTotal, chatCited int
		latencies := make([]int64, 0, total)
		for _, r := range records {
			if r.Status == domain.TraceSuccess {
				success++
			}
			switch r.PolicyMode {
			case domain.PolicyConservative:
				conservative++
			case domain.PolicyRefuse:
				refuse++
			}
			if len(r.EvidenceIDs) > 0 {
				cited++
			}
			if r.RequestType == domain.RequestNPCChat {
				chatTotal++
				if len(r.EvidenceIDs) > 0 {
					chatCited++
				}
			}
			latencies = append(latencies, r.LatencyMs)
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		values[MetricSuccessRate] = float64(success) / float64(total)
		values[MetricConservativeRate] = float64(conservative) / float64(total)
		values[MetricRefuseRate] = float64(refuse) / float64(total)
		values[MetricCitationRate] = float64(cited) / float64(total)
		values[MetricLatencyP50Ms] = float64(percentile(latencies, 0.50))
		values[MetricLatencyP95Ms] = float64(percentile(latencies, 0.95))
		if chatTotal > 0 {
			values[MetricRetrievalCoverage] = float64(chatCited) / float64(chatTotal)
		}
		// fallback_rate: no per-trace fallback flag is currently recorded on
		// TraceRecord itself (only on the per-attempt LLMAuditRecord, which
		// the ledger keys by trace_id rather than exposing in bulk), so this
		// is approximated as the trace error rate until that's wired through.
		values[MetricFallbackRate] = 1 - values[MetricSuccessRate]
	}
	values[MetricEmbeddingCost] = 0

	if m.Feedback != nil {
		pending, err := m.Feedback.List(scope, domain.FeedbackPending, "", "", 0)
		if err == nil {
			values[MetricFeedbackBacklog] = float64(len(pending))
		}
	}

	return Snapshot{Window: window, Values: values}, nil
}

// percentile returns the value at the given percentile of a pre-sorted
// ascending slice, using nearest-rank. Returns 0 for an empty slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

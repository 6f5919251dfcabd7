// Package alerts is the Alert Evaluator & Manager (C11): a periodic worker
// that reads a versioned alert-rule document, compares each rule's metric
// against the trace ledger's derived snapshot, and reconciles the result
// into deduplicated firing/resolved AlertEvent rows, dispatching a webhook
// only for newly-firing critical/high alerts (spec.md §4.11).
//
// Grounded on internal/experiments/manager.go's config-then-evaluate shape
// (load a small policy document, walk it once per cycle, no framework),
// internal/controlplane/policy.go for the "load the active version of a
// named document" idiom the rule set reuses verbatim, and
// github.com/robfig/cron/v3 for the periodic scheduler (the same pairing
// mercator-hq-jupiter's pkg/evidence/retention/scheduler.go uses for its
// own background worker).
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// PolicyNameAlertRules is the document name the rule set is published under
// in the shared PolicyStore (spec.md §4.7's "versioned policy document").
const PolicyNameAlertRules = "alert-rules"

// PolicyLookup is the narrow slice of controlplane.PolicyStore the
// evaluator needs: just the currently-active version of a named document.
// Alert rules are process-wide, not per-tenant, so unlike everything else
// in this module the lookup takes no Scope.
type PolicyLookup interface {
	GetActivePolicy(ctx context.Context, name string) (domain.PolicyVersion, error)
}

// ruleDocument is the on-disk shape of the alert-rules policy content.
type ruleDocument struct {
	Rules []domain.AlertRule `json:"rules"`
}

// LoadRules fetches and decodes the active alert-rule set. A lookup miss or
// malformed document is returned as an error rather than an empty rule set,
// so a misconfigured deployment evaluates nothing silently for real reasons
// a caller can log, not because every rule vacuously failed its condition.
func LoadRules(ctx context.Context, policies PolicyLookup) ([]domain.AlertRule, error) {
	pv, err := policies.GetActivePolicy(ctx, PolicyNameAlertRules)
	if err != nil {
		return nil, fmt.Errorf("alerts: load rules: %w", err)
	}
	raw, err := json.Marshal(pv.Content)
	if err != nil {
		return nil, fmt.Errorf("alerts: encode rule document: %w", err)
	}
	var doc ruleDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("alerts: decode rule document: %w", err)
	}
	return doc.Rules, nil
}

// DefaultRules is the baked-in rule set a fresh deployment seeds its
// alert-rules policy document with, covering one rule per metric category
// spec.md §4.11 names as an evaluator input.
func DefaultRules() []domain.AlertRule {
	return []domain.AlertRule{
		{
			Code: "success_rate_low", Name: "Dialog success rate low", Category: "dialog",
			Severity: domain.SeverityCritical, Metric: MetricSuccessRate, Condition: domain.CondLT,
			Threshold: 0.95, Window: 15 * time.Minute,
			RecommendedActions: []string{"check llm provider health", "inspect recent trace errors"},
		},
		{
			Code: "fallback_rate_high", Name: "LLM fallback rate high", Category: "llm",
			Severity: domain.SeverityHigh, Metric: MetricFallbackRate, Condition: domain.CondGT,
			Threshold: 0.2, Window: 15 * time.Minute,
			RecommendedActions: []string{"check primary provider status", "review dispatcher audit log"},
		},
		{
			Code: "latency_p95_high", Name: "Turn p95 latency high", Category: "latency",
			Severity: domain.SeverityHigh, Metric: MetricLatencyP95Ms, Condition: domain.CondGT,
			Threshold: 8000, Unit: "ms", Window: 15 * time.Minute,
			RecommendedActions: []string{"check retrieval and llm latency breakdown"},
		},
		{
			Code: "conservative_rate_high", Name: "Conservative mode rate high", Category: "quality",
			Severity: domain.SeverityMedium, Metric: MetricConservativeRate, Condition: domain.CondGT,
			Threshold: 0.4, Window: 30 * time.Minute,
			RecommendedActions: []string{"review evidence gate thresholds", "check corpus coverage for active npcs"},
		},
		{
			Code: "retrieval_coverage_low", Name: "Retrieval coverage low", Category: "retrieval",
			Severity: domain.SeverityMedium, Metric: MetricRetrievalCoverage, Condition: domain.CondLT,
			Threshold: 0.5, Window: 30 * time.Minute,
			RecommendedActions: []string{"check vector index health", "review trigram corpus freshness"},
		},
		{
			Code: "feedback_backlog_high", Name: "Feedback backlog high", Category: "operations",
			Severity: domain.SeverityLow, Metric: MetricFeedbackBacklog, Condition: domain.CondGT,
			Threshold: 50, Window: time.Hour,
			RecommendedActions: []string{"triage pending feedback queue"},
		},
	}
}

// DefaultRuleSetContent renders DefaultRules into the map[string]any shape
// PolicyStore content expects, for use as a SeedLoader.
func DefaultRuleSetContent() (map[string]any, error) {
	raw, err := json.Marshal(ruleDocument{Rules: DefaultRules()})
	if err != nil {
		return nil, err
	}
	var content map[string]any
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, err
	}
	return content, nil
}

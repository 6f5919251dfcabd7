package alerts

import (
	"context"
	"time"

	"github.com/haasonsaas/groundedcore/internal/observability"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ReleaseLookup is the narrow slice of controlplane.ReleaseStore the
// evaluator uses to stamp firing episodes with the release/experiment
// context active when they fired (spec.md §4.11 step 4).
type ReleaseLookup interface {
	GetActiveRelease(ctx context.Context, scope domain.Scope) (domain.Release, error)
}

// Evaluator runs one evaluation cycle for a single (tenant, site): load
// rules, read metrics, split active vs silenced, reconcile against the
// stored episode per rule, and dispatch webhooks for new high-priority
// firings.
type Evaluator struct {
	Policies PolicyLookup
	Metrics  MetricsSource
	Events   EventStore
	Silences SilenceStore
	Releases ReleaseLookup // optional
	Webhook  WebhookSender // optional
	Logger   *observability.Logger
}

// NewEvaluator builds an Evaluator from its required collaborators.
// Releases, Webhook, and Logger may be left nil on the returned value.
func NewEvaluator(policies PolicyLookup, metrics MetricsSource, events EventStore, silences SilenceStore) *Evaluator {
	return &Evaluator{Policies: policies, Metrics: metrics, Events: events, Silences: silences}
}

// EvaluationResult is one cycle's outcome for a single scope.
type EvaluationResult struct {
	Active   []domain.AlertEvent
	Silenced []domain.AlertEvent
}

// Evaluate runs spec.md §4.11's evaluation algorithm once for scope.
func (e *Evaluator) Evaluate(ctx context.Context, scope domain.Scope) (EvaluationResult, error) {
	rules, err := LoadRules(ctx, e.Policies)
	if err != nil {
		return EvaluationResult{}, err
	}

	var releaseID, experimentID string
	if e.Releases != nil {
		if rel, err := e.Releases.GetActiveRelease(ctx, scope); err == nil {
			releaseID = rel.ID
			experimentID = rel.Payload.ExperimentID
		}
	}

	now := time.Now()
	var active []domain.AlertSilence
	if e.Silences != nil {
		if s, err := e.Silences.ListActive(ctx, scope, now); err == nil {
			active = s
		} else if e.Logger != nil {
			e.Logger.Warn(ctx, "alerts: silence lookup failed", "error", err)
		}
	}

	result := EvaluationResult{}
	for _, rule := range rules {
		snap, err := e.Metrics.Snapshot(ctx, scope, rule.Window)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn(ctx, "alerts: metric snapshot failed", "rule", rule.Code, "error", err)
			}
			continue
		}
		value, ok := snap.Get(rule.Metric)
		if !ok {
			continue
		}
		firing := evaluateCondition(rule.Condition, value, rule.Threshold)

		windowKey := rule.Window.String()
		dedupKey := (domain.AlertEvent{Scope: scope, AlertCode: rule.Code, Window: windowKey}).DedupKey()
		existing, found, err := e.Events.Get(ctx, scope, dedupKey)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warn(ctx, "alerts: event lookup failed", "rule", rule.Code, "error", err)
			}
			continue
		}

		silenced := silencedBy(active, rule.Code, rule.Severity, now)

		event, notify := reconcile(existing, found, firing, rule, scope, windowKey, value, now, releaseID, experimentID)
		if event == nil {
			continue
		}

		if notify {
			event.WebhookSent = e.dispatch(ctx, *event, rule, silenced)
		}

		if err := e.Events.Upsert(ctx, *event); err != nil {
			if e.Logger != nil {
				e.Logger.Warn(ctx, "alerts: event upsert failed", "rule", rule.Code, "error", err)
			}
			continue
		}

		if event.Status == domain.AlertFiring {
			if silenced {
				result.Silenced = append(result.Silenced, *event)
			} else {
				result.Active = append(result.Active, *event)
			}
		}
	}
	return result, nil
}

// reconcile applies spec.md §4.11 step 5's new/still-firing/resolved state
// machine. It returns the event to persist (nil if nothing changed) and
// whether this transition is a notify-worthy new firing.
func reconcile(existing domain.AlertEvent, found, firing bool, rule domain.AlertRule, scope domain.Scope, windowKey string, value float64, now time.Time, releaseID, experimentID string) (*domain.AlertEvent, bool) {
	switch {
	case firing && (!found || existing.Status == domain.AlertResolved):
		// A fresh firing episode: either never seen, or re-firing after a
		// prior resolution. Both start a brand-new episode and notify.
		return &domain.AlertEvent{
			Scope: scope, AlertCode: rule.Code, Window: windowKey, Status: domain.AlertFiring,
			CurrentValue: value, FirstSeenAt: now, LastSeenAt: now,
			ReleaseID: releaseID, ExperimentID: experimentID,
		}, true

	case firing && existing.Status == domain.AlertFiring:
		existing.LastSeenAt = now
		existing.CurrentValue = value
		return &existing, false

	case !firing && found && existing.Status == domain.AlertFiring:
		resolvedAt := now
		existing.Status = domain.AlertResolved
		existing.ResolvedAt = &resolvedAt
		existing.LastSeenAt = now
		existing.CurrentValue = value
		return &existing, false

	default:
		// Not firing and either never seen or already resolved: no change.
		return nil, false
	}
}

// dispatch sends the webhook for a new firing if it is high priority and
// not silenced, returning the delivery status to stamp on the event.
func (e *Evaluator) dispatch(ctx context.Context, event domain.AlertEvent, rule domain.AlertRule, silenced bool) domain.WebhookDeliveryStatus {
	if silenced || !isHighPriority(rule.Severity) || e.Webhook == nil {
		return domain.WebhookSkipped
	}
	if err := e.Webhook.Send(ctx, event, rule); err != nil {
		if e.Logger != nil {
			e.Logger.Warn(ctx, "alerts: webhook dispatch failed", "rule", rule.Code, "error", err)
		}
		return domain.WebhookFailed
	}
	return domain.WebhookSent
}

func isHighPriority(s domain.AlertSeverity) bool {
	return s == domain.SeverityCritical || s == domain.SeverityHigh
}

func silencedBy(silences []domain.AlertSilence, code string, severity domain.AlertSeverity, at time.Time) bool {
	for _, s := range silences {
		if s.Matches(code, severity, at) {
			return true
		}
	}
	return false
}

func evaluateCondition(cond domain.AlertCondition, value, threshold float64) bool {
	switch cond {
	case domain.CondGT:
		return value > threshold
	case domain.CondLT:
		return value < threshold
	case domain.CondGE:
		return value >= threshold
	case domain.CondLE:
		return value <= threshold
	case domain.CondEQ:
		return value == threshold
	default:
		return false
	}
}

package alerts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope { return domain.Scope{TenantID: "t1", SiteID: "s1"} }

func rulesPolicy(t *testing.T, rules []domain.AlertRule) domain.PolicyVersion {
	t.Helper()
	raw, err := json.Marshal(ruleDocument{Rules: rules})
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	var content map[string]any
	if err := json.Unmarshal(raw, &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	return domain.PolicyVersion{Name: PolicyNameAlertRules, Version: 1, Active: true, Content: content}
}

type fakePolicyLookup struct{ pv domain.PolicyVersion }

func (f fakePolicyLookup) GetActivePolicy(_ context.Context, _ string) (domain.PolicyVersion, error) {
	return f.pv, nil
}

type fakeMetrics struct{ values map[string]float64 }

func (f fakeMetrics) Snapshot(_ context.Context, _ domain.Scope, _ time.Duration) (Snapshot, error) {
	return Snapshot{Values: f.values}, nil
}

type fakeWebhook struct{ calls int }

func (f *fakeWebhook) Send(_ context.Context, _ domain.AlertEvent, _ domain.AlertRule) error {
	f.calls++
	return nil
}

func testRule() domain.AlertRule {
	return domain.AlertRule{
		Code: "success_rate_low", Name: "test", Severity: domain.SeverityCritical,
		Metric: MetricSuccessRate, Condition: domain.CondLT, Threshold: 0.9, Window: 15 * time.Minute,
	}
}

func TestEvaluateNewFiringNotifiesOnceThenSuppressesRenotify(t *testing.T) {
	rule := testRule()
	webhook := &fakeWebhook{}
	ev := NewEvaluator(fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})},
		fakeMetrics{values: map[string]float64{MetricSuccessRate: 0.5}},
		NewMemoryEventStore(), NewMemorySilenceStore())
	ev.Webhook = webhook

	result, err := ev.Evaluate(context.Background(), testScope())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Active) != 1 || result.Active[0].Status != domain.AlertFiring {
		t.Fatalf("expected 1 firing alert, got %+v", result.Active)
	}
	if webhook.calls != 1 {
		t.Fatalf("expected exactly 1 webhook call on first firing, got %d", webhook.calls)
	}

	// Still firing on the next cycle: must not re-notify.
	result, err = ev.Evaluate(context.Background(), testScope())
	if err != nil {
		t.Fatalf("Evaluate (2nd): %v", err)
	}
	if len(result.Active) != 1 {
		t.Fatalf("expected still-firing alert to remain active, got %+v", result.Active)
	}
	if webhook.calls != 1 {
		t.Fatalf("expected no re-notify while still firing, got %d calls", webhook.calls)
	}
}

func TestEvaluateResolvedThenRefiringNotifiesAgain(t *testing.T) {
	rule := testRule()
	webhook := &fakeWebhook{}
	events := NewMemoryEventStore()
	metrics := &fakeMetrics{values: map[string]float64{MetricSuccessRate: 0.5}}
	ev := NewEvaluator(fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})}, metrics, events, NewMemorySilenceStore())
	ev.Webhook = webhook

	ctx := context.Background()
	if _, err := ev.Evaluate(ctx, testScope()); err != nil {
		t.Fatalf("Evaluate (fire): %v", err)
	}
	if webhook.calls != 1 {
		t.Fatalf("expected 1 call after first firing, got %d", webhook.calls)
	}

	// Metric recovers: the alert resolves.
	metrics.values[MetricSuccessRate] = 0.99
	result, err := ev.Evaluate(ctx, testScope())
	if err != nil {
		t.Fatalf("Evaluate (resolve): %v", err)
	}
	if len(result.Active) != 0 {
		t.Fatalf("expected no active alerts once resolved, got %+v", result.Active)
	}
	all, err := events.ListAll(ctx, testScope())
	if err != nil || len(all) != 1 || all[0].Status != domain.AlertResolved {
		t.Fatalf("expected exactly 1 resolved event row, got %+v (err=%v)", all, err)
	}

	// Metric degrades again: a brand-new episode notifies a second time.
	metrics.values[MetricSuccessRate] = 0.5
	result, err = ev.Evaluate(ctx, testScope())
	if err != nil {
		t.Fatalf("Evaluate (refire): %v", err)
	}
	if len(result.Active) != 1 {
		t.Fatalf("expected 1 active alert on re-firing, got %+v", result.Active)
	}
	if webhook.calls != 2 {
		t.Fatalf("expected exactly 2 webhook calls across firing->resolved->firing, got %d", webhook.calls)
	}
}

func TestEvaluateSilencedAlertSkipsWebhookButStillTracked(t *testing.T) {
	rule := testRule()
	webhook := &fakeWebhook{}
	silences := NewMemorySilenceStore()
	now := time.Now()
	if _, err := silences.Create(context.Background(), domain.AlertSilence{
		Scope: testScope(), StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Code: rule.Code,
	}); err != nil {
		t.Fatalf("Create silence: %v", err)
	}

	ev := NewEvaluator(fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})},
		fakeMetrics{values: map[string]float64{MetricSuccessRate: 0.5}},
		NewMemoryEventStore(), silences)
	ev.Webhook = webhook

	result, err := ev.Evaluate(context.Background(), testScope())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Silenced) != 1 || len(result.Active) != 0 {
		t.Fatalf("expected the firing alert to land in Silenced, got active=%+v silenced=%+v", result.Active, result.Silenced)
	}
	if webhook.calls != 0 {
		t.Fatalf("expected no webhook dispatch for a silenced alert, got %d calls", webhook.calls)
	}
	if result.Silenced[0].WebhookSent != domain.WebhookSkipped {
		t.Fatalf("expected webhook_sent=skipped on a silenced firing, got %q", result.Silenced[0].WebhookSent)
	}
}

func TestEvaluateNonFiringRuleProducesNoEvent(t *testing.T) {
	rule := testRule()
	ev := NewEvaluator(fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})},
		fakeMetrics{values: map[string]float64{MetricSuccessRate: 0.99}},
		NewMemoryEventStore(), NewMemorySilenceStore())

	result, err := ev.Evaluate(context.Background(), testScope())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Active) != 0 || len(result.Silenced) != 0 {
		t.Fatalf("expected no alerts when the metric is healthy, got %+v", result)
	}
}

func TestEvaluateLowPrioritySeverityNeverDispatches(t *testing.T) {
	rule := testRule()
	rule.Severity = domain.SeverityLow
	webhook := &fakeWebhook{}
	ev := NewEvaluator(fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})},
		fakeMetrics{values: map[string]float64{MetricSuccessRate: 0.1}},
		NewMemoryEventStore(), NewMemorySilenceStore())
	ev.Webhook = webhook

	result, err := ev.Evaluate(context.Background(), testScope())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Active) != 1 {
		t.Fatalf("expected the low-severity alert to still be tracked as active, got %+v", result.Active)
	}
	if webhook.calls != 0 {
		t.Fatalf("expected no webhook dispatch for low severity, got %d calls", webhook.calls)
	}
}

func TestLoadRulesDecodesPolicyContent(t *testing.T) {
	rule := testRule()
	rules, err := LoadRules(context.Background(), fakePolicyLookup{rulesPolicy(t, []domain.AlertRule{rule})})
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 1 || rules[0].Code != rule.Code {
		t.Fatalf("expected 1 decoded rule matching %q, got %+v", rule.Code, rules)
	}
}

func TestDedupKeyIsStableAcrossScopeRuleAndWindow(t *testing.T) {
	a := domain.AlertEvent{Scope: testScope(), AlertCode: "x", Window: "15m0s"}
	b := domain.AlertEvent{Scope: testScope(), AlertCode: "x", Window: "15m0s"}
	c := domain.AlertEvent{Scope: testScope(), AlertCode: "y", Window: "15m0s"}
	if a.DedupKey() != b.DedupKey() {
		t.Fatal("expected identical dedup keys for identical scope/code/window")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Fatal("expected different dedup keys for different alert codes")
	}
}

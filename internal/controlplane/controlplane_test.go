package controlplane

import (
	"context"
	"testing"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope { return domain.Scope{TenantID: "t1", SiteID: "s1"} }

func TestPolicyAtMostOneActiveVersion(t *testing.T) {
	store := NewMemoryPolicyStore(nil)
	ctx := context.Background()

	v1, err := store.PutPolicy(ctx, "evidence_gate", map[string]any{"mode": "strict"})
	if err != nil {
		t.Fatalf("PutPolicy v1: %v", err)
	}
	if err := store.ActivatePolicyVersion(ctx, "evidence_gate", v1.Version); err != nil {
		t.Fatalf("ActivatePolicyVersion v1: %v", err)
	}

	v2, err := store.PutPolicy(ctx, "evidence_gate", map[string]any{"mode": "lenient"})
	if err != nil {
		t.Fatalf("PutPolicy v2: %v", err)
	}
	if err := store.ActivatePolicyVersion(ctx, "evidence_gate", v2.Version); err != nil {
		t.Fatalf("ActivatePolicyVersion v2: %v", err)
	}

	active, err := store.GetActivePolicy(ctx, "evidence_gate")
	if err != nil {
		t.Fatalf("GetActivePolicy: %v", err)
	}
	if active.Version != v2.Version {
		t.Fatalf("expected v2 active, got v%d", active.Version)
	}

	v1Reread, err := store.GetPolicyVersion(ctx, "evidence_gate", v1.Version)
	if err != nil {
		t.Fatalf("GetPolicyVersion v1: %v", err)
	}
	if v1Reread.Active {
		t.Fatal("expected v1 to be deactivated once v2 activated")
	}
}

func TestPolicySeedsOnFirstReadWhenNoVersionsExist(t *testing.T) {
	store := NewMemoryPolicyStore(func(name string) (map[string]any, error) {
		return map[string]any{"seeded_for": name}, nil
	})
	policy, err := store.GetActivePolicy(context.Background(), "alert_rules")
	if err != nil {
		t.Fatalf("GetActivePolicy: %v", err)
	}
	if policy.Version != 1 || !policy.Active {
		t.Fatalf("expected seeded version 1 active, got %+v", policy)
	}
	if policy.Content["seeded_for"] != "alert_rules" {
		t.Fatalf("unexpected seeded content: %+v", policy.Content)
	}
}

func TestPolicyWithNoSeedAndNoVersionsIsNotFound(t *testing.T) {
	store := NewMemoryPolicyStore(nil)
	if _, err := store.GetActivePolicy(context.Background(), "unknown"); err == nil {
		t.Fatal("expected ErrNotFound for an unseeded, unpopulated policy")
	}
}

func TestReleaseActivateArchivesPrevious(t *testing.T) {
	store := NewMemoryReleaseStore()
	ctx := context.Background()
	scope := testScope()

	first, err := store.CreateRelease(ctx, domain.Release{Scope: scope, Name: "r1"})
	if err != nil {
		t.Fatalf("CreateRelease first: %v", err)
	}
	second, err := store.CreateRelease(ctx, domain.Release{Scope: scope, Name: "r2"})
	if err != nil {
		t.Fatalf("CreateRelease second: %v", err)
	}

	if _, err := store.ActivateRelease(ctx, scope, first.ID); err != nil {
		t.Fatalf("ActivateRelease first: %v", err)
	}
	if _, err := store.ActivateRelease(ctx, scope, second.ID); err != nil {
		t.Fatalf("ActivateRelease second: %v", err)
	}

	active, err := store.GetActiveRelease(ctx, scope)
	if err != nil {
		t.Fatalf("GetActiveRelease: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected second release active, got %q", active.ID)
	}

	archived, err := store.GetRelease(ctx, scope, first.ID)
	if err != nil {
		t.Fatalf("GetRelease first: %v", err)
	}
	if archived.Status != domain.ReleaseArchived {
		t.Fatalf("expected first release archived, got %q", archived.Status)
	}
}

func TestReleaseRollbackReactivatesPrevious(t *testing.T) {
	store := NewMemoryReleaseStore()
	ctx := context.Background()
	scope := testScope()

	first, _ := store.CreateRelease(ctx, domain.Release{Scope: scope, Name: "r1"})
	second, _ := store.CreateRelease(ctx, domain.Release{Scope: scope, Name: "r2"})
	if _, err := store.ActivateRelease(ctx, scope, first.ID); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if _, err := store.ActivateRelease(ctx, scope, second.ID); err != nil {
		t.Fatalf("activate second: %v", err)
	}

	rolledBack, err := store.Rollback(ctx, scope)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rolledBack.ID != first.ID {
		t.Fatalf("expected rollback to reactivate first release, got %q", rolledBack.ID)
	}

	history, err := store.ListReleaseHistory(ctx, scope)
	if err != nil {
		t.Fatalf("ListReleaseHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history rows (activate, activate, rollback), got %d", len(history))
	}
	if history[len(history)-1].Action != domain.ActionRollback {
		t.Fatalf("expected last history row to be a rollback, got %q", history[len(history)-1].Action)
	}
}

func TestExperimentBucketIsStableAndDeterministic(t *testing.T) {
	b1 := Bucket("exp-1", "session-abc")
	b2 := Bucket("exp-1", "session-abc")
	if b1 != b2 {
		t.Fatalf("expected deterministic bucket, got %d then %d", b1, b2)
	}
	if b1 < 0 || b1 >= 100 {
		t.Fatalf("expected bucket in [0,100), got %d", b1)
	}
}

func TestExperimentAssignmentIsStickyAcrossWeightChanges(t *testing.T) {
	store := NewMemoryExperimentStore()
	ctx := context.Background()
	scope := testScope()

	experiment := domain.Experiment{
		Scope:       scope,
		ID:          "exp-1",
		Status:      domain.ExperimentActive,
		SubjectType: "session_id",
		Variants: []domain.ExperimentVariant{
			{Name: "control", Weight: 50},
			{Name: "treatment", Weight: 50},
		},
	}
	if _, err := store.CreateExperiment(ctx, experiment); err != nil {
		t.Fatalf("CreateExperiment: %v", err)
	}

	first, err := store.AssignSubject(ctx, scope, "exp-1", "session-xyz")
	if err != nil {
		t.Fatalf("AssignSubject first: %v", err)
	}

	experiment.Variants = []domain.ExperimentVariant{
		{Name: "control", Weight: 90},
		{Name: "treatment", Weight: 10},
	}
	if _, err := store.CreateExperiment(ctx, experiment); err != nil {
		t.Fatalf("CreateExperiment (reweight): %v", err)
	}

	second, err := store.AssignSubject(ctx, scope, "exp-1", "session-xyz")
	if err != nil {
		t.Fatalf("AssignSubject second: %v", err)
	}
	if second.VariantName != first.VariantName {
		t.Fatalf("expected sticky assignment across reweight, got %q then %q", first.VariantName, second.VariantName)
	}
}

func TestSelectVariantWalksCumulativeWeight(t *testing.T) {
	variants := []domain.ExperimentVariant{
		{Name: "control", Weight: 30},
		{Name: "treatment", Weight: 70},
	}
	if got := SelectVariant(variants, 0); got != "control" {
		t.Fatalf("expected control at bucket 0, got %q", got)
	}
	if got := SelectVariant(variants, 29); got != "control" {
		t.Fatalf("expected control at bucket 29, got %q", got)
	}
	if got := SelectVariant(variants, 30); got != "treatment" {
		t.Fatalf("expected treatment at bucket 30, got %q", got)
	}
	if got := SelectVariant(variants, 99); got != "treatment" {
		t.Fatalf("expected treatment at bucket 99, got %q", got)
	}
}

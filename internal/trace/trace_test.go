package trace

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/groundedcore/internal/evidence"
	"github.com/haasonsaas/groundedcore/internal/sessionmemory"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope { return domain.Scope{TenantID: "t1", SiteID: "s1"} }

func TestUpsertOverwritesSameTraceID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	scope := testScope()

	if err := store.Upsert(ctx, domain.TraceRecord{Scope: scope, TraceID: "trace-1", Status: domain.TraceSuccess}); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}
	if err := store.Upsert(ctx, domain.TraceRecord{Scope: scope, TraceID: "trace-1", Status: domain.TraceError, Error: "boom"}); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	record, err := store.Get(ctx, scope, "trace-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != domain.TraceError || record.Error != "boom" {
		t.Fatalf("expected second write to win, got %+v", record)
	}

	all, err := store.List(ctx, domain.TraceFilter{Scope: scope})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly 1 ledger row after upsert, got %d", len(all))
	}
}

func TestListFiltersByStatusAndNPC(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	scope := testScope()

	store.Upsert(ctx, domain.TraceRecord{Scope: scope, TraceID: "t-1", NPCID: "guide-1", Status: domain.TraceSuccess, StartedAt: time.Now()})
	store.Upsert(ctx, domain.TraceRecord{Scope: scope, TraceID: "t-2", NPCID: "guide-2", Status: domain.TraceError, StartedAt: time.Now()})

	errored, err := store.List(ctx, domain.TraceFilter{Scope: scope, Status: domain.TraceError})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(errored) != 1 || errored[0].TraceID != "t-2" {
		t.Fatalf("expected only t-2, got %+v", errored)
	}

	guide1, err := store.List(ctx, domain.TraceFilter{Scope: scope, NPCID: "guide-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(guide1) != 1 || guide1[0].TraceID != "t-1" {
		t.Fatalf("expected only t-1, got %+v", guide1)
	}
}

func TestReplayerUnifiesCitationsAndSessionSummary(t *testing.T) {
	store := NewMemoryStore()
	evStore := evidence.NewMemoryStore()
	sessions := sessionmemory.NewMemoryStore(20, 4000, time.Hour)
	ctx := context.Background()
	scope := testScope()

	e, err := evStore.CreateEvidence(ctx, domain.Evidence{Scope: scope, Title: "Hall Records", SourceRef: "doc-1"})
	if err != nil {
		t.Fatalf("CreateEvidence: %v", err)
	}
	if err := sessions.AppendMessage(ctx, scope, "sess-1", "guide-1", domain.MemoryMessage{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now()}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := store.Upsert(ctx, domain.TraceRecord{
		Scope:       scope,
		TraceID:     "trace-1",
		SessionID:   "sess-1",
		NPCID:       "guide-1",
		Status:      domain.TraceSuccess,
		EvidenceIDs: []string{e.ID},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.AppendLLMAudit(ctx, "trace-1", domain.LLMAuditRecord{Provider: "sandbox", Status: "success"}); err != nil {
		t.Fatalf("AppendLLMAudit: %v", err)
	}

	replayer := NewReplayer(store, evStore, sessions)
	unified, err := replayer.Unify(ctx, scope, "trace-1")
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if len(unified.Citations) != 1 || unified.Citations[0].Title != "Hall Records" {
		t.Fatalf("expected 1 resolved citation, got %+v", unified.Citations)
	}
	if unified.SessionSummary == nil || unified.SessionSummary.MessageCount != 1 {
		t.Fatalf("expected session summary with 1 message, got %+v", unified.SessionSummary)
	}
	if len(unified.LLMAudit) != 1 {
		t.Fatalf("expected 1 llm audit row, got %d", len(unified.LLMAudit))
	}
}

func TestReplayerUnknownTraceReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	replayer := NewReplayer(store, nil, nil)
	if _, err := replayer.Unify(context.Background(), testScope(), "missing"); err == nil {
		t.Fatal("expected ErrNotFound for an unknown trace")
	}
}

package sessionmemory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope {
	return domain.Scope{TenantID: "t1", SiteID: "s1"}
}

func TestAppendMessageIsNPCIsolated(t *testing.T) {
	store := NewMemoryStore(0, 0, 0)
	ctx := context.Background()
	scope := testScope()

	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "hi a", Timestamp: time.Now()})
	store.AppendMessage(ctx, scope, "sess1", "npc-b", domain.MemoryMessage{Role: domain.RoleUser, Content: "hi b", Timestamp: time.Now()})

	a, err := store.GetRecentMessages(ctx, scope, "sess1", "npc-a", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 1 || a[0].Content != "hi a" {
		t.Fatalf("expected isolated message for npc-a, got %+v", a)
	}

	b, err := store.GetRecentMessages(ctx, scope, "sess1", "npc-b", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 1 || b[0].Content != "hi b" {
		t.Fatalf("expected isolated message for npc-b, got %+v", b)
	}
}

func TestTrimAtMaxMessages(t *testing.T) {
	store := NewMemoryStore(3, 10000, 0)
	ctx := context.Background()
	scope := testScope()

	for i := 0; i < 4; i++ {
		store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{
			Role: domain.RoleUser, Content: string(rune('a' + i)), Timestamp: time.Now(),
		})
	}

	msgs, err := store.GetRecentMessages(ctx, scope, "sess1", "npc-a", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected eviction to cap at 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "b" {
		t.Fatalf("expected oldest message evicted, first remaining is %q", msgs[0].Content)
	}
}

func TestTrimAtMaxChars(t *testing.T) {
	store := NewMemoryStore(100, 10, 0)
	ctx := context.Background()
	scope := testScope()

	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "12345", Timestamp: time.Now()})
	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "67890", Timestamp: time.Now()})
	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "abcde", Timestamp: time.Now()})

	msgs, err := store.GetRecentMessages(ctx, scope, "sess1", "npc-a", 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	if total > 10 {
		t.Fatalf("expected total chars <= 10 after trimming, got %d across %+v", total, msgs)
	}
}

func TestPreferenceNeverReadAsFactSource(t *testing.T) {
	store := NewMemoryStore(0, 0, 0)
	ctx := context.Background()
	scope := testScope()

	store.UpdatePreference(ctx, scope, "sess1", domain.Preference{Verbosity: "terse", Tone: "formal"})
	store.AddInterestTag(ctx, scope, "sess1", "astronomy")

	pref, err := store.GetPreference(ctx, scope, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pref.Verbosity != "terse" || pref.Tone != "formal" {
		t.Fatalf("unexpected preference: %+v", pref)
	}
	if len(pref.InterestTags) != 1 || pref.InterestTags[0] != "astronomy" {
		t.Fatalf("expected interest tag to be recorded: %+v", pref)
	}
}

func TestClearSessionAllNPCs(t *testing.T) {
	store := NewMemoryStore(0, 0, 0)
	ctx := context.Background()
	scope := testScope()

	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "x", Timestamp: time.Now()})
	store.AppendMessage(ctx, scope, "sess1", "npc-b", domain.MemoryMessage{Role: domain.RoleUser, Content: "y", Timestamp: time.Now()})

	if err := store.ClearSession(ctx, scope, "sess1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := store.GetRecentMessages(ctx, scope, "sess1", "npc-a", 10, 0)
	b, _ := store.GetRecentMessages(ctx, scope, "sess1", "npc-b", 10, 0)
	if len(a) != 0 || len(b) != 0 {
		t.Fatalf("expected both npcs cleared, got a=%+v b=%+v", a, b)
	}
}

func TestAppendAtomicityUnderConcurrency(t *testing.T) {
	store := NewMemoryStore(1000, 1_000_000, 0)
	ctx := context.Background()
	scope := testScope()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{
				Role: domain.RoleUser, Content: "m", Timestamp: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	msgs, err := store.GetRecentMessages(ctx, scope, "sess1", "npc-a", 1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 50 {
		t.Fatalf("expected all 50 concurrent appends to land, got %d", len(msgs))
	}
}

func TestPromptSuffixIncludesDisclaimer(t *testing.T) {
	msgs := []domain.MemoryMessage{
		{Role: domain.RoleUser, Content: "what is the capital", Timestamp: time.Now()},
	}
	out := PromptSuffix(msgs, domain.Preference{})
	if !strings.HasPrefix(out, MemoryDisclaimer) {
		t.Fatalf("expected suffix to start with disclaimer, got %q", out)
	}
}

func TestPromptSuffixEmptyWhenNoContext(t *testing.T) {
	if out := PromptSuffix(nil, domain.Preference{}); out != "" {
		t.Fatalf("expected empty suffix with no messages or preference, got %q", out)
	}
}

func TestGetSessionSummaryShape(t *testing.T) {
	store := NewMemoryStore(0, 0, 0)
	ctx := context.Background()
	scope := testScope()

	store.AppendMessage(ctx, scope, "sess1", "npc-a", domain.MemoryMessage{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now()})

	summary, err := store.GetSessionSummary(ctx, scope, "sess1", "npc-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SessionID != "sess1" || summary.MessageCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.FirstMessageAt == nil || summary.LastMessageAt == nil {
		t.Fatalf("expected first/last message timestamps to be set")
	}
}

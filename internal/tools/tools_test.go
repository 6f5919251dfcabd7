package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/groundedcore/internal/evidence"
	"github.com/haasonsaas/groundedcore/internal/personastore"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope { return domain.Scope{TenantID: "t1", SiteID: "s1"} }

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	personas := personastore.NewMemoryStore()
	if _, err := personas.PutProfile(domain.NPCProfile{
		Scope:       testScope(),
		NPCID:       "guide-1",
		Active:      true,
		DisplayName: "Old Guide",
		Persona:     domain.Persona{Identity: "a wandering guide", SpeakingStyle: "terse"},
	}); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	evStore := evidence.NewMemoryStore()
	retriever := evidence.NewRetriever(evStore, nil, nil)

	return Deps{
		Personas:  personas,
		Evidence:  evStore,
		Retriever: retriever,
		SiteMaps:  NewMemorySiteMapStore(),
		Events:    NewMemoryEventLog(),
		Feedback:  NewMemoryFeedbackStore(),
	}
}

func newTestExecutor(t *testing.T) (*Executor, Deps) {
	deps := newTestDeps(t)
	reg := NewRegistry()
	RegisterBuiltins(reg, deps)
	return NewExecutor(reg, nil), deps
}

func execTool(t *testing.T, e *Executor, name string, input map[string]any) domain.ToolCallResult {
	t.Helper()
	raw, err := json.Marshal(input)
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	tc := domain.ToolContext{Scope: testScope(), TraceID: "trace-1"}
	return e.Execute(context.Background(), tc, name, raw)
}

func TestGetNPCProfileActiveVersion(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "get_npc_profile", map[string]any{"npc_id": "guide-1"})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	var profile domain.NPCProfile
	if err := json.Unmarshal(result.Output, &profile); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if profile.DisplayName != "Old Guide" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestGetNPCProfileMissingReturnsNotFound(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "get_npc_profile", map[string]any{"npc_id": "nobody"})
	if result.Success {
		t.Fatal("expected failure for unknown npc")
	}
	if result.ErrorType != domain.ErrTypeNotFound {
		t.Fatalf("expected not_found error type, got %q", result.ErrorType)
	}
}

func TestUnknownToolNotFound(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "does_not_exist", map[string]any{})
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if result.ErrorType != domain.ErrTypeToolNotFound {
		t.Fatalf("expected tool_not_found error type, got %q", result.ErrorType)
	}
}

func TestValidationErrorDoesNotMarkToolNotFound(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "get_npc_profile", map[string]any{})
	if result.Success {
		t.Fatal("expected failure: npc_id is required")
	}
	if result.ErrorType != domain.ErrTypeValidation {
		t.Fatalf("expected validation error type, got %q", result.ErrorType)
	}
}

func TestGetPromptActiveDerivesFromPersonaWhenNoPromptActive(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "get_prompt_active", map[string]any{"npc_id": "guide-1", "prompt_type": "greeting"})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	var prompt domain.Prompt
	if err := json.Unmarshal(result.Output, &prompt); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if prompt.Text == "" {
		t.Fatal("expected a derived greeting prompt")
	}
}

func TestCreateDraftContentAlwaysDraft(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "create_draft_content", map[string]any{
		"content_type": "article",
		"title":        "On Filial Piety",
		"body":         "Some body text about family obligations.",
	})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	var content domain.Content
	if err := json.Unmarshal(result.Output, &content); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if content.Status != "draft" {
		t.Fatalf("expected draft status, got %q", content.Status)
	}
}

func TestSearchContentFindsSubstringMatch(t *testing.T) {
	e, deps := newTestExecutor(t)
	if _, err := deps.Evidence.CreateContent(context.Background(), domain.Content{
		Scope:       testScope(),
		ContentType: "article",
		Title:       "Family Precepts",
		Body:        "On filial piety and harmony in the household.",
		Status:      "draft",
	}); err != nil {
		t.Fatalf("CreateContent: %v", err)
	}

	result := execTool(t, e, "search_content", map[string]any{"query": "filial"})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	var matches []domain.Content
	if err := json.Unmarshal(result.Output, &matches); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestRetrieveEvidenceNeverFailsHard(t *testing.T) {
	e, _ := newTestExecutor(t)
	result := execTool(t, e, "retrieve_evidence", map[string]any{"query": "anything", "limit": 5})
	if !result.Success {
		t.Fatalf("retrieve_evidence must never fail hard, got error %q", result.Error)
	}
}

func TestSubmitAndListFeedback(t *testing.T) {
	e, _ := newTestExecutor(t)
	submit := execTool(t, e, "submit_feedback", map[string]any{
		"feedback_type": "inaccuracy",
		"severity":      "medium",
		"content":       "The date cited looks wrong.",
	})
	if !submit.Success {
		t.Fatalf("expected success, got error %q", submit.Error)
	}

	list := execTool(t, e, "list_feedback", map[string]any{})
	if !list.Success {
		t.Fatalf("expected success, got error %q", list.Error)
	}
	var items []domain.Feedback
	if err := json.Unmarshal(list.Output, &items); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 feedback item, got %d", len(items))
	}
	if items[0].Status != domain.FeedbackPending {
		t.Fatalf("expected pending status, got %q", items[0].Status)
	}
}

func TestLogUserEventAppendsEvent(t *testing.T) {
	e, deps := newTestExecutor(t)
	result := execTool(t, e, "log_user_event", map[string]any{"event_type": "npc_greeted"})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	events := deps.Events.(*MemoryEventLog).Events()
	if len(events) != 1 || events[0].EventType != "npc_greeted" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestGetSiteMapFiltersByFlags(t *testing.T) {
	e, deps := newTestExecutor(t)
	if err := deps.SiteMaps.PutSiteMap(domain.SiteMap{
		Scope:  testScope(),
		POIs:   []domain.POI{{ID: "poi-1", Name: "Ancestral Hall"}},
		Routes: []domain.Route{{FromPOIID: "poi-1", ToPOIID: "poi-2"}},
	}); err != nil {
		t.Fatalf("PutSiteMap: %v", err)
	}

	result := execTool(t, e, "get_site_map", map[string]any{"include_pois": true, "include_routes": false})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	var siteMap domain.SiteMap
	if err := json.Unmarshal(result.Output, &siteMap); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(siteMap.POIs) != 1 {
		t.Fatalf("expected 1 POI, got %d", len(siteMap.POIs))
	}
	if len(siteMap.Routes) != 0 {
		t.Fatalf("expected routes excluded, got %d", len(siteMap.Routes))
	}
}

func TestExecuteRecordsTraceOnEveryCall(t *testing.T) {
	deps := newTestDeps(t)
	reg := NewRegistry()
	RegisterBuiltins(reg, deps)

	var recorded []domain.TraceRecord
	executor := NewExecutor(reg, func(tr domain.TraceRecord) { recorded = append(recorded, tr) })

	execTool(t, executor, "get_npc_profile", map[string]any{"npc_id": "guide-1"})
	execTool(t, executor, "get_npc_profile", map[string]any{"npc_id": "nobody"})

	if len(recorded) != 2 {
		t.Fatalf("expected 2 trace records, got %d", len(recorded))
	}
	if recorded[0].Status != domain.TraceSuccess {
		t.Fatalf("expected first call traced as success, got %q", recorded[0].Status)
	}
	if recorded[1].Status != domain.TraceError {
		t.Fatalf("expected second call traced as error, got %q", recorded[1].Status)
	}
	if recorded[1].ToolCalls[0].RequestPayloadHash == "" {
		t.Fatal("expected a non-empty request payload hash")
	}
}

func TestRequestPayloadHashStableRegardlessOfKeyOrder(t *testing.T) {
	a := json.RawMessage(`{"b":2,"a":1}`)
	b := json.RawMessage(`{"a":1,"b":2}`)
	if requestPayloadHash(a) != requestPayloadHash(b) {
		t.Fatal("expected hash to be stable regardless of input key order")
	}
}

func TestToolListSortedByName(t *testing.T) {
	deps := newTestDeps(t)
	reg := NewRegistry()
	RegisterBuiltins(reg, deps)
	defs := reg.List()
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name > defs[i].Name {
			t.Fatalf("expected sorted tool list, got %q before %q", defs[i-1].Name, defs[i].Name)
		}
	}
}

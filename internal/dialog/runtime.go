// Package dialog is the Dialog Runtime (C9): the single place that
// composes session memory (C2), evidence retrieval (C3), the LLM provider
// (C4), the resilient tool client (C6, itself wrapping C5), the Evidence
// Gate (C8), and the Trace Ledger (C10) into the fixed single-turn
// pipeline spec.md §4.9 describes.
package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/internal/gate"
	"github.com/haasonsaas/groundedcore/internal/llmprovider"
	"github.com/haasonsaas/groundedcore/internal/observability"
	"github.com/haasonsaas/groundedcore/internal/personastore"
	"github.com/haasonsaas/groundedcore/internal/sessionmemory"
	"github.com/haasonsaas/groundedcore/internal/toolclient"
	"github.com/haasonsaas/groundedcore/internal/trace"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// maxExcerptLen bounds a citation's excerpt, per spec.md §4.9 step 6.
const maxExcerptLen = 100

// maxFollowups bounds the heuristic follow-up question list.
const maxFollowups = 3

// Generator is the slice of llmprovider.Provider / llmprovider.Dispatcher
// the runtime actually calls. Accepting the narrower interface lets tests
// pass a bare sandbox provider without pulling in a full Dispatcher.
type Generator interface {
	Generate(ctx context.Context, req llmprovider.Request) (llmprovider.Response, error)
}

// Runtime aggregates every collaborator one dialog turn touches, and
// exposes the single Chat operation spec.md §4.9 names. Grounded on the
// teacher's agent.Runtime (internal/agent/runtime.go): a struct holding
// every dependency the request loop needs, plus one exported entry point
// that drives a fixed sequence of named steps — generalized here from the
// teacher's streaming, open-ended tool-use loop to the spec's closed,
// 13-step turn with no tool-use round-trips back into the LLM.
type Runtime struct {
	Tools    *toolclient.Client
	LLM      Generator
	Sessions sessionmemory.Store
	Gate     *gate.Gate
	Traces   trace.Store
	Logger   *observability.Logger

	// FallbackOnLLMError controls step 8's LLMError handling: when true,
	// a generation failure synthesizes a conservative response instead of
	// propagating status=error to the caller.
	FallbackOnLLMError bool
}

// New builds a Runtime with fallback-on-LLM-error enabled, matching
// spec.md §4.9 step 8's default posture.
func New(tools *toolclient.Client, llm Generator, sessions sessionmemory.Store, g *gate.Gate, traces trace.Store, logger *observability.Logger) *Runtime {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
	}
	return &Runtime{
		Tools:              tools,
		LLM:                llm,
		Sessions:           sessions,
		Gate:               g,
		Traces:             traces,
		Logger:             logger,
		FallbackOnLLMError: true,
	}
}

// Chat runs one dialog turn end to end per spec.md §4.9's 13-step
// pipeline.
func (r *Runtime) Chat(ctx context.Context, req domain.ChatRequest) domain.ChatResponse {
	start := time.Now()

	// Step 1: resolve trace_id/session_id.
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Step 2: tool context + structured logger.
	tc := domain.ToolContext{
		Scope:     req.Scope,
		TraceID:   traceID,
		UserID:    req.UserID,
		SessionID: sessionID,
		NPCID:     req.NPCID,
	}
	log := r.Logger.WithFields("trace_id", traceID, "session_id", sessionID, "npc_id", req.NPCID)

	record := domain.TraceRecord{
		Scope:        req.Scope,
		TraceID:      traceID,
		SessionID:    sessionID,
		NPCID:        req.NPCID,
		RequestType:  domain.RequestNPCChat,
		RequestInput: req.Message,
		StartedAt:    start,
	}

	// Step 3: fetch persona (critical tool).
	profile, profileResult := r.fetchPersona(ctx, tc, req.NPCID)
	record.ToolCalls = append(record.ToolCalls, profileResult.Audit)
	if !profileResult.Success {
		log.Error(ctx, "persona fetch failed", "error", profileResult.Error)
		return r.errorResponse(ctx, &record, traceID, sessionID, req.NPCID, req.NPCID, start,
			"I'm having trouble getting my bearings right now — please try again shortly.")
	}

	record.PersonaVersion = profile.Version

	// Step 4: fetch active prompt.
	prompt, promptResult, promptSource := r.fetchPrompt(ctx, tc, profile, domain.PromptSystem)
	record.ToolCalls = append(record.ToolCalls, promptResult.Audit)
	record.PromptVersion = prompt.Version
	record.PromptSource = promptSource

	// Step 5: session memory + preference suffix.
	systemPrompt := prompt.Text
	if r.Sessions != nil {
		recent, _ := r.Sessions.GetRecentMessages(ctx, req.Scope, sessionID, req.NPCID, 0, 0)
		pref, _ := r.Sessions.GetPreference(ctx, req.Scope, sessionID)
		if suffix := sessionmemory.PromptSuffix(recent, pref); suffix != "" {
			systemPrompt = systemPrompt + "\n\n" + suffix
		}
	}

	// Step 6: retrieve evidence, never errors.
	citations, evidenceIDs, titles, retrieveResult := r.retrieveEvidence(ctx, tc, req.Message, profile.KnowledgeDomains)
	record.ToolCalls = append(record.ToolCalls, retrieveResult.Audit)
	record.EvidenceIDs = evidenceIDs

	intent := r.classify(ctx, req.Message)

	policyMode := domain.PolicyNormal
	answerText := ""
	skipLLM := false

	// Step 7: pre-gate.
	if r.Gate != nil {
		preGate := r.Gate.CheckBeforeLLM(intent, len(citations))
		if preGate.Reason != "" {
			record.PolicyReason = preGate.Reason
		}
		if !preGate.Passed {
			policyMode = domain.PolicyConservative
			answerText = gate.ConservativeResponse(prompt.Policy, intent)
			citations = nil
			skipLLM = true
		}
	}

	llmFailedHard := false
	if !skipLLM {
		// Step 8: invoke LLM.
		resp, err := r.LLM.Generate(ctx, llmprovider.Request{
			System:    systemPrompt,
			Messages:  []llmprovider.Message{{Role: "user", Content: composeUserMessage(req.Message, citations)}},
			MaxTokens: maxTokensFor(profile),
		})
		if err != nil {
			log.Warn(ctx, "llm generation failed", "error", err)
			if r.FallbackOnLLMError {
				policyMode = domain.PolicyConservative
				answerText = gate.ConservativeResponse(prompt.Policy, intent)
				citations = nil
			} else {
				// Propagate to step 11 with status=error rather than
				// returning early, so the turn still gets logged to
				// session memory and the ledger.
				llmFailedHard = true
				policyMode = domain.PolicyRefuse
				answerText = ""
				citations = nil
				record.Error = err.Error()
			}
		} else {
			answerText = resp.Text
			record.ModelName = resp.Model
			record.TokensInput = resp.TokensInput
			record.TokensOutput = resp.TokensOutput
			if named, ok := r.LLM.(interface{ Name() string }); ok {
				record.ModelProvider = named.Name()
			}

			// Step 9: post-gate.
			if r.Gate != nil {
				postGate := r.Gate.CheckAfterLLM(answerText, len(citations), intent)
				switch {
				case !postGate.Passed:
					answerText = gate.Filter(answerText)
					policyMode = domain.PolicyConservative
				case postGate.RequiresFiltering:
					answerText = gate.Filter(answerText)
				}
			}
		}
	}

	// Step 10: output validator.
	policyMode, answerText, citations = validateOutput(profile, policyMode, answerText, citations)

	// Step 11: append to session memory (NPC-scoped). Failure is logged,
	// not fatal.
	if r.Sessions != nil {
		now := time.Now()
		if err := r.Sessions.AppendMessage(ctx, req.Scope, sessionID, req.NPCID, domain.MemoryMessage{
			Role: domain.RoleUser, Content: req.Message, Timestamp: now, TraceID: traceID,
		}); err != nil {
			log.Warn(ctx, "append user message failed", "error", err)
		}
		if err := r.Sessions.AppendMessage(ctx, req.Scope, sessionID, req.NPCID, domain.MemoryMessage{
			Role: domain.RoleAssistant, Content: answerText, Timestamp: now, TraceID: traceID,
		}); err != nil {
			log.Warn(ctx, "append assistant message failed", "error", err)
		}
	}

	// citations MUST be empty when policy_mode is refuse or
	// conservative-due-to-gate.
	if policyMode != domain.PolicyNormal {
		citations = nil
	}

	record.PolicyMode = policyMode
	record.ResponseOutput = answerText
	if llmFailedHard {
		record.Status = domain.TraceError
	} else {
		record.Status = domain.TraceSuccess
	}
	record.CompletedAt = time.Now()
	record.LatencyMs = time.Since(start).Milliseconds()

	// Step 12: write TraceRecord.
	r.persist(ctx, record)

	// Step 13: return ChatResponse, including heuristic follow-ups.
	return domain.ChatResponse{
		TraceID:           traceID,
		SessionID:         sessionID,
		NPCID:             req.NPCID,
		NPCName:           profile.DisplayName,
		PolicyMode:        policyMode,
		AnswerText:        answerText,
		Citations:         citations,
		FollowupQuestions: buildFollowups(profile.KnowledgeDomains, titles),
		LatencyMs:         record.LatencyMs,
	}
}

func (r *Runtime) classify(ctx context.Context, message string) domain.Intent {
	if r.Gate == nil || r.Gate.Classifier == nil {
		return domain.IntentOutOfScope
	}
	result, err := r.Gate.Classifier.Classify(ctx, message)
	if err != nil {
		return domain.IntentOutOfScope
	}
	return result.Label
}

func (r *Runtime) persist(ctx context.Context, record domain.TraceRecord) {
	if r.Traces == nil {
		return
	}
	if err := r.Traces.Upsert(ctx, record); err != nil {
		r.Logger.Warn(ctx, "trace upsert failed", "trace_id", record.TraceID, "error", err)
	}
}

func (r *Runtime) errorResponse(ctx context.Context, record *domain.TraceRecord, traceID, sessionID, npcID, npcName string, start time.Time, message string) domain.ChatResponse {
	record.PolicyMode = domain.PolicyConservative
	record.ResponseOutput = message
	record.Status = domain.TraceError
	record.Error = "critical tool get_npc_profile failed"
	record.CompletedAt = time.Now()
	record.LatencyMs = time.Since(start).Milliseconds()
	r.persist(ctx, *record)

	return domain.ChatResponse{
		TraceID:    traceID,
		SessionID:  sessionID,
		NPCID:      npcID,
		NPCName:    npcName,
		PolicyMode: domain.PolicyConservative,
		AnswerText: message,
		LatencyMs:  record.LatencyMs,
	}
}

func (r *Runtime) fetchPersona(ctx context.Context, tc domain.ToolContext, npcID string) (domain.NPCProfile, domain.ToolCallResult) {
	input, _ := json.Marshal(map[string]any{"npc_id": npcID})
	result := r.Tools.Call(ctx, tc, "get_npc_profile", input)
	if !result.Success {
		return domain.NPCProfile{}, result
	}
	var profile domain.NPCProfile
	if err := json.Unmarshal(result.Output, &profile); err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("decode get_npc_profile output: %v", err)
		return domain.NPCProfile{}, result
	}
	return profile, result
}

// fetchPrompt resolves the active prompt and its source. The tool output
// itself doesn't carry prompt_source, so it's inferred: a tool failure
// falls back to a locally derived prompt (source=fallback); a successful
// call whose text matches exactly what DerivePromptFromPersona would
// produce is presumed derived at the registry layer too (source=npc_profile);
// anything else came from a genuine registry row (source=prompt_registry).
func (r *Runtime) fetchPrompt(ctx context.Context, tc domain.ToolContext, profile domain.NPCProfile, promptType domain.PromptType) (domain.Prompt, domain.ToolCallResult, domain.PromptSource) {
	input, _ := json.Marshal(map[string]any{"npc_id": profile.NPCID, "prompt_type": promptType})
	result := r.Tools.Call(ctx, tc, "get_prompt_active", input)

	derived := personastore.DerivePromptFromPersona(profile, promptType)

	if !result.Success {
		return derived, result, domain.PromptSourceFallback
	}

	var prompt domain.Prompt
	if err := json.Unmarshal(result.Output, &prompt); err != nil {
		return derived, result, domain.PromptSourceFallback
	}
	if prompt.Text == derived.Text {
		return prompt, result, domain.PromptSourceNPCProfile
	}
	return prompt, result, domain.PromptSourceRegistry
}

func (r *Runtime) retrieveEvidence(ctx context.Context, tc domain.ToolContext, query string, domains []string) ([]domain.Citation, []string, []string, domain.ToolCallResult) {
	input, _ := json.Marshal(map[string]any{"query": query, "domains": domains})
	result := r.Tools.Call(ctx, tc, "retrieve_evidence", input)
	if !result.Success {
		return nil, nil, nil, result
	}

	var retrieval domain.RetrievalResult
	if err := json.Unmarshal(result.Output, &retrieval); err != nil {
		return nil, nil, nil, result
	}

	citations := make([]domain.Citation, 0, len(retrieval.Hits))
	evidenceIDs := make([]string, 0, len(retrieval.Hits))
	titles := make([]string, 0, len(retrieval.Hits))
	for _, hit := range retrieval.Hits {
		citations = append(citations, domain.Citation{
			EvidenceID: hit.Evidence.ID,
			Title:      hit.Evidence.Title,
			SourceRef:  hit.Evidence.SourceRef,
			Excerpt:    truncate(hit.Evidence.Excerpt, maxExcerptLen),
			Confidence: hit.Evidence.Confidence,
		})
		evidenceIDs = append(evidenceIDs, hit.Evidence.ID)
		titles = append(titles, hit.Evidence.Title)
	}
	return citations, evidenceIDs, titles, result
}

func composeUserMessage(message string, citations []domain.Citation) string {
	if len(citations) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\nSupporting evidence:\n")
	for _, c := range citations {
		fmt.Fprintf(&b, "- %s: %s\n", c.Title, c.Excerpt)
	}
	return b.String()
}

func maxTokensFor(profile domain.NPCProfile) int {
	if profile.MaxResponseLength > 0 {
		return profile.MaxResponseLength
	}
	return 512
}

// validateOutput applies the NPC constraint checks spec.md §4.9 step 10
// names: a forbidden-topic keyword scan, a response-length cap, and
// must-cite enforcement when the active persona requires it.
func validateOutput(profile domain.NPCProfile, policyMode domain.PolicyMode, answerText string, citations []domain.Citation) (domain.PolicyMode, string, []domain.Citation) {
	for _, topic := range profile.ForbiddenTopics {
		if topic != "" && containsFold(answerText, topic) {
			return domain.PolicyRefuse, "I'm not able to discuss that topic here.", nil
		}
	}

	if profile.MustCite && len(citations) == 0 && policyMode == domain.PolicyNormal {
		return domain.PolicyConservative, answerText, nil
	}

	if profile.MaxResponseLength > 0 && len(answerText) > profile.MaxResponseLength {
		answerText = answerText[:profile.MaxResponseLength]
		if policyMode == domain.PolicyNormal {
			policyMode = domain.PolicyConservative
		}
	}

	return policyMode, answerText, citations
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// buildFollowups generates 0-3 heuristic follow-up questions from the
// NPC's knowledge domains and the titles of evidence actually cited.
func buildFollowups(domains []string, titles []string) []domain.FollowupQuestion {
	var out []domain.FollowupQuestion
	seen := make(map[string]bool)

	for _, title := range titles {
		if len(out) >= maxFollowups {
			return out
		}
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		out = append(out, domain.FollowupQuestion{Text: fmt.Sprintf("Would you like to know more about %s?", title)})
	}

	sortedDomains := append([]string(nil), domains...)
	sort.Strings(sortedDomains)
	for _, d := range sortedDomains {
		if len(out) >= maxFollowups {
			return out
		}
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, domain.FollowupQuestion{Text: fmt.Sprintf("What else would you like to know about %s?", d), Domain: d})
	}

	return out
}

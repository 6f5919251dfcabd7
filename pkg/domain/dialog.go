package domain

// ChatRequest is the inbound payload for a single NPC dialog turn
// (spec.md §4.9, POST /v1/npc/chat).
type ChatRequest struct {
	Scope
	NPCID     string `json:"npc_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
	TraceID   string `json:"trace_id,omitempty"`
}

// FollowupQuestion is one suggested next question, derived heuristically
// from the NPC's knowledge domains and the evidence actually cited.
type FollowupQuestion struct {
	Text   string `json:"text"`
	Domain string `json:"domain,omitempty"`
}

// ChatResponse is the outbound result of one dialog turn. Citations MUST
// be empty when PolicyMode is refuse or conservative-due-to-gate — the
// Dialog Runtime enforces this before returning.
type ChatResponse struct {
	TraceID           string             `json:"trace_id"`
	SessionID         string             `json:"session_id"`
	NPCID             string             `json:"npc_id"`
	NPCName           string             `json:"npc_name"`
	PolicyMode        PolicyMode         `json:"policy_mode"`
	AnswerText        string             `json:"answer_text"`
	Citations         []Citation         `json:"citations"`
	FollowupQuestions []FollowupQuestion `json:"followup_questions,omitempty"`
	LatencyMs         int64              `json:"latency_ms"`
}

package domain

import "time"

// TraceStatus is the terminal outcome of a traced request.
type TraceStatus string

const (
	TraceSuccess TraceStatus = "success"
	TraceError   TraceStatus = "error"
)

// RequestType distinguishes a dialog turn from a raw tool call trace row.
type RequestType string

const (
	RequestNPCChat  RequestType = "npc_chat"
	RequestToolCall RequestType = "tool_call"
)

// LLMAuditRecord is written for every LLM generation attempt.
type LLMAuditRecord struct {
	TraceID        string    `json:"trace_id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	RequestHash    string    `json:"request_hash"`
	TokensInput    int       `json:"tokens_input"`
	TokensOutput   int       `json:"tokens_output"`
	LatencyMs      int64     `json:"latency_ms"`
	Status         string    `json:"status"`
	ErrorType      string    `json:"error_type,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Fallback       bool      `json:"fallback"`
	CreatedAt      time.Time `json:"created_at"`
}

// TraceRecord is the append-then-update, immutable-history record of one
// request. Invariants: CompletedAt >= StartedAt once set; Status=success
// implies PolicyMode is one of normal/conservative/refuse.
type TraceRecord struct {
	Scope
	TraceID         string           `json:"trace_id"`
	SessionID       string           `json:"session_id,omitempty"`
	NPCID           string           `json:"npc_id,omitempty"`
	RequestType     RequestType      `json:"request_type"`
	RequestInput    string           `json:"request_input,omitempty"`
	ToolCalls       []ToolCallAudit  `json:"tool_calls,omitempty"`
	EvidenceIDs     []string         `json:"evidence_ids,omitempty"`
	PolicyMode      PolicyMode       `json:"policy_mode,omitempty"`
	PolicyReason    string           `json:"policy_reason,omitempty"`
	ResponseOutput  string           `json:"response_output,omitempty"`
	PromptVersion   int              `json:"prompt_version,omitempty"`
	PromptSource    PromptSource     `json:"prompt_source,omitempty"`
	PersonaVersion  int              `json:"persona_version,omitempty"`
	ModelProvider   string           `json:"model_provider,omitempty"`
	ModelName       string           `json:"model_name,omitempty"`
	TokensInput     int              `json:"tokens_input,omitempty"`
	TokensOutput    int              `json:"tokens_output,omitempty"`
	LatencyMs       int64            `json:"latency_ms"`
	Status          TraceStatus      `json:"status"`
	Error           string           `json:"error,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at,omitempty"`
	ReleaseID       string           `json:"release_id,omitempty"`
	ExperimentID    string           `json:"experiment_id,omitempty"`
	ExperimentVariant string         `json:"experiment_variant,omitempty"`
	StrategySnapshot map[string]any  `json:"strategy_snapshot,omitempty"`
}

// UnifiedTrace is the replay surface joining a trace with its LLM audit and
// session summary (spec.md §4.10).
type UnifiedTrace struct {
	Trace          TraceRecord      `json:"trace"`
	LLMAudit       []LLMAuditRecord `json:"llm_audit,omitempty"`
	Citations      []Citation       `json:"citations,omitempty"`
	SessionSummary *SessionSummary  `json:"session_summary,omitempty"`
}

// TraceFilter narrows a ledger listing query.
type TraceFilter struct {
	Scope
	SessionID   string
	NPCID       string
	PolicyMode  PolicyMode
	Status      TraceStatus
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
}

package domain

import "time"

// MessageRole is the role of a short-memory message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MemoryMessage is one entry in a session's NPC-scoped short memory ring.
type MemoryMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Preference is the cross-NPC preference record for a session. Must never
// carry factual claims, only user-stated style/interest choices.
type Preference struct {
	Verbosity    string    `json:"verbosity,omitempty"`
	Tone         string    `json:"tone,omitempty"`
	InterestTags []string  `json:"interest_tags,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionSummary is the fixed shape returned by trace replay for a
// session's memory (spec.md §9 Open Questions resolves the shape exactly).
type SessionSummary struct {
	SessionID       string          `json:"session_id"`
	MessageCount    int             `json:"message_count"`
	RecentMessages  []MemoryMessage `json:"recent_messages"`
	FirstMessageAt  *time.Time      `json:"first_message_at,omitempty"`
	LastMessageAt   *time.Time      `json:"last_message_at,omitempty"`
}

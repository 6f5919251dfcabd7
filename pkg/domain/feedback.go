package domain

import "time"

// FeedbackType distinguishes the channel a feedback item arrived through.
type FeedbackType string

const (
	FeedbackBugReport    FeedbackType = "bug_report"
	FeedbackInaccuracy   FeedbackType = "inaccuracy"
	FeedbackSuggestion   FeedbackType = "suggestion"
	FeedbackAbuseReport  FeedbackType = "abuse_report"
)

// FeedbackSeverity ranks how urgently a feedback item needs triage.
type FeedbackSeverity string

const (
	FeedbackSeverityLow      FeedbackSeverity = "low"
	FeedbackSeverityMedium   FeedbackSeverity = "medium"
	FeedbackSeverityHigh     FeedbackSeverity = "high"
	FeedbackSeverityCritical FeedbackSeverity = "critical"
)

// FeedbackStatus is the triage lifecycle of a feedback item.
type FeedbackStatus string

const (
	FeedbackPending   FeedbackStatus = "pending"
	FeedbackReviewed  FeedbackStatus = "reviewed"
	FeedbackResolved  FeedbackStatus = "resolved"
	FeedbackDismissed FeedbackStatus = "dismissed"
)

// Feedback is a user- or operator-submitted item attached optionally to a
// trace, persisted pending review (submit_feedback / list_feedback).
type Feedback struct {
	Scope
	ID        string           `json:"id"`
	TraceID   string           `json:"trace_id,omitempty"`
	Type      FeedbackType     `json:"feedback_type"`
	Severity  FeedbackSeverity `json:"severity"`
	Content   string           `json:"content"`
	Status    FeedbackStatus   `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

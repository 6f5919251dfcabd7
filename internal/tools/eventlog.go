package tools

import (
	"sync"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// UserEvent is one append-only analytic event recorded by log_user_event.
type UserEvent struct {
	domain.Scope
	SessionID string         `json:"session_id,omitempty"`
	NPCID     string         `json:"npc_id,omitempty"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// EventLog is the append-only sink for log_user_event.
type EventLog interface {
	Append(event UserEvent) error
}

// MemoryEventLog accumulates events in process memory.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []UserEvent
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

func (l *MemoryEventLog) Append(event UserEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a snapshot of all recorded events, oldest first.
func (l *MemoryEventLog) Events() []UserEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]UserEvent, len(l.events))
	copy(out, l.events)
	return out
}

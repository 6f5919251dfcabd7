package tools

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// FeedbackStore backs submit_feedback and list_feedback.
type FeedbackStore interface {
	Create(feedback domain.Feedback) (domain.Feedback, error)
	List(scope domain.Scope, status domain.FeedbackStatus, feedbackType domain.FeedbackType, severity domain.FeedbackSeverity, limit int) ([]domain.Feedback, error)
}

// MemoryFeedbackStore is an in-memory FeedbackStore.
type MemoryFeedbackStore struct {
	mu    sync.RWMutex
	items map[string]domain.Feedback
}

func NewMemoryFeedbackStore() *MemoryFeedbackStore {
	return &MemoryFeedbackStore{items: make(map[string]domain.Feedback)}
}

func (s *MemoryFeedbackStore) Create(feedback domain.Feedback) (domain.Feedback, error) {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.Status == "" {
		feedback.Status = domain.FeedbackPending
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[feedback.ID] = feedback
	return feedback, nil
}

func (s *MemoryFeedbackStore) List(scope domain.Scope, status domain.FeedbackStatus, feedbackType domain.FeedbackType, severity domain.FeedbackSeverity, limit int) ([]domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Feedback, 0, len(s.items))
	for _, f := range s.items {
		if f.Scope != scope {
			continue
		}
		if status != "" && f.Status != status {
			continue
		}
		if feedbackType != "" && f.Type != feedbackType {
			continue
		}
		if severity != "" && f.Severity != severity {
			continue
		}
		matches = append(matches, f)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

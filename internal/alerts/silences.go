package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// SilenceStore holds time-bounded alert suppressions.
type SilenceStore interface {
	Create(ctx context.Context, silence domain.AlertSilence) (domain.AlertSilence, error)
	Delete(ctx context.Context, scope domain.Scope, id string) error
	List(ctx context.Context, scope domain.Scope) ([]domain.AlertSilence, error)
	ListActive(ctx context.Context, scope domain.Scope, at time.Time) ([]domain.AlertSilence, error)
}

// MemorySilenceStore is the in-process SilenceStore implementation.
type MemorySilenceStore struct {
	mu       sync.Mutex
	silences map[domain.Scope]map[string]domain.AlertSilence
}

func NewMemorySilenceStore() *MemorySilenceStore {
	return &MemorySilenceStore{silences: make(map[domain.Scope]map[string]domain.AlertSilence)}
}

func (s *MemorySilenceStore) Create(_ context.Context, silence domain.AlertSilence) (domain.AlertSilence, error) {
	if !silence.Scope.Valid() {
		return domain.AlertSilence{}, fmt.Errorf("alerts: silence scope is required")
	}
	if silence.ID == "" {
		silence.ID = uuid.NewString()
	}
	if silence.CreatedAt.IsZero() {
		silence.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.silences[silence.Scope] == nil {
		s.silences[silence.Scope] = make(map[string]domain.AlertSilence)
	}
	s.silences[silence.Scope][silence.ID] = silence
	return silence, nil
}

func (s *MemorySilenceStore) Delete(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.silences[scope], id)
	return nil
}

func (s *MemorySilenceStore) List(_ context.Context, scope domain.Scope) ([]domain.AlertSilence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlertSilence, 0, len(s.silences[scope]))
	for _, sl := range s.silences[scope] {
		out = append(out, sl)
	}
	return out, nil
}

// ListActive returns only the silences whose [StartsAt, EndsAt] window
// contains at.
func (s *MemorySilenceStore) ListActive(ctx context.Context, scope domain.Scope, at time.Time) ([]domain.AlertSilence, error) {
	all, err := s.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AlertSilence, 0, len(all))
	for _, sl := range all {
		if !at.Before(sl.StartsAt) && !at.After(sl.EndsAt) {
			out = append(out, sl)
		}
	}
	return out, nil
}

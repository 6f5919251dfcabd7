package alerts

import (
	"context"
	"sync"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// EventStore persists the deduplicated firing/resolved episode for one
// (tenant, site, alert_code, window), keyed by domain.AlertEvent.DedupKey.
type EventStore interface {
	Get(ctx context.Context, scope domain.Scope, dedupKey string) (domain.AlertEvent, bool, error)
	Upsert(ctx context.Context, event domain.AlertEvent) error
	ListFiring(ctx context.Context, scope domain.Scope) ([]domain.AlertEvent, error)
	ListAll(ctx context.Context, scope domain.Scope) ([]domain.AlertEvent, error)
}

// MemoryEventStore is the in-process EventStore implementation.
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[string]domain.AlertEvent // key: scope-qualified dedup key
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string]domain.AlertEvent)}
}

func storeKey(scope domain.Scope, dedupKey string) string {
	return scope.TenantID + "|" + scope.SiteID + "|" + dedupKey
}

func (s *MemoryEventStore) Get(_ context.Context, scope domain.Scope, dedupKey string) (domain.AlertEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[storeKey(scope, dedupKey)]
	return e, ok, nil
}

func (s *MemoryEventStore) Upsert(_ context.Context, event domain.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[storeKey(event.Scope, event.DedupKey())] = event
	return nil
}

func (s *MemoryEventStore) ListFiring(ctx context.Context, scope domain.Scope) ([]domain.AlertEvent, error) {
	all, err := s.ListAll(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AlertEvent, 0, len(all))
	for _, e := range all {
		if e.Status == domain.AlertFiring {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) ListAll(_ context.Context, scope domain.Scope) ([]domain.AlertEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlertEvent, 0)
	for _, e := range s.events {
		if e.TenantID == scope.TenantID && e.SiteID == scope.SiteID {
			out = append(out, e)
		}
	}
	return out, nil
}

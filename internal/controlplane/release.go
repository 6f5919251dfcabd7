package controlplane

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ReleaseStore holds versioned, atomically-activatable release bundles per
// (tenant, site), grounded on the same active-version discipline as
// PolicyStore, plus an append-only ReleaseHistory ledger for
// activate/rollback (spec.md §4.7, §8 invariant 9).
type ReleaseStore interface {
	CreateRelease(ctx context.Context, release domain.Release) (domain.Release, error)
	GetRelease(ctx context.Context, scope domain.Scope, id string) (domain.Release, error)
	GetActiveRelease(ctx context.Context, scope domain.Scope) (domain.Release, error)
	ActivateRelease(ctx context.Context, scope domain.Scope, id string) (domain.Release, error)
	Rollback(ctx context.Context, scope domain.Scope) (domain.Release, error)
	ListReleaseHistory(ctx context.Context, scope domain.Scope) ([]domain.ReleaseHistory, error)
}

// MemoryReleaseStore is the in-process ReleaseStore implementation.
type MemoryReleaseStore struct {
	mu       sync.Mutex
	releases map[domain.Scope]map[string]domain.Release
	history  map[domain.Scope][]domain.ReleaseHistory
}

func NewMemoryReleaseStore() *MemoryReleaseStore {
	return &MemoryReleaseStore{
		releases: make(map[domain.Scope]map[string]domain.Release),
		history:  make(map[domain.Scope][]domain.ReleaseHistory),
	}
}

func (s *MemoryReleaseStore) CreateRelease(_ context.Context, release domain.Release) (domain.Release, error) {
	if !release.Scope.Valid() {
		return domain.Release{}, fmt.Errorf("controlplane: tenant and site are required")
	}
	if release.ID == "" {
		release.ID = uuid.NewString()
	}
	if release.Status == "" {
		release.Status = domain.ReleaseDraft
	}
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.releases[release.Scope] == nil {
		s.releases[release.Scope] = make(map[string]domain.Release)
	}
	s.releases[release.Scope][release.ID] = release
	return release, nil
}

func (s *MemoryReleaseStore) GetRelease(_ context.Context, scope domain.Scope, id string) (domain.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.releases[scope][id]
	if !ok {
		return domain.Release{}, fmt.Errorf("release %q: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryReleaseStore) GetActiveRelease(_ context.Context, scope domain.Scope) (domain.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.releases[scope] {
		if r.Status == domain.ReleaseActive {
			return r, nil
		}
	}
	return domain.Release{}, fmt.Errorf("no active release: %w", ErrNotFound)
}

// ActivateRelease atomically archives whatever release was previously
// active and activates the named one, appending a ReleaseHistory row. This
// is the only path that ever sets Status=active, so GetActiveRelease's
// single-winner scan is always well-defined.
func (s *MemoryReleaseStore) ActivateRelease(_ context.Context, scope domain.Scope, id string) (domain.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.releases[scope][id]
	if !ok {
		return domain.Release{}, fmt.Errorf("release %q: %w", id, ErrNotFound)
	}

	var previousID string
	for rid, r := range s.releases[scope] {
		if r.Status == domain.ReleaseActive {
			r.Status = domain.ReleaseArchived
			s.releases[scope][rid] = r
			previousID = rid
		}
	}

	now := time.Now()
	target.Status = domain.ReleaseActive
	target.ActivatedAt = &now
	s.releases[scope][id] = target

	s.history[scope] = append(s.history[scope], domain.ReleaseHistory{
		Scope:             scope,
		ID:                uuid.NewString(),
		ReleaseID:         id,
		Action:            domain.ActionActivate,
		PreviousReleaseID: previousID,
		OccurredAt:        now,
	})
	return target, nil
}

// Rollback reactivates the release recorded as previous in the most recent
// activate history row. It is itself recorded as an activate+rollback pair
// so the history ledger always reads as a linear sequence of activations.
func (s *MemoryReleaseStore) Rollback(ctx context.Context, scope domain.Scope) (domain.Release, error) {
	s.mu.Lock()
	rows := s.history[scope]
	var previousID string
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Action == domain.ActionActivate && rows[i].PreviousReleaseID != "" {
			previousID = rows[i].PreviousReleaseID
			break
		}
	}
	s.mu.Unlock()

	if previousID == "" {
		return domain.Release{}, fmt.Errorf("no prior release to roll back to: %w", ErrNotFound)
	}

	reactivated, err := s.ActivateRelease(ctx, scope, previousID)
	if err != nil {
		return domain.Release{}, err
	}

	s.mu.Lock()
	if n := len(s.history[scope]); n > 0 {
		s.history[scope][n-1].Action = domain.ActionRollback
	}
	s.mu.Unlock()

	return reactivated, nil
}

func (s *MemoryReleaseStore) ListReleaseHistory(_ context.Context, scope domain.Scope) ([]domain.ReleaseHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReleaseHistory, len(s.history[scope]))
	copy(out, s.history[scope])
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// Package evidence implements the tenant-scoped evidence corpus and its
// trigram/vector/hybrid retrieval strategies (spec.md §4.3). The retriever
// never surfaces an error across its public contract: every failure path
// degrades to a narrower strategy or an empty result with a reason string.
package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Store holds the evidence corpus and its content lifecycle. Evidence rows
// are immutable after creation: corrections create a new row carrying
// Supersedes, and removal is a soft-delete flag.
type Store interface {
	CreateEvidence(ctx context.Context, e domain.Evidence) (domain.Evidence, error)
	GetEvidence(ctx context.Context, scope domain.Scope, id string) (domain.Evidence, error)
	ListEvidence(ctx context.Context, scope domain.Scope, domains []string) ([]domain.Evidence, error)
	SoftDeleteEvidence(ctx context.Context, scope domain.Scope, id string) error

	CreateContent(ctx context.Context, c domain.Content) (domain.Content, error)
	GetContent(ctx context.Context, scope domain.Scope, id string) (domain.Content, error)
	ListContent(ctx context.Context, scope domain.Scope, contentType string, tags []string) ([]domain.Content, error)
	PublishContent(ctx context.Context, scope domain.Scope, id string) (domain.Content, error)
}

// MemoryStore is the in-process Store implementation used for local
// deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	evidences map[string]domain.Evidence
	contents  map[string]domain.Content
}

// NewMemoryStore creates an empty in-memory evidence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		evidences: make(map[string]domain.Evidence),
		contents:  make(map[string]domain.Content),
	}
}

func scopedKey(scope domain.Scope, id string) string {
	return scope.TenantID + "|" + scope.SiteID + "|" + id
}

// CreateEvidence inserts a new, immutable evidence row. If ID is empty one
// is generated.
func (s *MemoryStore) CreateEvidence(_ context.Context, e domain.Evidence) (domain.Evidence, error) {
	if !e.Scope.Valid() {
		return domain.Evidence{}, fmt.Errorf("evidence: tenant and site are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidences[scopedKey(e.Scope, e.ID)] = e
	return e, nil
}

// GetEvidence returns a single evidence row, including soft-deleted ones
// (callers filter on Deleted as needed).
func (s *MemoryStore) GetEvidence(_ context.Context, scope domain.Scope, id string) (domain.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evidences[scopedKey(scope, id)]
	if !ok {
		return domain.Evidence{}, fmt.Errorf("evidence: %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// ListEvidence returns all non-deleted evidence for a scope, optionally
// filtered to rows that carry at least one of the given domains.
func (s *MemoryStore) ListEvidence(_ context.Context, scope domain.Scope, domains []string) ([]domain.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := scope.TenantID + "|" + scope.SiteID + "|"
	var out []domain.Evidence
	for k, e := range s.evidences {
		if !strings.HasPrefix(k, prefix) || e.Deleted {
			continue
		}
		if len(domains) > 0 && !anyOverlap(e.Domains, domains) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func anyOverlap(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// SoftDeleteEvidence marks a row deleted rather than removing it.
func (s *MemoryStore) SoftDeleteEvidence(_ context.Context, scope domain.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopedKey(scope, id)
	e, ok := s.evidences[key]
	if !ok {
		return fmt.Errorf("evidence: %s: %w", id, ErrNotFound)
	}
	e.Deleted = true
	s.evidences[key] = e
	return nil
}

// CreateContent inserts a draft content row.
func (s *MemoryStore) CreateContent(_ context.Context, c domain.Content) (domain.Content, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = "draft"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[scopedKey(c.Scope, c.ID)] = c
	return c, nil
}

// GetContent retrieves a content row.
func (s *MemoryStore) GetContent(_ context.Context, scope domain.Scope, id string) (domain.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[scopedKey(scope, id)]
	if !ok {
		return domain.Content{}, fmt.Errorf("content: %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// ListContent returns all content rows for a scope, optionally filtered by
// content_type and/or tag overlap. Backs search_content's coarse listing;
// the caller applies the query substring match (see tools.searchContent).
func (s *MemoryStore) ListContent(_ context.Context, scope domain.Scope, contentType string, tags []string) ([]domain.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := scope.TenantID + "|" + scope.SiteID + "|"
	var out []domain.Content
	for k, c := range s.contents {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if contentType != "" && c.ContentType != contentType {
			continue
		}
		if len(tags) > 0 && !anyOverlap(c.Tags, tags) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PublishContent flips a draft content row to published. Promotion into
// searchable Evidence happens separately via Ingest (ingest.go).
func (s *MemoryStore) PublishContent(_ context.Context, scope domain.Scope, id string) (domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopedKey(scope, id)
	c, ok := s.contents[key]
	if !ok {
		return domain.Content{}, fmt.Errorf("content: %s: %w", id, ErrNotFound)
	}
	c.Status = "published"
	s.contents[key] = c
	return c, nil
}

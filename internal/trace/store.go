// Package trace is the Unified Trace ledger (C10): every dialog turn and
// every standalone tool call writes a TraceRecord, keyed so repeated writes
// under the same trace_id upsert rather than duplicate (spec.md §4.10,
// §8 invariant 10 — a turn's trace row is appended once per phase of its
// own lifecycle, not once per sub-step). Grounded on the in-memory
// map+mutex idiom from internal/cache/dedupe.go for the default/test
// backend.
package trace

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ErrNotFound is returned when a trace_id has no ledger row.
var ErrNotFound = errors.New("trace: not found")

// Store is the ledger's read/write surface.
type Store interface {
	Upsert(ctx context.Context, record domain.TraceRecord) error
	Get(ctx context.Context, scope domain.Scope, traceID string) (domain.TraceRecord, error)
	List(ctx context.Context, filter domain.TraceFilter) ([]domain.TraceRecord, error)
	AppendLLMAudit(ctx context.Context, traceID string, audit domain.LLMAuditRecord) error
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	traces    map[string]domain.TraceRecord // keyed by scope-qualified trace_id
	llmAudits map[string][]domain.LLMAuditRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces:    make(map[string]domain.TraceRecord),
		llmAudits: make(map[string][]domain.LLMAuditRecord),
	}
}

func traceKey(scope domain.Scope, traceID string) string {
	return scope.TenantID + "|" + scope.SiteID + "|" + traceID
}

// Upsert writes or replaces the ledger row for record.TraceID. Callers
// writing a second time for the same trace (e.g. the Dialog Runtime
// finishing a turn after an earlier tool-call-only write) overwrite in
// place rather than appending a duplicate row.
func (s *MemoryStore) Upsert(_ context.Context, record domain.TraceRecord) error {
	if !record.Scope.Valid() || record.TraceID == "" {
		return errors.New("trace: scope and trace_id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[traceKey(record.Scope, record.TraceID)] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, scope domain.Scope, traceID string) (domain.TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.traces[traceKey(scope, traceID)]
	if !ok {
		return domain.TraceRecord{}, ErrNotFound
	}
	return r, nil
}

// List returns traces matching filter, newest first, trimmed to
// filter.Limit when positive.
func (s *MemoryStore) List(_ context.Context, filter domain.TraceFilter) ([]domain.TraceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TraceRecord
	for _, r := range s.traces {
		if r.TenantID != filter.TenantID || r.SiteID != filter.SiteID {
			continue
		}
		if filter.SessionID != "" && r.SessionID != filter.SessionID {
			continue
		}
		if filter.NPCID != "" && r.NPCID != filter.NPCID {
			continue
		}
		if filter.PolicyMode != "" && r.PolicyMode != filter.PolicyMode {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if !filter.CreatedFrom.IsZero() && r.StartedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && r.StartedAt.After(filter.CreatedTo) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AppendLLMAudit records one LLM generation attempt against a trace, for
// the unified replay view.
func (s *MemoryStore) AppendLLMAudit(_ context.Context, traceID string, audit domain.LLMAuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.llmAudits[traceID] = append(s.llmAudits[traceID], audit)
	return nil
}

func (s *MemoryStore) llmAuditsFor(traceID string) []domain.LLMAuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LLMAuditRecord, len(s.llmAudits[traceID]))
	copy(out, s.llmAudits[traceID])
	return out
}

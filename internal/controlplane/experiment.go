package controlplane

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ExperimentStore holds experiments and the stable per-subject bucket
// assignments spec.md §4.7 requires: once a subject is assigned a variant,
// changing the experiment's variant weights never re-buckets them — only
// newly-assigned subjects see the new weights. Stable bucketing is grounded
// on internal/experiments/manager.go's selectVariant/cumulative-weight walk,
// switched from that file's fnv hash to the spec's explicit
// sha256(experiment_id||"|"||subject_key) mod 100 scheme.
type ExperimentStore interface {
	CreateExperiment(ctx context.Context, experiment domain.Experiment) (domain.Experiment, error)
	GetExperiment(ctx context.Context, scope domain.Scope, id string) (domain.Experiment, error)
	ListExperiments(ctx context.Context, scope domain.Scope) ([]domain.Experiment, error)
	UpdateStatus(ctx context.Context, scope domain.Scope, id string, status domain.ExperimentStatus) (domain.Experiment, error)
	AssignSubject(ctx context.Context, scope domain.Scope, experimentID, subjectKey string) (domain.ExperimentAssignment, error)
	ListAssignments(ctx context.Context, scope domain.Scope, experimentID string) ([]domain.ExperimentAssignment, error)
}

// MemoryExperimentStore is the in-process ExperimentStore implementation.
type MemoryExperimentStore struct {
	mu          sync.Mutex
	experiments map[domain.Scope]map[string]domain.Experiment
	assignments map[domain.Scope]map[string]domain.ExperimentAssignment // key: experimentID+"|"+subjectKey
}

func NewMemoryExperimentStore() *MemoryExperimentStore {
	return &MemoryExperimentStore{
		experiments: make(map[domain.Scope]map[string]domain.Experiment),
		assignments: make(map[domain.Scope]map[string]domain.ExperimentAssignment),
	}
}

func (s *MemoryExperimentStore) CreateExperiment(_ context.Context, experiment domain.Experiment) (domain.Experiment, error) {
	if experiment.ID == "" {
		return domain.Experiment{}, fmt.Errorf("controlplane: experiment id is required")
	}
	if experiment.Status == "" {
		experiment.Status = domain.ExperimentDraft
	}
	if experiment.CreatedAt.IsZero() {
		experiment.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.experiments[experiment.Scope] == nil {
		s.experiments[experiment.Scope] = make(map[string]domain.Experiment)
	}
	s.experiments[experiment.Scope][experiment.ID] = experiment
	return experiment, nil
}

func (s *MemoryExperimentStore) GetExperiment(_ context.Context, scope domain.Scope, id string) (domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.experiments[scope][id]
	if !ok {
		return domain.Experiment{}, fmt.Errorf("experiment %q: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *MemoryExperimentStore) ListExperiments(_ context.Context, scope domain.Scope) ([]domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Experiment, 0, len(s.experiments[scope]))
	for _, e := range s.experiments[scope] {
		out = append(out, e)
	}
	return out, nil
}

// UpdateStatus transitions an experiment's lifecycle status (draft, active,
// paused, ended); it does not touch variants or assignments.
func (s *MemoryExperimentStore) UpdateStatus(_ context.Context, scope domain.Scope, id string, status domain.ExperimentStatus) (domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.experiments[scope][id]
	if !ok {
		return domain.Experiment{}, fmt.Errorf("experiment %q: %w", id, ErrNotFound)
	}
	e.Status = status
	s.experiments[scope][id] = e
	return e, nil
}

// ListAssignments returns every subject assignment recorded for one
// experiment, for the ab-summary endpoint's per-variant counts.
func (s *MemoryExperimentStore) ListAssignments(_ context.Context, scope domain.Scope, experimentID string) ([]domain.ExperimentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExperimentAssignment, 0)
	for _, a := range s.assignments[scope] {
		if a.ExperimentID == experimentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// AssignSubject returns the subject's existing assignment if one exists, or
// computes and persists a new one via stable bucketing.
func (s *MemoryExperimentStore) AssignSubject(_ context.Context, scope domain.Scope, experimentID, subjectKey string) (domain.ExperimentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignKey := experimentID + "|" + subjectKey
	if existing, ok := s.assignments[scope][assignKey]; ok {
		return existing, nil
	}

	experiment, ok := s.experiments[scope][experimentID]
	if !ok {
		return domain.ExperimentAssignment{}, fmt.Errorf("experiment %q: %w", experimentID, ErrNotFound)
	}
	if len(experiment.Variants) == 0 {
		return domain.ExperimentAssignment{}, fmt.Errorf("experiment %q: no variants configured", experimentID)
	}

	bucket := Bucket(experimentID, subjectKey)
	variant := SelectVariant(experiment.Variants, bucket)

	assignment := domain.ExperimentAssignment{
		Scope:        scope,
		ExperimentID: experimentID,
		SubjectKey:   subjectKey,
		VariantName:  variant,
		Bucket:       bucket,
		AssignedAt:   time.Now(),
	}

	if s.assignments[scope] == nil {
		s.assignments[scope] = make(map[string]domain.ExperimentAssignment)
	}
	s.assignments[scope][assignKey] = assignment
	return assignment, nil
}

// Bucket computes sha256(experiment_id||"|"||subject_key) mod 100, the
// exact scheme spec.md §4.7 names — deterministic and independent of map
// iteration order or process restarts.
func Bucket(experimentID, subjectKey string) int {
	h := sha256.Sum256([]byte(experimentID + "|" + subjectKey))
	n := binary.BigEndian.Uint64(h[:8])
	return int(n % 100)
}

// SelectVariant walks variants in order accumulating weight, returning the
// first variant whose cumulative weight encloses bucket. Variant order is
// part of the contract: reordering variants (not just reweighting them)
// does change which subjects fall in which variant, so callers must treat
// the variants slice as append-only once an experiment is active.
func SelectVariant(variants []domain.ExperimentVariant, bucket int) string {
	cumulative := 0
	for _, v := range variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v.Name
		}
	}
	return variants[len(variants)-1].Name
}

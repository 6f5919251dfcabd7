package trace

import (
	"context"

	"github.com/haasonsaas/groundedcore/internal/evidence"
	"github.com/haasonsaas/groundedcore/internal/sessionmemory"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Replayer joins a trace row with its LLM audit trail, resolved citations,
// and session summary into the single view spec.md §4.10 exposes at
// /v1/traces/{id}/unified.
type Replayer struct {
	Traces   Store
	Evidence evidence.Store
	Sessions sessionmemory.Store
}

func NewReplayer(traces Store, ev evidence.Store, sessions sessionmemory.Store) *Replayer {
	return &Replayer{Traces: traces, Evidence: ev, Sessions: sessions}
}

// Unify builds a UnifiedTrace for the given trace. Citation and session
// resolution failures degrade to an empty slice/nil summary rather than
// failing the whole replay — a trace is still useful without them.
func (r *Replayer) Unify(ctx context.Context, scope domain.Scope, traceID string) (domain.UnifiedTrace, error) {
	record, err := r.Traces.Get(ctx, scope, traceID)
	if err != nil {
		return domain.UnifiedTrace{}, err
	}

	unified := domain.UnifiedTrace{Trace: record}

	if ms, ok := r.Traces.(*MemoryStore); ok {
		unified.LLMAudit = ms.llmAuditsFor(traceID)
	}

	if r.Evidence != nil {
		for _, id := range record.EvidenceIDs {
			e, getErr := r.Evidence.GetEvidence(ctx, scope, id)
			if getErr != nil {
				continue
			}
			unified.Citations = append(unified.Citations, domain.Citation{
				EvidenceID: e.ID,
				Title:      e.Title,
				SourceRef:  e.SourceRef,
				Excerpt:    e.Excerpt,
				Confidence: e.Confidence,
			})
		}
	}

	if r.Sessions != nil && record.SessionID != "" && record.NPCID != "" {
		summary, summaryErr := r.Sessions.GetSessionSummary(ctx, scope, record.SessionID, record.NPCID, 0)
		if summaryErr == nil {
			unified.SessionSummary = &summary
		}
	}

	return unified, nil
}

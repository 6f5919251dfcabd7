package evidence

import (
	"context"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// LabeledQuery is one row of an offline retrieval evaluation set: a query
// paired with the evidence ids a human judged relevant.
type LabeledQuery struct {
	Query            string
	RelevantEvidence []string
}

// EvalReport summarizes retrieval quality across a labeled query set,
// mirroring the teacher's rag/eval harness output shape.
type EvalReport struct {
	Strategy         domain.RetrievalStrategy
	QueryCount       int
	PrecisionAtK     float64
	CitationCoverage float64
	FallbackCount    int
}

// Evaluate runs every labeled query through the retriever at the given
// strategy and scores precision@k and citation coverage (the fraction of
// queries that returned at least one hit). Used to validate a hybrid-weight
// change before a release promotes it (SPEC_FULL.md supplement).
func Evaluate(ctx context.Context, r *Retriever, scope domain.Scope, strategy domain.RetrievalStrategy, queries []LabeledQuery, k int) EvalReport {
	report := EvalReport{Strategy: strategy, QueryCount: len(queries)}
	if len(queries) == 0 {
		return report
	}

	var precisionSum float64
	var coveredCount int
	for _, q := range queries {
		result := r.Retrieve(ctx, scope, q.Query, strategy, k, 0, nil)
		if result.StrategyUsed != strategy && result.FallbackReason != "" {
			report.FallbackCount++
		}
		if len(result.Hits) > 0 {
			coveredCount++
		}
		relevant := toSet(q.RelevantEvidence)
		hitCount := 0
		for _, h := range result.Hits {
			if _, ok := relevant[h.Evidence.ID]; ok {
				hitCount++
			}
		}
		if len(result.Hits) > 0 {
			precisionSum += float64(hitCount) / float64(len(result.Hits))
		}
	}

	report.PrecisionAtK = precisionSum / float64(len(queries))
	report.CitationCoverage = float64(coveredCount) / float64(len(queries))
	return report
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

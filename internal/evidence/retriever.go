package evidence

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// DefaultTrgmWeight and DefaultQdrantWeight are the hybrid fusion defaults
// from spec.md §4.3 / SPEC_FULL.md's Open Question #1. Releases may
// override these per (tenant, site) via RetrievalDefaults.
const (
	DefaultTrgmWeight   = 0.4
	DefaultQdrantWeight = 0.6

	// DefaultMinTrgmSimilarity is the floor below which a TRGM hit is
	// dropped, matching pg_trgm's own default similarity threshold.
	DefaultMinTrgmSimilarity = 0.3
)

// Retriever implements the hybrid TRGM/QDRANT/HYBRID/LIKE search strategies
// over a Store and VectorIndex. Every public method returns a well-formed
// RetrievalResult; it never returns an error.
type Retriever struct {
	Store     Store
	Index     VectorIndex
	Embedder  EmbeddingProvider

	TrgmWeight   float64
	QdrantWeight float64
}

// NewRetriever builds a Retriever with the spec's default fusion weights.
func NewRetriever(store Store, index VectorIndex, embedder EmbeddingProvider) *Retriever {
	return &Retriever{
		Store:        store,
		Index:        index,
		Embedder:     embedder,
		TrgmWeight:   DefaultTrgmWeight,
		QdrantWeight: DefaultQdrantWeight,
	}
}

// Retrieve runs the requested strategy and never fails: any internal error
// degrades to a narrower strategy or an empty result with FallbackReason
// set.
func (r *Retriever) Retrieve(ctx context.Context, scope domain.Scope, query string, strategy domain.RetrievalStrategy, limit int, minScore float64, domains []string) domain.RetrievalResult {
	if limit <= 0 {
		limit = 10
	}
	switch strategy {
	case domain.StrategyTRGM:
		return r.trgmRetrieve(ctx, scope, query, limit, domains, domain.StrategyTRGM, "")
	case domain.StrategyQdrant:
		return r.qdrantRetrieve(ctx, scope, query, limit, minScore, domains)
	case domain.StrategyLike:
		return r.likeRetrieve(ctx, scope, query, limit, domains)
	case domain.StrategyHybrid, "":
		return r.hybridRetrieve(ctx, scope, query, limit, minScore, domains)
	default:
		return r.trgmRetrieve(ctx, scope, query, limit, domains, domain.StrategyTRGM, "unknown_strategy")
	}
}

func (r *Retriever) trgmRetrieve(ctx context.Context, scope domain.Scope, query string, limit int, domains []string, used domain.RetrievalStrategy, reason string) domain.RetrievalResult {
	evidences, err := r.Store.ListEvidence(ctx, scope, domains)
	if err != nil {
		return emptyResult(used, "trgm_error")
	}

	var hits []domain.RetrievalHit
	for _, e := range evidences {
		score := maxFloat(trigramSimilarity(query, e.Title), trigramSimilarity(query, e.Excerpt))
		if score < DefaultMinTrgmSimilarity {
			continue
		}
		hits = append(hits, domain.RetrievalHit{Evidence: e, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Evidence.Confidence > hits[j].Evidence.Confidence
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return domain.RetrievalResult{
		Hits:           hits,
		StrategyUsed:   used,
		FallbackReason: reason,
		Scores:         scoreDistribution(hits),
	}
}

func (r *Retriever) likeRetrieve(ctx context.Context, scope domain.Scope, query string, limit int, domains []string) domain.RetrievalResult {
	evidences, err := r.Store.ListEvidence(ctx, scope, domains)
	if err != nil {
		return emptyResult(domain.StrategyLike, "like_error")
	}
	var hits []domain.RetrievalHit
	for _, e := range evidences {
		if containsFold(e.Title, query) || containsFold(e.Excerpt, query) {
			hits = append(hits, domain.RetrievalHit{Evidence: e, Score: e.Confidence})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Evidence.Confidence > hits[j].Evidence.Confidence })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return domain.RetrievalResult{Hits: hits, StrategyUsed: domain.StrategyLike, Scores: scoreDistribution(hits)}
}

func (r *Retriever) qdrantRetrieve(ctx context.Context, scope domain.Scope, query string, limit int, minScore float64, domains []string) domain.RetrievalResult {
	if r.Index == nil || r.Embedder == nil {
		return r.trgmRetrieve(ctx, scope, query, limit, domains, "trgm_fallback", "qdrant_unavailable: no index or embedder configured")
	}
	vector, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return r.trgmRetrieve(ctx, scope, query, limit, domains, "trgm_fallback", "qdrant_unavailable: embed failed: "+err.Error())
	}
	vecHits, err := r.Index.Search(ctx, scope, vector, domains, limit, minScore)
	if err != nil {
		return r.trgmRetrieve(ctx, scope, query, limit, domains, "trgm_fallback", "hybrid_error: vector search failed: "+err.Error())
	}

	var hits []domain.RetrievalHit
	for _, vh := range vecHits {
		e, err := r.Store.GetEvidence(ctx, scope, vh.EvidenceID)
		if err != nil || e.Deleted {
			continue
		}
		hits = append(hits, domain.RetrievalHit{Evidence: e, Score: vh.Score})
	}
	return domain.RetrievalResult{Hits: hits, StrategyUsed: domain.StrategyQdrant, Scores: scoreDistribution(hits)}
}

func (r *Retriever) hybridRetrieve(ctx context.Context, scope domain.Scope, query string, limit int, minScore float64, domains []string) domain.RetrievalResult {
	trgmWeight, qdrantWeight := r.weights()

	var wg sync.WaitGroup
	var trgmResult, qdrantResult domain.RetrievalResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		trgmResult = r.trgmRetrieve(ctx, scope, query, limit*2, domains, domain.StrategyTRGM, "")
	}()
	go func() {
		defer wg.Done()
		qdrantResult = r.qdrantRetrieve(ctx, scope, query, limit*2, minScore, domains)
	}()
	wg.Wait()

	if qdrantResult.StrategyUsed != domain.StrategyQdrant {
		// Vector side degraded internally (no index/embedder, embed/search
		// failure) — hybrid degrades entirely to trgm.
		reason := qdrantResult.FallbackReason
		if reason == "" {
			reason = "qdrant_unavailable"
		}
		trgmResult.StrategyUsed = "trgm_fallback"
		trgmResult.FallbackReason = reason
		if len(trgmResult.Hits) > limit {
			trgmResult.Hits = trgmResult.Hits[:limit]
		}
		return trgmResult
	}

	merged := make(map[string]*domain.RetrievalHit)
	for _, h := range trgmResult.Hits {
		score := h.Score * trgmWeight
		merged[h.Evidence.ID] = &domain.RetrievalHit{Evidence: h.Evidence, Score: score}
	}
	for _, h := range qdrantResult.Hits {
		if existing, ok := merged[h.Evidence.ID]; ok {
			existing.Score = trgmScoreOf(trgmResult.Hits, h.Evidence.ID)*trgmWeight + h.Score*qdrantWeight
			continue
		}
		merged[h.Evidence.ID] = &domain.RetrievalHit{Evidence: h.Evidence, Score: h.Score * qdrantWeight}
	}

	hits := make([]domain.RetrievalHit, 0, len(merged))
	for _, h := range merged {
		hits = append(hits, *h)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return domain.RetrievalResult{Hits: hits, StrategyUsed: domain.StrategyHybrid, Scores: scoreDistribution(hits)}
}

func trgmScoreOf(hits []domain.RetrievalHit, evidenceID string) float64 {
	for _, h := range hits {
		if h.Evidence.ID == evidenceID {
			return h.Score
		}
	}
	return 0
}

func (r *Retriever) weights() (float64, float64) {
	trgmWeight, qdrantWeight := r.TrgmWeight, r.QdrantWeight
	if trgmWeight == 0 && qdrantWeight == 0 {
		trgmWeight, qdrantWeight = DefaultTrgmWeight, DefaultQdrantWeight
	}
	return trgmWeight, qdrantWeight
}

func emptyResult(used domain.RetrievalStrategy, reason string) domain.RetrievalResult {
	return domain.RetrievalResult{StrategyUsed: used, FallbackReason: reason}
}

func scoreDistribution(hits []domain.RetrievalHit) domain.ScoreDistribution {
	if len(hits) == 0 {
		return domain.ScoreDistribution{}
	}
	min, max, sum := hits[0].Score, hits[0].Score, 0.0
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
		sum += h.Score
	}
	return domain.ScoreDistribution{Min: min, Max: max, Avg: sum / float64(len(hits)), Count: len(hits)}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

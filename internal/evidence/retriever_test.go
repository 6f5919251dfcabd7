package evidence

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func testScope() domain.Scope {
	return domain.Scope{TenantID: "t1", SiteID: "s1"}
}

type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }
func (f *fakeEmbedder) Dimension() int { return f.dim }

func seedEvidence(t *testing.T, store Store, scope domain.Scope) domain.Evidence {
	t.Helper()
	e, err := store.CreateEvidence(context.Background(), domain.Evidence{
		Scope:      scope,
		Title:      "严氏家训",
		Excerpt:    "一曰孝悌为本",
		Confidence: 0.9,
		Verified:   true,
	})
	if err != nil {
		t.Fatalf("seed evidence: %v", err)
	}
	return e
}

func TestTRGMRetrieveGroundedAnswer(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	e := seedEvidence(t, store, scope)

	r := NewRetriever(store, nil, nil)
	result := r.Retrieve(context.Background(), scope, "严氏家训有哪些？", domain.StrategyTRGM, 10, 0, nil)

	if result.StrategyUsed != domain.StrategyTRGM {
		t.Fatalf("expected trgm strategy, got %s", result.StrategyUsed)
	}
	if len(result.Hits) != 1 || result.Hits[0].Evidence.ID != e.ID {
		t.Fatalf("expected single hit for seeded evidence, got %+v", result.Hits)
	}
}

func TestRetrieveNeverFailsOnEmptyCorpus(t *testing.T) {
	store := NewMemoryStore()
	r := NewRetriever(store, nil, nil)
	result := r.Retrieve(context.Background(), testScope(), "严氏先祖在哪一年迁来的？", domain.StrategyTRGM, 10, 0, nil)
	if len(result.Hits) != 0 {
		t.Fatalf("expected empty hits against empty corpus, got %+v", result.Hits)
	}
}

func TestHybridFallsBackToTRGMWhenVectorUnavailable(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	seedEvidence(t, store, scope)

	r := NewRetriever(store, nil, nil) // no index, no embedder configured
	result := r.Retrieve(context.Background(), scope, "严氏家训", domain.StrategyHybrid, 10, 0, nil)

	if result.StrategyUsed != "trgm_fallback" {
		t.Fatalf("expected trgm_fallback strategy, got %s", result.StrategyUsed)
	}
	if result.FallbackReason == "" {
		t.Fatalf("expected a fallback reason to be set")
	}
	if len(result.Hits) == 0 {
		t.Fatalf("expected fallback to still surface trgm hits")
	}
}

func TestHybridDegradesOnEmbedderError(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	seedEvidence(t, store, scope)

	index := NewMemoryVectorIndex(4)
	embedder := &fakeEmbedder{dim: 4, err: errors.New("embedding service down")}
	r := NewRetriever(store, index, embedder)

	result := r.Retrieve(context.Background(), scope, "严氏家训", domain.StrategyHybrid, 10, 0, nil)
	if result.StrategyUsed != "trgm_fallback" {
		t.Fatalf("expected trgm_fallback, got %s", result.StrategyUsed)
	}
}

func TestHybridFusionWeights(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	e := seedEvidence(t, store, scope)

	index := NewMemoryVectorIndex(2)
	embedder := &fakeEmbedder{dim: 2, vectors: map[string][]float32{"query": {1, 0}}}
	ctx := context.Background()
	_ = index.Upsert(ctx, scope, domain.EmbeddingPoint{Scope: scope, EvidenceID: e.ID, PointID: "p1", Vector: []float32{1, 0}, Dimension: 2}, nil)

	r := NewRetriever(store, index, embedder)
	r.TrgmWeight, r.QdrantWeight = 0.4, 0.6

	result := r.Retrieve(ctx, scope, "query", domain.StrategyHybrid, 10, 0, nil)
	if result.StrategyUsed != domain.StrategyHybrid {
		t.Fatalf("expected hybrid strategy, got %s (%s)", result.StrategyUsed, result.FallbackReason)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected exactly one merged hit, got %+v", result.Hits)
	}
	// query does not trigram-match the seeded evidence, so the trgm side
	// contributes zero and the merged score is qdrant_score * 0.6.
	want := 1.0 * 0.6
	if diff := result.Hits[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected fused score %.4f, got %.4f", want, result.Hits[0].Score)
	}
}

func TestVectorIndexDimensionMismatchReturnsEmpty(t *testing.T) {
	index := NewMemoryVectorIndex(4)
	hits, err := index.Search(context.Background(), testScope(), []float32{1, 2}, nil, 10, 0)
	if err != nil {
		t.Fatalf("expected no error on dimension mismatch, got %v", err)
	}
	if hits != nil {
		t.Fatalf("expected empty hits on dimension mismatch, got %+v", hits)
	}
}

func TestIngesterPromoteCreatesEvidenceAndEmbedding(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	index := NewMemoryVectorIndex(3)
	embedder := &fakeEmbedder{dim: 3}
	ing := NewIngester(store, index, embedder)

	content, err := store.CreateContent(context.Background(), domain.Content{
		Scope: scope, Title: "test", Body: "short body", ContentType: "article",
	})
	if err != nil {
		t.Fatalf("create content: %v", err)
	}
	content, err = store.PublishContent(context.Background(), scope, content.ID)
	if err != nil {
		t.Fatalf("publish content: %v", err)
	}

	evidences, err := ing.Promote(context.Background(), scope, content)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(evidences) != 1 {
		t.Fatalf("expected one evidence chunk for short body, got %d", len(evidences))
	}
}

func TestIngesterRejectsUnpublishedContent(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	ing := NewIngester(store, nil, nil)

	content, _ := store.CreateContent(context.Background(), domain.Content{Scope: scope, Title: "draft", Body: "x"})
	if _, err := ing.Promote(context.Background(), scope, content); err == nil {
		t.Fatalf("expected error promoting unpublished content")
	}
}

func TestEvaluateComputesPrecisionAndCoverage(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	e := seedEvidence(t, store, scope)
	r := NewRetriever(store, nil, nil)

	report := Evaluate(context.Background(), r, scope, domain.StrategyTRGM, []LabeledQuery{
		{Query: "严氏家训有哪些？", RelevantEvidence: []string{e.ID}},
		{Query: "completely unrelated english text", RelevantEvidence: []string{"nonexistent"}},
	}, 5)

	if report.QueryCount != 2 {
		t.Fatalf("expected 2 queries scored, got %d", report.QueryCount)
	}
	if report.CitationCoverage != 0.5 {
		t.Fatalf("expected 50%% coverage (one query hits, one misses), got %.2f", report.CitationCoverage)
	}
}

func TestSoftDeleteExcludesFromListing(t *testing.T) {
	store := NewMemoryStore()
	scope := testScope()
	e := seedEvidence(t, store, scope)

	if err := store.SoftDeleteEvidence(context.Background(), scope, e.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	list, err := store.ListEvidence(context.Background(), scope, nil)
	if err != nil {
		t.Fatalf("list evidence: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected soft-deleted evidence excluded from listing, got %+v", list)
	}
}

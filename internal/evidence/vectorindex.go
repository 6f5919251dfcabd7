package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// VectorIndex is the backend contract for the QDRANT retrieval strategy.
// CollectionDimension lets the retriever detect a query/collection
// dimension mismatch and drop rather than mis-search (spec.md §3).
type VectorIndex interface {
	Upsert(ctx context.Context, scope domain.Scope, point domain.EmbeddingPoint, payload map[string]any) error
	Search(ctx context.Context, scope domain.Scope, vector []float32, domains []string, topK int, minScore float64) ([]VectorHit, error)
	Delete(ctx context.Context, scope domain.Scope, pointID string) error
	CollectionDimension(ctx context.Context) (int, error)
}

// VectorHit is one result of a vector similarity search.
type VectorHit struct {
	EvidenceID string
	PointID    string
	Score      float64
}

// EmbeddingProvider turns text into a fixed-dimension vector. Grounded on
// the teacher's embeddings.Provider interface (Embed/EmbedBatch/Dimension).
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

type vectorRecord struct {
	scope      domain.Scope
	evidenceID string
	pointID    string
	vector     []float32
	domains    []string
}

// MemoryVectorIndex is a cosine-similarity, in-process VectorIndex used for
// tests and single-node deployments without Qdrant.
type MemoryVectorIndex struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]vectorRecord
}

// NewMemoryVectorIndex creates an empty index fixed to the given dimension.
func NewMemoryVectorIndex(dimension int) *MemoryVectorIndex {
	return &MemoryVectorIndex{dimension: dimension, points: make(map[string]vectorRecord)}
}

func (m *MemoryVectorIndex) key(scope domain.Scope, pointID string) string {
	return scope.TenantID + "|" + scope.SiteID + "|" + pointID
}

func (m *MemoryVectorIndex) Upsert(_ context.Context, scope domain.Scope, point domain.EmbeddingPoint, payload map[string]any) error {
	if point.Dimension != m.dimension {
		return fmt.Errorf("evidence: embedding dimension %d does not match collection dimension %d", point.Dimension, m.dimension)
	}
	var domains []string
	if raw, ok := payload["domains"].([]string); ok {
		domains = raw
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[m.key(scope, point.PointID)] = vectorRecord{
		scope:      scope,
		evidenceID: point.EvidenceID,
		pointID:    point.PointID,
		vector:     point.Vector,
		domains:    domains,
	}
	return nil
}

func (m *MemoryVectorIndex) Search(_ context.Context, scope domain.Scope, vector []float32, domains []string, topK int, minScore float64) ([]VectorHit, error) {
	if len(vector) != m.dimension {
		// Dimension mismatch between query and collection: empty result,
		// not an error, per spec.md §4.3.
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []VectorHit
	for _, rec := range m.points {
		if rec.scope != scope {
			continue
		}
		if len(domains) > 0 && !anyOverlap(rec.domains, domains) {
			continue
		}
		score := cosineSimilarity(vector, rec.vector)
		if score < minScore {
			continue
		}
		hits = append(hits, VectorHit{EvidenceID: rec.evidenceID, PointID: rec.pointID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryVectorIndex) Delete(_ context.Context, scope domain.Scope, pointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, m.key(scope, pointID))
	return nil
}

func (m *MemoryVectorIndex) CollectionDimension(_ context.Context) (int, error) {
	return m.dimension, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// QdrantClient is a thin REST client against a Qdrant collection, shaped
// after github.com/qdrant/go-client's point-struct payload but issued over
// plain net/http so the core picks up no hard Qdrant SDK dependency for the
// default single-node deployment path. It implements VectorIndex so
// production deployments can swap it in behind the same interface as
// MemoryVectorIndex.
type QdrantClient struct {
	BaseURL    string
	Collection string
	Dimension  int
	HTTPClient *http.Client
}

// NewQdrantClient builds a client against one collection.
func NewQdrantClient(baseURL, collection string, dimension int) *QdrantClient {
	return &QdrantClient{
		BaseURL:    baseURL,
		Collection: collection,
		Dimension:  dimension,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

type qdrantUpsertRequest struct {
	Points []qdrantPoint `json:"points"`
}

func (q *QdrantClient) Upsert(ctx context.Context, scope domain.Scope, point domain.EmbeddingPoint, payload map[string]any) error {
	if point.Dimension != q.Dimension {
		return fmt.Errorf("evidence: embedding dimension %d does not match collection dimension %d", point.Dimension, q.Dimension)
	}
	merged := map[string]any{"tenant_id": scope.TenantID, "site_id": scope.SiteID, "evidence_id": point.EvidenceID}
	for k, v := range payload {
		merged[k] = v
	}
	body, err := json.Marshal(qdrantUpsertRequest{Points: []qdrantPoint{{ID: point.PointID, Vector: point.Vector, Payload: merged}}})
	if err != nil {
		return fmt.Errorf("evidence: encode qdrant upsert: %w", err)
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points", q.Collection), body, nil)
}

type qdrantSearchRequest struct {
	Vector []float32      `json:"vector"`
	Limit  int            `json:"limit"`
	Filter map[string]any `json:"filter,omitempty"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (q *QdrantClient) Search(ctx context.Context, scope domain.Scope, vector []float32, domains []string, topK int, minScore float64) ([]VectorHit, error) {
	if len(vector) != q.Dimension {
		return nil, nil
	}
	must := []map[string]any{
		{"key": "tenant_id", "match": map[string]any{"value": scope.TenantID}},
		{"key": "site_id", "match": map[string]any{"value": scope.SiteID}},
	}
	if len(domains) > 0 {
		must = append(must, map[string]any{"key": "domains", "match": map[string]any{"any": domains}})
	}
	body, err := json.Marshal(qdrantSearchRequest{
		Vector: vector,
		Limit:  topK,
		Filter: map[string]any{"must": must},
	})
	if err != nil {
		return nil, fmt.Errorf("evidence: encode qdrant search: %w", err)
	}

	var resp qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.Collection), body, &resp); err != nil {
		return nil, err
	}

	var hits []VectorHit
	for _, r := range resp.Result {
		if r.Score < minScore {
			continue
		}
		evidenceID, _ := r.Payload["evidence_id"].(string)
		hits = append(hits, VectorHit{EvidenceID: evidenceID, PointID: r.ID, Score: r.Score})
	}
	return hits, nil
}

func (q *QdrantClient) Delete(ctx context.Context, scope domain.Scope, pointID string) error {
	body, err := json.Marshal(map[string]any{"points": []string{pointID}})
	if err != nil {
		return fmt.Errorf("evidence: encode qdrant delete: %w", err)
	}
	return q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete", q.Collection), body, nil)
}

func (q *QdrantClient) CollectionDimension(_ context.Context) (int, error) {
	return q.Dimension, nil
}

func (q *QdrantClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, q.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("evidence: build qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("evidence: qdrant request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("evidence: qdrant returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("evidence: decode qdrant response: %w", err)
	}
	return nil
}

package domain

import "time"

// Evidence is the citable unit of the corpus. Immutable after creation;
// corrections create a new record with Supersedes set.
type Evidence struct {
	Scope
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Excerpt    string    `json:"excerpt"`
	SourceType string    `json:"source_type"`
	SourceRef  string    `json:"source_ref"`
	Confidence float64   `json:"confidence"`
	Verified   bool      `json:"verified"`
	Tags       []string  `json:"tags,omitempty"`
	Domains    []string  `json:"domains,omitempty"`
	Supersedes string    `json:"supersedes,omitempty"`
	Deleted    bool       `json:"deleted"`
	CreatedAt  time.Time `json:"created_at"`
}

// Content is a draft/published unit created via create_draft_content. Once
// published it may be promoted into Evidence by the ingestion pipeline.
type Content struct {
	Scope
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Domains     []string  `json:"domains,omitempty"`
	Source      string    `json:"source,omitempty"`
	Status      string    `json:"status"` // draft | published
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingPoint is a projection of an Evidence's text into the vector
// index, keyed by a stable hash of evidence_id.
type EmbeddingPoint struct {
	Scope
	EvidenceID string    `json:"evidence_id"`
	PointID    string    `json:"point_id"`
	Vector     []float32 `json:"-"`
	Dimension  int       `json:"dimension"`
}

// RetrievalStrategy is the sum type of retrieval backends.
type RetrievalStrategy string

const (
	StrategyTRGM   RetrievalStrategy = "trgm"
	StrategyQdrant RetrievalStrategy = "qdrant"
	StrategyHybrid RetrievalStrategy = "hybrid"
	StrategyLike   RetrievalStrategy = "like"
)

// Citation is the caller-facing projection of a retrieved Evidence.
type Citation struct {
	EvidenceID string  `json:"evidence_id"`
	Title      string  `json:"title"`
	SourceRef  string  `json:"source_ref"`
	Excerpt    string  `json:"excerpt"`
	Confidence float64 `json:"confidence"`
}

// ScoreDistribution summarizes the score spread of a retrieval result.
type ScoreDistribution struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// RetrievalHit is one scored evidence match.
type RetrievalHit struct {
	Evidence Evidence `json:"evidence"`
	Score    float64  `json:"score"`
}

// RetrievalResult is the never-fail output of the retriever. On any
// internal failure, Hits is empty and FallbackReason explains why.
type RetrievalResult struct {
	Hits           []RetrievalHit    `json:"hits"`
	StrategyUsed   RetrievalStrategy `json:"strategy_used"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	Scores         ScoreDistribution `json:"scores"`
}

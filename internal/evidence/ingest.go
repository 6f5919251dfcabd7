package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// ChunkConfig bounds how published content is split before embedding,
// mirroring the teacher's recursive chunker defaults.
type ChunkConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
}

// DefaultChunkConfig matches the teacher's recursive chunker defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 1000, ChunkOverlap: 200, MinChunkSize: 100}
}

// Ingester promotes published Content into searchable Evidence rows: it
// chunks the body, embeds each chunk, and writes both the Evidence row and
// its EmbeddingPoint.
type Ingester struct {
	Store    Store
	Index    VectorIndex
	Embedder EmbeddingProvider
	Chunk    ChunkConfig
}

// NewIngester builds an Ingester with the default chunk bounds.
func NewIngester(store Store, index VectorIndex, embedder EmbeddingProvider) *Ingester {
	return &Ingester{Store: store, Index: index, Embedder: embedder, Chunk: DefaultChunkConfig()}
}

// Promote chunks a published Content row, embeds each chunk, and writes an
// Evidence row plus EmbeddingPoint for each. It returns the created
// Evidence rows. Content must already be published.
func (ing *Ingester) Promote(ctx context.Context, scope domain.Scope, content domain.Content) ([]domain.Evidence, error) {
	if content.Status != "published" {
		return nil, fmt.Errorf("evidence: content %s is not published", content.ID)
	}

	chunks := recursiveChunk(content.Body, ing.Chunk)
	if len(chunks) == 0 {
		chunks = []string{content.Body}
	}

	out := make([]domain.Evidence, 0, len(chunks))
	for i, chunk := range chunks {
		e := domain.Evidence{
			Scope:      scope,
			Title:      content.Title,
			Excerpt:    chunk,
			SourceType: content.ContentType,
			SourceRef:  content.Source,
			Confidence: 0.7,
			Verified:   false,
			Tags:       content.Tags,
			Domains:    content.Domains,
		}
		created, err := ing.Store.CreateEvidence(ctx, e)
		if err != nil {
			return out, fmt.Errorf("evidence: create evidence chunk %d for content %s: %w", i, content.ID, err)
		}
		out = append(out, created)

		if ing.Embedder == nil || ing.Index == nil {
			continue
		}
		vector, err := ing.Embedder.Embed(ctx, chunk)
		if err != nil {
			continue
		}
		point := domain.EmbeddingPoint{
			Scope:      scope,
			EvidenceID: created.ID,
			PointID:    uuid.NewString(),
			Vector:     vector,
			Dimension:  ing.Embedder.Dimension(),
		}
		_ = ing.Index.Upsert(ctx, scope, point, map[string]any{
			"title":   created.Title,
			"excerpt": truncate(created.Excerpt, 200),
			"domains": created.Domains,
		})
	}
	return out, nil
}

// recursiveChunk splits text on paragraph, then sentence, then hard
// boundaries until each piece is within ChunkSize, mirroring the teacher's
// recursive chunker strategy.
func recursiveChunk(text string, cfg ChunkConfig) []string {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	text = strings.TrimSpace(text)
	if len(text) <= cfg.ChunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var pieces []string
	var current strings.Builder
	flush := func() {
		if current.Len() >= cfg.MinChunkSize || current.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	for _, p := range paragraphs {
		if current.Len()+len(p) > cfg.ChunkSize && current.Len() > 0 {
			flush()
		}
		current.WriteString(p)
		current.WriteString("\n\n")
	}
	flush()

	var bounded []string
	for _, piece := range pieces {
		bounded = append(bounded, hardWrap(piece, cfg.ChunkSize)...)
	}
	return bounded
}

func hardWrap(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Package search implements hybrid retrieval over the artifact store:
// an FTS5 keyword leg and a cosine-similarity semantic leg, fused into a
// single ranked result list.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/durolabs/duro/internal/artifact"
	"github.com/durolabs/duro/internal/store"
)

// Embedder generates vector embeddings for text. The model is external to
// Duro; anything returning a fixed-length vector works.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Result is one ranked artifact.
type Result struct {
	Artifact   *artifact.Artifact `json:"artifact"`
	Score      float64            `json:"score"`
	Keyword    float64            `json:"keyword_score"`
	Similarity float64            `json:"similarity"`
}

// Options controls search behavior.
type Options struct {
	Limit int           // max results (default 10)
	Type  artifact.Type // filter by artifact type (empty = all)
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// Default weights for fusing the two legs.
const (
	keywordWeight  = 0.6
	semanticWeight = 0.4
)

// Service runs hybrid queries and keeps embeddings current.
type Service struct {
	store    *store.Store
	embedder Embedder
}

// New creates a search service. embedder may be nil: search then degrades to
// keyword-only ranking.
func New(s *store.Store, embedder Embedder) *Service {
	return &Service{store: s, embedder: embedder}
}

// IndexArtifact computes and stores the embedding for an artifact.
// Best-effort derived data: callers treat failures as non-fatal.
func (s *Service) IndexArtifact(ctx context.Context, a *artifact.Artifact) error {
	if s.embedder == nil {
		return nil
	}
	text := a.SearchText()
	if text == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", a.ID, err)
	}
	return s.store.SaveVector(a.ID, vec, s.embedder.Model())
}

// Search runs both legs concurrently and fuses their scores:
// score = 0.6*keyword + 0.4*similarity, keyword normalized from bm25 rank.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	var keywordHits []store.KeywordHit
	var semanticHits map[string]float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.store.KeywordSearch(query, opts.limit()*2)
		if err != nil {
			return err
		}
		keywordHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.semanticLeg(gctx, query)
		if err != nil {
			return err
		}
		semanticHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fuse: union of both legs, weighted sum of normalized scores.
	scores := make(map[string]*Result)
	for _, h := range keywordHits {
		scores[h.ArtifactID] = &Result{Keyword: normalizeRank(h.Rank)}
	}
	for id, sim := range semanticHits {
		r, ok := scores[id]
		if !ok {
			r = &Result{}
			scores[id] = r
		}
		r.Similarity = sim
	}

	var results []Result
	for id, r := range scores {
		a, err := s.store.Get(id)
		if err != nil {
			// The index is a derived cache; a stale entry pointing at a
			// deleted artifact is tolerated, not fatal.
			continue
		}
		if opts.Type != "" && a.Type != opts.Type {
			continue
		}
		r.Artifact = a
		r.Score = keywordWeight*r.Keyword + semanticWeight*r.Similarity
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.limit() {
		results = results[:opts.limit()]
	}
	return results, nil
}

// semanticLeg embeds the query and scores it against all stored vectors.
func (s *Service) semanticLeg(ctx context.Context, query string) (map[string]float64, error) {
	if s.embedder == nil {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vectors, err := s.store.AllVectors()
	if err != nil {
		return nil, err
	}

	hits := make(map[string]float64, len(vectors))
	for _, v := range vectors {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim > 0 {
			hits[v.ArtifactID] = sim
		}
	}
	return hits, nil
}

// normalizeRank maps an FTS5 bm25 rank (negative, more negative = better)
// into [0, 1), monotonically increasing with match strength.
func normalizeRank(rank float64) float64 {
	m := math.Max(0, -rank)
	return m / (m + 1.0)
}

// CosineSimilarity computes the cosine similarity between two vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

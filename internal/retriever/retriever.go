// Package retriever ranks the stored chunks of an analysis against a query.
package retriever

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spigell/resume-rag/internal/domain"
	"github.com/spigell/resume-rag/internal/embedding"
	"github.com/spigell/resume-rag/internal/logger"
	"go.uber.org/zap"
)

// DefaultTopK is the number of results returned when the caller does not ask for a size.
const DefaultTopK = 5

// Store gives read access to the indexed chunks of an analysis.
type Store interface {
	All(analysisID string) []domain.Chunk
}

// QueryEmbedder embeds queries so they can be compared with stored chunks.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string, dim int) embedding.Embedding
	Fallback(text string, dim int) embedding.Embedding
}

// Retriever embeds a query and returns the most similar chunks.
type Retriever struct {
	store    Store
	embedder QueryEmbedder
	topK     int
	logger   *zap.Logger
}

// New creates a Retriever. A non-positive topK uses DefaultTopK.
func New(store Store, embedder QueryEmbedder, topK int, log *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, logger: logger.WithFields(log)}
}

// Search returns at most k chunks of the analysis ordered by descending similarity.
// Ties keep document order. An analysis without chunks gives an empty result.
func (r *Retriever) Search(ctx context.Context, query, analysisID string, k int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(analysisID) == "" {
		return nil, fmt.Errorf("%w: analysis id is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = r.topK
	}

	chunks := r.store.All(analysisID)
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := r.queryVectors(ctx, query, chunks)
	if len(vectors) > 1 {
		logger.WithAnalysis(r.logger, analysisID, "").Debug("stored vectors have mixed dimensions",
			zap.Ints("dimensions", slices.Sorted(maps.Keys(vectors))),
		)
	}

	results := make([]domain.SearchResult, len(chunks))
	for i, c := range chunks {
		results[i] = domain.SearchResult{Chunk: c, Score: Cosine(vectors[len(c.Embedding)], c.Embedding)}
	}

	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > k {
		results = results[:k]
	}

	logger.WithAnalysis(r.logger, analysisID, "").Debug("retrieved chunks",
		zap.Int("candidates", len(chunks)),
		zap.Int("returned", len(results)),
		zap.Float64("top_score", results[0].Score),
	)

	return results, nil
}

// queryVectors embeds the query once per stored vector dimension, since the resume and
// the job may have been indexed by different models. A dimension holding only local
// fallback vectors gets a local query vector too, so both sides live in the same space.
func (r *Retriever) queryVectors(ctx context.Context, query string, chunks []domain.Chunk) map[int]domain.Vector {
	provider := make(map[int]bool)
	for _, c := range chunks {
		dim := len(c.Embedding)
		provider[dim] = provider[dim] || !c.Fallback
	}

	vectors := make(map[int]domain.Vector, len(provider))
	for dim, useProvider := range provider {
		if useProvider {
			vectors[dim] = r.embedder.EmbedOne(ctx, query, dim).Vector
		} else {
			vectors[dim] = r.embedder.Fallback(query, dim).Vector
		}
	}
	return vectors
}

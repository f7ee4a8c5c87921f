// Package embedding turns chunks and queries into vectors through the model
// gateway, with a deterministic local fallback per unit.
package embedding

import (
	"context"
	"math"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/domain"
	"github.com/spigell/resume-rag/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultDimension matches the Gemini text embedding models.
	DefaultDimension = 768
	// DefaultRatePerSecond keeps batch embedding under the free-tier quota.
	DefaultRatePerSecond = 5
	DefaultConcurrency   = 4
)

// Embedding is a vector and whether it came from the local fallback.
type Embedding struct {
	Vector   domain.Vector
	Fallback bool
}

// Options tunes a Provider.
type Options struct {
	// Dimension of fallback vectors when no provider vector is available.
	Dimension int
	// RatePerSecond caps provider calls. Zero or less means no cap.
	RatePerSecond float64
	// Concurrency caps in-flight provider calls.
	Concurrency int
}

// Provider embeds text. It never fails: a unit the provider cannot embed gets a fallback vector.
type Provider struct {
	embedder    ai.Embedder
	limiter     *rate.Limiter
	dimension   int
	concurrency int
	logger      *zap.Logger
}

// New creates a Provider. A nil embedder makes every vector a fallback.
func New(embedder ai.Embedder, opts Options, log *zap.Logger) *Provider {
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	return &Provider{
		embedder:    embedder,
		limiter:     rate.NewLimiter(limit, 1),
		dimension:   opts.Dimension,
		concurrency: opts.Concurrency,
		logger:      logger.WithFields(log),
	}
}

// Dimension is the size of fallback vectors when nothing else decides it.
func (p *Provider) Dimension() int { return p.dimension }

// EmbedChunks returns one embedding per text, in order. All vectors of a batch share one length:
// provider vectors whose length differs from the batch are replaced by fallbacks.
func (p *Provider) EmbedChunks(ctx context.Context, texts []string) []Embedding {
	out := make([]Embedding, len(texts))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			out[i] = p.embed(ctx, text)
			return nil
		})
	}
	_ = g.Wait()

	dim := p.dimension
	for _, e := range out {
		if !e.Fallback {
			dim = len(e.Vector)
			break
		}
	}

	fallbacks := 0
	for i := range out {
		if len(out[i].Vector) != dim {
			if !out[i].Fallback {
				p.logger.Warn("provider changed embedding dimension; using fallback",
					zap.Int("index", i),
					zap.Int("expected", dim),
					zap.Int("got", len(out[i].Vector)),
				)
			}
			out[i] = Embedding{Vector: Fallback(texts[i], dim), Fallback: true}
		}
		if out[i].Fallback {
			fallbacks++
		}
	}

	p.logger.Debug("embedded chunks",
		zap.Int("chunks", len(texts)),
		zap.Int("fallbacks", fallbacks),
		zap.Int("dimension", dim),
	)

	return out
}

// EmbedOne embeds a single text. When dim is positive the result is guaranteed to have that length.
func (p *Provider) EmbedOne(ctx context.Context, text string, dim int) Embedding {
	e := p.embed(ctx, text)
	if dim > 0 && len(e.Vector) != dim {
		return Embedding{Vector: Fallback(text, dim), Fallback: true}
	}
	return e
}

// Fallback embeds text locally with the given dimension, or the provider default.
func (p *Provider) Fallback(text string, dim int) Embedding {
	if dim <= 0 {
		dim = p.dimension
	}
	return Embedding{Vector: Fallback(text, dim), Fallback: true}
}

func (p *Provider) embed(ctx context.Context, text string) Embedding {
	if p.embedder == nil {
		return p.Fallback(text, 0)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Debug("embedding throttle interrupted; using fallback", zap.Error(err))
		return p.Fallback(text, 0)
	}

	values, err := p.embedder.EmbedContent(ctx, text)
	if err != nil || !usable(values) {
		p.logger.Debug("provider embedding failed; using fallback",
			zap.String(logger.FieldModel, p.embedder.Model()),
			zap.Error(err),
		)
		return p.Fallback(text, 0)
	}

	return Embedding{Vector: domain.Vector(values)}
}

func usable(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

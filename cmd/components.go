package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/ai/gateway"
	"github.com/spigell/resume-rag/internal/ai/gemini"
	"github.com/spigell/resume-rag/internal/analysis"
	"github.com/spigell/resume-rag/internal/answer"
	"github.com/spigell/resume-rag/internal/chunker"
	"github.com/spigell/resume-rag/internal/embedding"
	"github.com/spigell/resume-rag/internal/logger"
	"github.com/spigell/resume-rag/internal/matching"
	"github.com/spigell/resume-rag/internal/retriever"
	"github.com/spigell/resume-rag/internal/secrets"
	"github.com/spigell/resume-rag/internal/vectorstore"
)

const (
	providerGemini  = "gemini"
	providerOffline = "offline"
)

// newBackend returns the configured provider backend. A missing Gemini key degrades to offline mode.
func newBackend(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Backend, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case providerOffline:
		log.Warn("ai provider is offline; every step uses its local fallback")
		return ai.Offline{Reason: "offline provider configured"}, nil
	case "", providerGemini:
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		log.Warn("gemini api key is not available; running offline",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
		return ai.Offline{Reason: "gemini api key is not configured"}, nil
	}

	backendLogger := logger.WithCommonFields(log, providerGemini, "").With(
		zap.Int("ai_max_retries", cfg.Gemini.MaxRetries),
	)

	backend, err := gemini.New(ctx, apiKey, cfg.Gemini.MaxRetries, cfg.Gemini.MaxLogLength, backendLogger)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// newService wires every analysis component on top of backend.
func newService(config *Config, backend ai.Backend, log *zap.Logger) (*analysis.Service, error) {
	g := config.AI.Gemini

	generation := gateway.New(backend, gateway.Config{
		Capability: ai.CapabilityGeneration,
		Candidates: g.GenerationModels,
		Fallback:   g.GenerationFallback,
		Timeout:    g.RequestTimeout,
		ResetAfter: g.ResetAfterFailures,
	}, log)

	embeddings := gateway.New(backend, gateway.Config{
		Capability: ai.CapabilityEmbedding,
		Candidates: g.EmbeddingModels,
		Fallback:   g.EmbeddingFallback,
		Timeout:    g.RequestTimeout,
		ResetAfter: g.ResetAfterFailures,
	}, log)

	rag := config.RAG
	store := vectorstore.NewMemory()
	embedder := embedding.New(embeddings, embedding.Options{
		Dimension:     rag.EmbeddingDimension,
		RatePerSecond: rag.EmbeddingRate,
		Concurrency:   rag.EmbeddingConcurrency,
	}, log)

	return analysis.New(analysis.Deps{
		Chunker:   chunker.New(rag.ChunkSize),
		Embedder:  embedder,
		Store:     store,
		Retriever: retriever.New(store, embedder, rag.TopK, log),
		Answerer:  answer.New(generation, g.MaxLogLength, log),
		Scorer:    matching.New(generation, config.Matching.ExcerptLength, g.MaxLogLength, log),
		Logger:    log,
	}, rag.TopK)
}

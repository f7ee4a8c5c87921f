package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/domain"
)

func TestApplyDefaults(t *testing.T) {
	config := &Config{RAG: &RAGConfig{TopK: 7}}
	applyDefaults(config)

	if config.RAG.TopK != 7 {
		t.Fatalf("configured values must be kept, got top-k %d", config.RAG.TopK)
	}
	if config.RAG.ChunkSize != 800 || config.RAG.EmbeddingDimension != 768 {
		t.Fatalf("unexpected rag defaults %+v", config.RAG)
	}
	if config.RAG.EmbeddingRate != 5 || config.RAG.EmbeddingConcurrency != 4 {
		t.Fatalf("expected a bounded embedding throttle, got rate %v concurrency %d",
			config.RAG.EmbeddingRate, config.RAG.EmbeddingConcurrency)
	}
	if config.Matching.ExcerptLength != 3000 {
		t.Fatalf("unexpected excerpt length %d", config.Matching.ExcerptLength)
	}
	g := config.AI.Gemini
	if len(g.GenerationModels) == 0 || g.GenerationFallback == "" || len(g.EmbeddingModels) == 0 || g.EmbeddingFallback == "" {
		t.Fatalf("expected default model lists, got %+v", g)
	}

	g.GenerationModels[0] = "changed"
	if defaultGenerationModels[0] == "changed" {
		t.Fatalf("defaults must not be shared with the config")
	}
}

func TestApplyDefaultsKeepsDisabledThrottle(t *testing.T) {
	config := &Config{RAG: &RAGConfig{EmbeddingRate: -1, EmbeddingConcurrency: 2}}
	applyDefaults(config)

	if config.RAG.EmbeddingRate != -1 || config.RAG.EmbeddingConcurrency != 2 {
		t.Fatalf("configured throttle must be kept, got %+v", config.RAG)
	}
}

func TestGetConfigDefaultsRetries(t *testing.T) {
	config, err := getConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.AI.Gemini.MaxRetries != 2 {
		t.Fatalf("expected 2 retries by default, got %d", config.AI.Gemini.MaxRetries)
	}
}

func TestRedacted(t *testing.T) {
	config := &Config{AI: &AIConfig{Gemini: &GeminiConfig{APIKey: "secret"}}}

	got := redacted(config)
	if got.AI.Gemini.APIKey != "***" {
		t.Fatalf("expected api key to be masked, got %q", got.AI.Gemini.APIKey)
	}
	if config.AI.Gemini.APIKey != "secret" {
		t.Fatalf("original config must not change")
	}
}

func TestNewBackend(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "offline", provider: "offline"},
		{name: "gemini without key degrades", provider: "gemini"},
		{name: "default provider without key degrades", provider: ""},
		{name: "unsupported", provider: "openai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{AI: &AIConfig{Provider: tt.provider}}
			applyDefaults(config)

			backend, err := newBackend(context.Background(), config.AI, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := backend.(ai.Offline); !ok {
				t.Fatalf("expected offline backend, got %T", backend)
			}
		})
	}
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte("Skills: Go"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := readDocument(path)
	if err != nil || got != "Skills: Go" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}

	if _, err := readDocument(" "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := readDocument(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestOfflineServiceChatActions(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	svc, err := newService(config, ai.Offline{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := svc.Create("Skills: Python, AWS\n\nWork Experience: 5 years", "Requires Kubernetes, AWS, Python")
	if err := svc.Process(context.Background(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	var out bytes.Buffer
	question := func() (string, error) { return "What skills does the candidate have?", nil }

	if err := handleChatAction(ctx, PromptShowMatch, svc, a.ID, &out, zap.NewNop(), question); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"score": 67`) || !strings.Contains(out.String(), `"source": "heuristic"`) {
		t.Fatalf("unexpected match output:\n%s", out.String())
	}

	out.Reset()
	if err := handleChatAction(ctx, PromptAsk, svc, a.ID, &out, zap.NewNop(), question); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Skills: Python, AWS") {
		t.Fatalf("expected extractive answer quoting the skills section:\n%s", out.String())
	}

	out.Reset()
	if err := handleChatAction(ctx, PromptShowHistory, svc, a.ID, &out, zap.NewNop(), question); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "What skills does the candidate have?") {
		t.Fatalf("expected the question in history:\n%s", out.String())
	}

	if err := handleChatAction(ctx, PromptExit, svc, a.ID, &out, zap.NewNop(), question); !errors.Is(err, errExit) {
		t.Fatalf("expected errExit, got %v", err)
	}
	if err := handleChatAction(ctx, "dance", svc, a.ID, &out, zap.NewNop(), question); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestAskWithoutContextPrintsNoAnswer(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	svc, err := newService(config, ai.Offline{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := svc.Create("", "")
	if err := svc.Process(context.Background(), a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out bytes.Buffer
	question := func() (string, error) { return "What are the skills?", nil }
	if err := handleChatAction(context.Background(), PromptAsk, svc, a.ID, &out, zap.NewNop(), question); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"answer": "no answer available"`) ||
		!strings.Contains(out.String(), `"question": "What are the skills?"`) {
		t.Fatalf("expected an explicit unanswered entry:\n%s", out.String())
	}
}

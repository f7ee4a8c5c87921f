package embedding

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type stubEmbedder struct {
	mu    sync.Mutex
	fail  map[string]bool
	dims  map[string]int
	dim   int
	calls int
}

func (s *stubEmbedder) EmbedContent(_ context.Context, text string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[text] {
		return nil, errors.New("provider rejected text")
	}
	dim := s.dim
	if d, ok := s.dims[text]; ok {
		dim = d
	}
	vec := make([]float64, dim)
	vec[len(text)%dim] = 1
	return vec, nil
}

func (s *stubEmbedder) Model() string { return "stub-embedding" }

func TestEmbedChunksFallsBackPerUnit(t *testing.T) {
	stub := &stubEmbedder{dim: 8, fail: map[string]bool{"bad chunk": true}}
	p := New(stub, Options{Dimension: 16}, zap.NewNop())

	texts := []string{"first chunk", "bad chunk", "third chunk"}
	got := p.EmbedChunks(context.Background(), texts)

	if len(got) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(got))
	}
	if got[0].Fallback || got[2].Fallback {
		t.Fatalf("expected provider vectors for healthy chunks")
	}
	if !got[1].Fallback {
		t.Fatalf("expected fallback for rejected chunk")
	}
	for i, e := range got {
		if len(e.Vector) != 8 {
			t.Fatalf("embedding %d: expected batch dimension 8, got %d", i, len(e.Vector))
		}
	}
	if !slices.Equal(got[1].Vector, Fallback("bad chunk", 8)) {
		t.Fatalf("expected deterministic fallback vector")
	}
}

func TestEmbedChunksReplacesMismatchedDimensions(t *testing.T) {
	stub := &stubEmbedder{dim: 8, dims: map[string]int{"odd": 4}}
	p := New(stub, Options{}, zap.NewNop())

	got := p.EmbedChunks(context.Background(), []string{"even", "odd"})

	if got[0].Fallback || len(got[0].Vector) != 8 {
		t.Fatalf("expected provider vector of length 8 first, got %+v", got[0])
	}
	if !got[1].Fallback || len(got[1].Vector) != 8 {
		t.Fatalf("expected fallback of batch length for mismatched vector, got %+v", got[1])
	}
}

func TestEmbedChunksWithoutProviderUsesConfiguredDimension(t *testing.T) {
	p := New(nil, Options{Dimension: 32}, zap.NewNop())

	got := p.EmbedChunks(context.Background(), []string{"Go", "Kubernetes"})
	for _, e := range got {
		if !e.Fallback || len(e.Vector) != 32 {
			t.Fatalf("expected 32 dimensional fallback, got %+v", e)
		}
	}
}

func TestEmbedChunksEmpty(t *testing.T) {
	p := New(&stubEmbedder{dim: 4}, Options{}, zap.NewNop())
	if got := p.EmbedChunks(context.Background(), nil); len(got) != 0 {
		t.Fatalf("expected no embeddings, got %d", len(got))
	}
}

func TestEmbedOneHonoursDimension(t *testing.T) {
	stub := &stubEmbedder{dim: 8}
	p := New(stub, Options{}, zap.NewNop())

	if e := p.EmbedOne(context.Background(), "query", 8); e.Fallback || len(e.Vector) != 8 {
		t.Fatalf("expected provider vector, got %+v", e)
	}
	if e := p.EmbedOne(context.Background(), "query", 12); !e.Fallback || len(e.Vector) != 12 {
		t.Fatalf("expected fallback with requested dimension, got %+v", e)
	}
}

func TestEmbedOneFallsBackWhenContextCancelled(t *testing.T) {
	stub := &stubEmbedder{dim: 8}
	p := New(stub, Options{RatePerSecond: 0.001, Dimension: 8}, zap.NewNop())

	// Consume the only token so the next call has to wait.
	_ = p.EmbedOne(context.Background(), "warm up", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := p.EmbedOne(ctx, "query", 0)
	if !e.Fallback {
		t.Fatalf("expected fallback when throttle wait is interrupted")
	}
	if stub.calls != 1 {
		t.Fatalf("expected a single provider call, got %d", stub.calls)
	}
}

func TestFallbackIsDeterministicAndNormalised(t *testing.T) {
	t.Parallel()

	a := Fallback("Senior Go engineer with Kubernetes", 64)
	b := Fallback("Senior Go engineer with Kubernetes", 64)
	if !slices.Equal(a, b) {
		t.Fatalf("expected identical vectors for identical text")
	}

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Fatalf("expected unit vector, got squared norm %v", norm)
	}
}

func TestFallbackSharedWordsAreSimilar(t *testing.T) {
	t.Parallel()

	dot := func(a, b []float64) float64 {
		var s float64
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}

	query := Fallback("kubernetes experience", 256)
	related := Fallback("Five years of Kubernetes experience in production", 256)
	unrelated := Fallback(strings.Repeat("banana ", 3), 256)

	if dot(query, related) <= dot(query, unrelated) {
		t.Fatalf("expected related text to score higher than unrelated text")
	}
}

func TestFallbackWithoutTokensIsZero(t *testing.T) {
	t.Parallel()

	for _, v := range Fallback("--- !!!", 8) {
		if v != 0 {
			t.Fatalf("expected zero vector")
		}
	}
}

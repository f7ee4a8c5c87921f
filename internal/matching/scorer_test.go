package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubGenerator) Model() string { return "stub-model" }

const (
	role      = "Requires Kubernetes, AWS, Python"
	candidate = "5 years Python and AWS"
)

func TestScoreUsesProviderAssessment(t *testing.T) {
	gen := &stubGenerator{reply: wellFormed}
	s := New(gen, 0, 0, zap.NewNop())

	got := s.Score(context.Background(), candidate, role)

	if got.Source != domain.MatchFromProvider || got.Model != "stub-model" {
		t.Fatalf("expected provider result, got %+v", got)
	}
	if got.Score != 82 || len(got.Strengths) != 2 || got.Summary != "Good fit for the platform team." {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.Narrative["gaps"] != "- No AWS experience" {
		t.Fatalf("expected raw narrative sections, got %#v", got.Narrative)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, role) || !strings.Contains(prompt, candidate) {
		t.Fatalf("prompt must carry both documents:\n%s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unresolved placeholders:\n%s", prompt)
	}
}

func TestScoreTruncatesExcerpts(t *testing.T) {
	gen := &stubGenerator{reply: wellFormed}
	s := New(gen, 10, 0, zap.NewNop())

	s.Score(context.Background(), strings.Repeat("r", 50), strings.Repeat("j", 50))

	prompt := gen.prompts[0]
	if strings.Contains(prompt, strings.Repeat("r", 11)) || !strings.Contains(prompt, strings.Repeat("r", 10)) {
		t.Fatalf("resume excerpt must be cut to 10 runes")
	}
	if strings.Contains(prompt, strings.Repeat("j", 11)) {
		t.Fatalf("job excerpt must be cut to 10 runes")
	}
}

func TestScoreFallsBackToHeuristic(t *testing.T) {
	tests := []struct {
		name string
		gen  ai.Generator
	}{
		{name: "provider unavailable", gen: &stubGenerator{err: &ai.ProviderUnavailableError{Capability: ai.CapabilityGeneration, Tried: []string{"m1"}}}},
		{name: "unparseable reply", gen: &stubGenerator{reply: "Looks like a decent candidate."}},
		{name: "no generator", gen: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			s := New(tt.gen, 0, 0, zap.New(core))

			got := s.Score(context.Background(), candidate, role)

			if got.Source != domain.MatchFromHeuristic {
				t.Fatalf("expected heuristic result, got %+v", got)
			}
			if got.Score != 67 {
				t.Fatalf("expected heuristic score 67, got %d", got.Score)
			}
			if logs.FilterMessage("match assessment failed; using skill-overlap heuristic").Len() != 1 {
				t.Fatalf("expected a fallback warning, got %v", logs.All())
			}
		})
	}
}

func TestAssessReportsFailureKinds(t *testing.T) {
	s := New(&stubGenerator{reply: "no format at all"}, 0, 0, nil)
	if _, err := s.Assess(context.Background(), candidate, role); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}

	unavailable := &ai.ProviderUnavailableError{Capability: ai.CapabilityGeneration}
	s = New(&stubGenerator{err: unavailable}, 0, 0, nil)
	if _, err := s.Assess(context.Background(), candidate, role); !errors.Is(err, ai.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

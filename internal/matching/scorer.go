// Package matching assesses how well a resume fits a job description.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/domain"
	"github.com/spigell/resume-rag/internal/logger"
	"github.com/spigell/resume-rag/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	DefaultExcerptLength = 3000
	defaultMaxLogLength  = 200
)

// ErrUnparseable is returned when the provider reply does not follow the narrative format.
var ErrUnparseable = errors.New("unparseable match assessment")

// Scorer produces match results with the generator and falls back to Heuristic.
type Scorer struct {
	generator ai.Generator
	excerpt   int
	maxLogLen int
	logger    *zap.Logger
}

// New creates a Scorer. Documents are cut to excerptLength runes before prompting.
func New(generator ai.Generator, excerptLength, maxLogLength int, log *zap.Logger) *Scorer {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{
		generator: generator,
		excerpt:   excerptLength,
		maxLogLen: maxLogLength,
		logger:    logger.WithFields(log),
	}
}

// Score always returns a fully populated result.
func (s *Scorer) Score(ctx context.Context, resume, job string) domain.MatchResult {
	result, err := s.Assess(ctx, resume, job)
	if err == nil {
		return result
	}

	s.logger.Warn("match assessment failed; using skill-overlap heuristic", zap.Error(err))
	return Heuristic(resume, job)
}

// Assess asks the generator for a narrative assessment and parses it.
// Provider failures are returned as is; a malformed reply wraps ErrUnparseable.
func (s *Scorer) Assess(ctx context.Context, resume, job string) (domain.MatchResult, error) {
	if s.generator == nil {
		return domain.MatchResult{}, fmt.Errorf("%w: no generator configured", ai.ErrProviderUnavailable)
	}

	prompt := s.buildPrompt(resume, job)
	s.logger.Debug("match assessment request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	reply, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("generate match assessment: %w", err)
	}

	s.logger.Debug("match assessment response",
		zap.String("response_preview", utils.TruncateForLog(reply, s.maxLogLen)),
	)

	parsed := Parse(reply)
	if parsed.Outcome == Unparseable {
		return domain.MatchResult{}, fmt.Errorf("%w: %s", ErrUnparseable, parsed.Reason)
	}

	n := parsed.Narrative
	return domain.MatchResult{
		Score:     n.Score,
		Strengths: orEmpty(n.Strengths),
		Gaps:      orEmpty(n.Gaps),
		Insights:  orEmpty(n.Insights),
		Summary:   n.Summary,
		Narrative: parsed.Sections,
		Source:    domain.MatchFromProvider,
		Model:     s.generator.Model(),
	}, nil
}

func (s *Scorer) buildPrompt(resume, job string) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{JOB}}", utils.Prefix(strings.TrimSpace(job), s.excerpt))
	return strings.ReplaceAll(prompt, "{{RESUME}}", utils.Prefix(strings.TrimSpace(resume), s.excerpt))
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

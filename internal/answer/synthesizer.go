// Package answer produces grounded answers to questions from retrieved document context.
package answer

import (
	"context"
	"fmt"
	"strconv"
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

const defaultMaxLogLength = 200

// Answer is the text returned to the user and how it was produced.
type Answer struct {
	Text      string
	Generated bool
	Model     string
}

// Synthesizer answers questions with the generator and falls back to extraction from the context.
type Synthesizer struct {
	generator ai.Generator
	maxLogLen int
	logger    *zap.Logger
}

// New creates a Synthesizer. A nil generator always uses the extractive fallback.
func New(generator ai.Generator, maxLogLength int, log *zap.Logger) *Synthesizer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Synthesizer{generator: generator, maxLogLen: maxLogLength, logger: logger.WithFields(log)}
}

// Answer answers question from contexts only. It fails with domain.ErrNoContextAvailable
// when every context is blank, and never fails because of the provider.
func (s *Synthesizer) Answer(ctx context.Context, question string, contexts []string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	usable := make([]string, 0, len(contexts))
	for _, c := range contexts {
		if c = strings.TrimSpace(c); c != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return Answer{}, domain.ErrNoContextAvailable
	}

	if s.generator != nil {
		prompt := buildPrompt(question, usable)

		s.logger.Debug("answer generation request",
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
		)

		text, err := s.generator.GenerateContent(ctx, prompt)
		text = strings.TrimSpace(text)
		if err == nil && text != "" {
			return Answer{Text: text, Generated: true, Model: s.generator.Model()}, nil
		}

		s.logger.Warn("answer generation failed; using extractive fallback", zap.Error(err))
	}

	return Answer{Text: Extract(question, strings.Join(usable, "\n\n"))}, nil
}

func buildPrompt(question string, contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[" + strconv.Itoa(i+1) + "] ")
		b.WriteString(c)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{CONTEXT}}", b.String())
	return strings.ReplaceAll(prompt, "{{QUESTION}}", question)
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-rag/internal/logger"
	"github.com/spigell/resume-rag/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultMaxRetries is the number of retries after the first attempt of a temporary failure.
const DefaultMaxRetries = 2

const (
	providerName        = "gemini"
	defaultMaxLogLength = 200
	baseBackoff         = 500 * time.Millisecond
	maxRetryWait        = 20 * time.Second
)

// wait is swapped in tests to avoid real sleeps.
var wait = utils.WaitFor

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)

type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Backend talks to the Gemini API. It implements ai.Backend.
type Backend struct {
	models     models
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// New creates a Backend configured for the Gemini API.
// maxRetries counts retries after the first attempt; zero disables them.
func New(ctx context.Context, apiKey string, maxRetries, maxLogLength int, log *zap.Logger) (*Backend, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newBackend(client.Models, maxRetries, maxLogLength, log), nil
}

func newBackend(m models, maxRetries, maxLogLength int, log *zap.Logger) *Backend {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Backend{
		models:     m,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     logger.WithCommonFields(log, providerName, ""),
	}
}

func (b *Backend) Name() string { return providerName }

// Generate sends the prompt to the model and returns the joined text of the response.
func (b *Backend) Generate(ctx context.Context, model, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	log := b.logger.With(zap.String(logger.FieldModel, model))
	log.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, b.maxLogLen)),
	)

	var output string
	err := b.withRetry(ctx, log, func() error {
		resp, err := b.models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		output, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", err
	}

	log.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, b.maxLogLen)),
	)

	return output, nil
}

// Embed returns the embedding of text produced by the model.
func (b *Backend) Embed(ctx context.Context, model, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	log := b.logger.With(zap.String(logger.FieldModel, model))

	var values []float64
	err := b.withRetry(ctx, log, func() error {
		resp, err := b.models.EmbedContent(ctx, model, genai.Text(text), nil)
		if err != nil {
			return fmt.Errorf("embed content: %w", err)
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
			return errors.New("gemini api returned empty embedding")
		}
		raw := resp.Embeddings[0].Values
		values = make([]float64, len(raw))
		for i, v := range raw {
			values[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

func (b *Backend) withRetry(ctx context.Context, log *zap.Logger, call func() error) error {
	var err error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		err = call()
		if err == nil {
			return nil
		}

		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt == b.maxRetries {
			return err
		}

		log.Debug("retrying gemini request",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if werr := wait(ctx, delay); werr != nil {
			return fmt.Errorf("%w (retry interrupted: %v)", err, werr)
		}
	}

	return err
}

// retryDelay reports whether err is temporary and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
	default:
		return 0, false
	}

	backoff := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt)))

	if m := retryDelayPattern.FindStringSubmatch(apiErr.Message); m != nil {
		seconds, perr := strconv.ParseFloat(m[1], 64)
		if perr == nil {
			announced := time.Duration(seconds * float64(time.Second))
			if announced > maxRetryWait {
				return 0, false
			}
			if announced > backoff {
				backoff = announced
			}
		}
	}

	return backoff, true
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Package gateway resolves a working model from an ordered preference list and
// routes provider calls through it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spigell/resume-rag/internal/ai"
	"github.com/spigell/resume-rag/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultResetAfter  = 3
	defaultUnavailable = time.Minute
	probeText          = "ping"
)

// Config describes the models a Gateway may use for one capability.
type Config struct {
	Capability ai.Capability
	// Candidates are tried in order. The first one answering a probe is cached.
	Candidates []string
	// Fallback is tried after every candidate failed.
	Fallback string
	// Timeout bounds every provider call, probes included.
	Timeout time.Duration
	// ResetAfter drops the cached model after that many consecutive call failures.
	// A negative value disables the reset.
	ResetAfter int
	// UnavailableFor is how long a failed resolution is remembered before probing again.
	UnavailableFor time.Duration
}

// Gateway caches the first model that answers and sends calls to it.
// It implements ai.Generator and ai.Embedder.
type Gateway struct {
	backend ai.Backend
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	resolveMu sync.Mutex
	cached    atomic.Pointer[string]
	failures  atomic.Int32

	unavailableMu    sync.Mutex
	unavailableUntil time.Time
	unavailableErr   error
}

// New creates a Gateway over backend.
func New(backend ai.Backend, cfg Config, log *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ResetAfter == 0 {
		cfg.ResetAfter = defaultResetAfter
	}
	if cfg.UnavailableFor <= 0 {
		cfg.UnavailableFor = defaultUnavailable
	}

	log = logger.WithCommonFields(log, backend.Name(), "")
	log = log.With(zap.String(logger.FieldCapability, string(cfg.Capability)))

	return &Gateway{
		backend: backend,
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
	}
}

// Model returns the cached model, or an empty string when none is resolved yet.
func (g *Gateway) Model() string {
	if m := g.cached.Load(); m != nil {
		return *m
	}
	return ""
}

// Reset forgets the cached model. The next call resolves again.
func (g *Gateway) Reset() {
	g.cached.Store(nil)
	g.failures.Store(0)

	g.unavailableMu.Lock()
	g.unavailableUntil = time.Time{}
	g.unavailableErr = nil
	g.unavailableMu.Unlock()
}

// Resolve returns the cached model or probes the preference list for one.
// It fails with an error matching ai.ErrProviderUnavailable when no model answers.
func (g *Gateway) Resolve(ctx context.Context) (string, error) {
	if m := g.cached.Load(); m != nil {
		return *m, nil
	}

	g.resolveMu.Lock()
	defer g.resolveMu.Unlock()

	if m := g.cached.Load(); m != nil {
		return *m, nil
	}

	if err := g.recentlyUnavailable(); err != nil {
		return "", err
	}

	tried := make([]string, 0, len(g.cfg.Candidates)+1)
	var lastErr error

	for _, model := range g.models() {
		tried = append(tried, model)

		if err := g.probe(ctx, model); err != nil {
			g.logger.Debug("model probe failed", zap.String(logger.FieldModel, model), zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		g.cached.CompareAndSwap(nil, &model)
		g.failures.Store(0)

		resolved := g.Model()
		g.logger.Info("model resolved", zap.String(logger.FieldModel, resolved), zap.Int("probes", len(tried)))
		return resolved, nil
	}

	err := &ai.ProviderUnavailableError{Capability: g.cfg.Capability, Tried: tried, Err: lastErr}
	g.markUnavailable(err)
	g.logger.Warn("no model available", zap.Strings("tried", tried), zap.Error(lastErr))

	return "", err
}

// GenerateContent generates text with the resolved model.
func (g *Gateway) GenerateContent(ctx context.Context, prompt string) (string, error) {
	model, err := g.Resolve(ctx)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	out, err := g.backend.Generate(callCtx, model, prompt)
	if err != nil {
		g.recordFailure(model, err)
		return "", fmt.Errorf("%s with %s: %w", g.cfg.Capability, model, err)
	}

	g.failures.Store(0)
	return out, nil
}

// EmbedContent embeds text with the resolved model.
func (g *Gateway) EmbedContent(ctx context.Context, text string) ([]float64, error) {
	model, err := g.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	values, err := g.backend.Embed(callCtx, model, text)
	if err != nil {
		g.recordFailure(model, err)
		return nil, fmt.Errorf("%s with %s: %w", g.cfg.Capability, model, err)
	}

	g.failures.Store(0)
	return values, nil
}

func (g *Gateway) models() []string {
	models := make([]string, 0, len(g.cfg.Candidates)+1)
	for _, m := range g.cfg.Candidates {
		if m = strings.TrimSpace(m); m != "" && !slices.Contains(models, m) {
			models = append(models, m)
		}
	}
	if fb := strings.TrimSpace(g.cfg.Fallback); fb != "" && !slices.Contains(models, fb) {
		models = append(models, fb)
	}
	return models
}

func (g *Gateway) probe(ctx context.Context, model string) error {
	probeCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	switch g.cfg.Capability {
	case ai.CapabilityEmbedding:
		_, err := g.backend.Embed(probeCtx, model, probeText)
		return err
	default:
		_, err := g.backend.Generate(probeCtx, model, probeText)
		return err
	}
}

func (g *Gateway) recordFailure(model string, err error) {
	n := g.failures.Add(1)
	if g.cfg.ResetAfter < 0 || int(n) < g.cfg.ResetAfter {
		return
	}

	current := g.cached.Load()
	if current == nil || *current != model {
		return
	}

	if g.cached.CompareAndSwap(current, nil) {
		g.failures.Store(0)
		g.logger.Warn("dropping cached model after consecutive failures",
			zap.String(logger.FieldModel, model),
			zap.Int32("failures", n),
			zap.Error(err),
		)
	}
}

func (g *Gateway) recentlyUnavailable() error {
	g.unavailableMu.Lock()
	defer g.unavailableMu.Unlock()

	if g.unavailableErr != nil && g.now().Before(g.unavailableUntil) {
		return g.unavailableErr
	}
	return nil
}

func (g *Gateway) markUnavailable(err error) {
	// A cancelled caller says nothing about the provider.
	if errors.Is(err, context.Canceled) {
		return
	}

	g.unavailableMu.Lock()
	defer g.unavailableMu.Unlock()

	g.unavailableErr = err
	g.unavailableUntil = g.now().Add(g.cfg.UnavailableFor)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Backend is a provider integration able to generate text and embeddings with a named model.
type Backend interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// Generator produces text for a prompt using whatever model is currently resolved.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Embedder produces an embedding for a text using whatever model is currently resolved.
type Embedder interface {
	EmbedContent(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Capability is the kind of provider call a model is resolved for.
type Capability string

const (
	CapabilityGeneration Capability = "generation"
	CapabilityEmbedding  Capability = "embedding"
)

// ErrProviderUnavailable is matched by errors returned when no candidate model responds.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// ProviderUnavailableError reports the models that were tried and the last failure.
type ProviderUnavailableError struct {
	Capability Capability
	Tried      []string
	Err        error
}

func (e *ProviderUnavailableError) Error() string {
	msg := fmt.Sprintf("no %s model available (tried %s)", e.Capability, strings.Join(e.Tried, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

func (e *ProviderUnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }

// Offline is a Backend that refuses every call. It makes every component take its local fallback.
type Offline struct {
	Reason string
}

func (o Offline) Name() string { return "offline" }

func (o Offline) Generate(context.Context, string, string) (string, error) {
	return "", o.err()
}

func (o Offline) Embed(context.Context, string, string) ([]float64, error) {
	return nil, o.err()
}

func (o Offline) err() error {
	if o.Reason == "" {
		return errors.New("ai provider is disabled")
	}
	return fmt.Errorf("ai provider is disabled: %s", o.Reason)
}

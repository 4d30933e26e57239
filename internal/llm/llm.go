// Package llm provides text-generation backends for follow-up questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned by a backend that cannot serve requests.
var ErrUnavailable = errors.New("text generation unavailable")

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend and model for logs and the status document.
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	Temperature   float32
	MaxTokens     int
}

// New builds the configured backend. An unconfigured provider yields Disabled.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return Disabled{Reason: "GEMINI_API_KEY not set"}, nil
		}
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Disabled{Reason: "OPENAI_API_KEY not set"}, nil
		}
		return NewOpenAI(cfg), nil
	case ProviderNone, "":
		return Disabled{Reason: "disabled by configuration"}, nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// Disabled always fails, which routes every follow-up to its fallback.
type Disabled struct {
	Reason string
}

var _ Generator = Disabled{}

// Generate implements Generator.
func (d Disabled) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}

// Name implements Generator.
func (Disabled) Name() string {
	return ProviderNone
}

// IsEnabled reports whether g can produce model text.
func IsEnabled(g Generator) bool {
	_, disabled := g.(Disabled)
	return g != nil && !disabled
}

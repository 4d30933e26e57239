// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port             string        `env:"PORT" envDefault:"8080"`
	GRPCPort         string        `env:"GRPC_PORT" envDefault:"9090"`
	FrontendURL      string        `env:"FRONTEND_URL"`
	DBPath           string        `env:"DB_PATH" envDefault:"./data/mindprobe.db"`
	OutcomeRetention time.Duration `env:"OUTCOME_RETENTION" envDefault:"720h"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint     string        `env:"OTEL_ENDPOINT"`

	Generator GeneratorConfig
	Reveal    RevealConfig
	WebSocket WebSocketConfig
}

// GeneratorConfig selects the text-generation backend.
type GeneratorConfig struct {
	Provider      string        `env:"GENERATOR_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Timeout       time.Duration `env:"GENERATION_TIMEOUT" envDefault:"20s"`
}

// RevealConfig holds the pauses of the reveal sequence.
type RevealConfig struct {
	Transition  time.Duration `env:"REVEAL_TRANSITION_PAUSE" envDefault:"1500ms"`
	Analyzing   time.Duration `env:"REVEAL_ANALYZING_PAUSE" envDefault:"1s"`
	PreReveal   time.Duration `env:"REVEAL_PRE_REVEAL_PAUSE" envDefault:"2s"`
	Personality time.Duration `env:"REVEAL_PERSONALITY_PAUSE" envDefault:"1500ms"`
	MindReading time.Duration `env:"REVEAL_MIND_READING_PAUSE" envDefault:"3s"`
	Secret      time.Duration `env:"REVEAL_SECRET_PAUSE" envDefault:"2s"`
	Choice      time.Duration `env:"REVEAL_CHOICE_PAUSE" envDefault:"2s"`
	Finale      time.Duration `env:"REVEAL_FINALE_PAUSE" envDefault:"2s"`
}

// WebSocketConfig bounds inbound traffic on /ws.
type WebSocketConfig struct {
	RateLimitRPS    float64 `env:"WS_RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst  int     `env:"WS_RATE_LIMIT_BURST" envDefault:"5"`
	MaxMessageBytes int64   `env:"WS_MAX_MESSAGE_BYTES" envDefault:"8192"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return validated(cfg)
}

// LoadFrom reads configuration from the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return validated(cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}
	switch strings.ToLower(c.Generator.Provider) {
	case "gemini", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("GENERATOR_PROVIDER must be gemini, openai or none, got %q", c.Generator.Provider))
	}
	if c.OutcomeRetention < 0 {
		errs = append(errs, errors.New("OUTCOME_RETENTION cannot be negative"))
	}
	if c.Generator.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be > 0"))
	}
	if c.WebSocket.RateLimitRPS <= 0 {
		errs = append(errs, errors.New("WS_RATE_LIMIT_RPS must be > 0"))
	}
	if c.WebSocket.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("WS_RATE_LIMIT_BURST must be > 0"))
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("WS_MAX_MESSAGE_BYTES must be > 0"))
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// Disabled is the value that switches off DB_PATH and GRPC_PORT.
const Disabled = "off"

// LedgerEnabled reports whether session outcomes are persisted.
func (c *Config) LedgerEnabled() bool {
	return c.DBPath != "" && c.DBPath != Disabled
}

// GRPCEnabled reports whether the gRPC health server runs.
func (c *Config) GRPCEnabled() bool {
	return c.GRPCPort != "" && c.GRPCPort != Disabled
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

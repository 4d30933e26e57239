// Package followup generates the follow-up questions asked after each turn.
// Every returned question contains the required keyword: model output that
// fails, times out, or omits the keyword is replaced by a local fallback.
package followup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ashureev/mindprobe/internal/followup"

// Fallback reasons.
const (
	ReasonUnavailable    = "unavailable"
	ReasonError          = "error"
	ReasonTimeout        = "timeout"
	ReasonEmpty          = "empty"
	ReasonMissingKeyword = "missing_keyword"
)

// Generation statuses reported to the Recorder.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// TextGenerator is the external text-generation capability. One call, one attempt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder receives generation measurements.
type Recorder interface {
	ObserveGeneration(status string, d time.Duration)
	FollowUpGenerated(style domain.TriggerStyle, fallback bool)
}

// Config tunes a Generator. Zero values are usable.
type Config struct {
	// Timeout bounds a single generation call. Zero disables it.
	Timeout  time.Duration
	Picker   domain.Picker
	Recorder Recorder
	Logger   *slog.Logger
}

// Result is a generated follow-up and how it was produced.
type Result struct {
	Text     string
	Keyword  string
	Style    domain.TriggerStyle
	Emotion  Emotion
	Fallback bool
	Reason   string
}

// Generator builds follow-up questions for one process; it is safe for
// concurrent use when its TextGenerator and Picker are.
type Generator struct {
	llm      TextGenerator
	tables   *content.Tables
	timeout  time.Duration
	picker   domain.Picker
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a Generator. llm may be nil, in which case every question is a fallback.
func New(llm TextGenerator, tables *content.Tables, cfg Config) *Generator {
	g := &Generator{
		llm:      llm,
		tables:   tables,
		timeout:  cfg.Timeout,
		picker:   cfg.Picker,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(tracerName),
	}
	if g.picker == nil {
		g.picker = domain.RandomPicker{}
	}
	if g.recorder == nil {
		g.recorder = nopRecorder{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// FollowUp generates the question for the turn at turnIndex (zero-based).
// It never fails; failures are absorbed into the fallback.
func (g *Generator) FollowUp(ctx context.Context, history []domain.Turn, userText string, turnIndex int) Result {
	keyword := RequiredKeyword(ExtractKeywords(userText, g.tables), g.tables)
	style := StyleForTurn(turnIndex)
	emotion := DetectEmotion(userText, g.tables)

	ctx, span := g.tracer.Start(ctx, "followup.generate", trace.WithAttributes(
		attribute.String("followup.style", string(style)),
		attribute.Int("followup.turn", turnIndex),
		attribute.String("followup.emotion", emotion.Name),
	))
	defer span.End()

	res := Result{Keyword: keyword, Style: style, Emotion: emotion}

	text, reason := g.generate(ctx, PromptInput{
		History:   history,
		UserText:  userText,
		TurnIndex: turnIndex,
		Keyword:   keyword,
		Style:     style,
		Emotion:   emotion,
		Example:   g.sample(g.tables.Triggers[style], keyword),
		Mirror:    g.sample(g.tables.Mirrors[emotion.Intensity], keyword),
	})
	if reason != "" {
		text = g.tables.Fallback(style, keyword)
		res.Fallback = true
		res.Reason = reason
		span.SetStatus(codes.Error, reason)
		g.logger.Warn("Using fallback follow-up", "style", style, "reason", reason, "turn", turnIndex)
	}

	res.Text = trimQuotes(text)
	span.SetAttributes(attribute.Bool("followup.fallback", res.Fallback))
	g.recorder.FollowUpGenerated(style, res.Fallback)
	return res
}

// generate calls the model and validates its answer. A non-empty reason
// means the answer must be discarded.
func (g *Generator) generate(ctx context.Context, in PromptInput) (string, string) {
	if g.llm == nil {
		return "", ReasonUnavailable
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.llm.Generate(ctx, BuildPrompt(in))
	elapsed := time.Since(start)

	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.recorder.ObserveGeneration(StatusTimeout, elapsed)
			return "", ReasonTimeout
		}
		g.recorder.ObserveGeneration(StatusError, elapsed)
		g.logger.Debug("Generation failed", "error", err)
		return "", ReasonError
	}
	g.recorder.ObserveGeneration(StatusOK, elapsed)

	text := trimQuotes(raw)
	switch {
	case text == "":
		return "", ReasonEmpty
	case !ContainsFold(text, in.Keyword):
		return "", ReasonMissingKeyword
	}
	return text, ""
}

func (g *Generator) sample(options []string, keyword string) string {
	if len(options) == 0 {
		return ""
	}
	return content.Fill(options[g.picker.IntN(len(options))], keyword)
}

func trimQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\"'`"))
}

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(string, time.Duration)     {}
func (nopRecorder) FollowUpGenerated(domain.TriggerStyle, bool) {}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

var errNoChoices = errors.New("completion returned no choices")

// chatCompleter is the slice of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI generates text with an OpenAI-compatible chat completions API.
type OpenAI struct {
	client      chatCompleter
	model       string
	temperature float32
	maxTokens   int
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI backend. OpenAIBaseURL points it at a compatible server.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(clientCfg), cfg)
}

func newOpenAI(client chatCompleter, cfg Config) *OpenAI {
	model := cfg.OpenAIModel
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: client, model: model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name implements Generator.
func (o *OpenAI) Name() string {
	return ProviderOpenAI + ":" + o.model
}

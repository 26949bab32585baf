package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

// openaiGenerator adapts any chat-completions compatible endpoint.
type openaiGenerator struct {
	name   string
	cfg    config.OpenAIConfig
	client *openai.Client
	usage  *usageTracker
	logger *slog.Logger
}

func newOpenAI(name string, cfg config.OpenAIConfig, limits config.AIUsageLimits, logger *slog.Logger) *openaiGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openaiGenerator{
		name:   name,
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		usage:  newUsageTracker(limits),
		logger: logger,
	}
}

func (o *openaiGenerator) Name() string { return o.name }

func (o *openaiGenerator) Usage() UsageSnapshot { return o.usage.snapshot(string(ProviderOpenAI)) }

func (o *openaiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if !o.usage.allow() {
		return "", ErrDailyLimit
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.cfg.Temperature
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	o.logger.Debug("openai request",
		slog.String("model", o.cfg.Model),
		slog.Int("prompt_length", len(req.Prompt)))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.HTTPStatusCode {
			case 429:
				return "", ErrRateLimited
			case 401, 403:
				return "", ErrInvalidKey
			}
		}
		return "", fmt.Errorf("ai: openai request: %w", err)
	}

	o.usage.record(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

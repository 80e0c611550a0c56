package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var openRouterTracer = otel.Tracer("rama.llm.openrouter")

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterBackend struct {
	client *openai.Client
	model  string
}

func NewOpenRouterBackend(apiKey, baseURL, model string) (*OpenRouterBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	if model == "" {
		model = "openai/gpt-4o-mini"
		slog.Warn("OPENROUTER_MODEL not set, defaulting to openai/gpt-4o-mini")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing OpenRouter backend", "model", model, "base_url", cfg.BaseURL)
	return &OpenRouterBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate implements the Backend interface
func (o *OpenRouterBackend) Generate(ctx context.Context, system, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := openRouterTracer.Start(ctx, "OpenRouterBackend.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenRouter API call failed", "error", err)
		return "", classifyOpenAIError(fmt.Errorf("OpenRouter API call failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenRouter returned no choices")
		return "", NewRetryableError(fmt.Errorf("OpenRouter returned no choices"))
	}
	slog.Debug("Received response from OpenRouter", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenRouterBackend) Ping(ctx context.Context) error {
	_, err := o.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("openrouter ping failed: %w", err)
	}
	return nil
}

func (o *OpenRouterBackend) ID() string   { return "openrouter" }
func (o *OpenRouterBackend) Remote() bool { return true }

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return NewRetryableError(err)
		}
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return NewNonRetryableError(err)
		}
	}
	return err
}

var _ Backend = (*OpenRouterBackend)(nil)

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

var geminiTracer = otel.Tracer("rama.llm.gemini")

type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if model == "" {
		model = "gemini-2.0-flash"
		slog.Warn("GEMINI_MODEL not set, defaulting to gemini-2.0-flash")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	slog.Info("Initializing Gemini backend", "model", model)
	return &GeminiBackend{client: client, model: model}, nil
}

// Generate implements the Backend interface
func (g *GeminiBackend) Generate(ctx context.Context, system, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := geminiTracer.Start(ctx, "GeminiBackend.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if params.Temperature != nil {
		config.Temperature = params.Temperature
	}
	if params.TopP != nil {
		config.TopP = params.TopP
	}
	if params.TopK != nil {
		topK := float32(*params.TopK)
		config.TopK = &topK
	}
	if params.MaxTokens != nil {
		config.MaxOutputTokens = int32(*params.MaxTokens)
	}
	if len(params.Stop) > 0 {
		config.StopSequences = params.Stop
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Gemini API call failed", "error", err)
		return "", classifyGenaiError(fmt.Errorf("gemini API call failed: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", NewRetryableError(fmt.Errorf("gemini returned an empty completion"))
	}
	slog.Debug("Received response from Gemini")
	return text, nil
}

func (g *GeminiBackend) Ping(ctx context.Context) error {
	_, err := g.client.Models.CountTokens(ctx, g.model, genai.Text("ping"), nil)
	if err != nil {
		return fmt.Errorf("gemini ping failed: %w", err)
	}
	return nil
}

func (g *GeminiBackend) ID() string   { return "gemini" }
func (g *GeminiBackend) Remote() bool { return true }

// classifyGenaiError marks 4xx API errors (other than 408/429) non-retryable
// so the gateway falls through to the next backend without burning retries.
func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.Code) {
			return NewRetryableError(err)
		}
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return NewNonRetryableError(err)
		}
	}
	return err
}

var _ Backend = (*GeminiBackend)(nil)

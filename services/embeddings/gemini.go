// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiEmbedModel = "gemini-embedding-001"

// GeminiProvider embeds text through Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates the primary remote embedding provider.
func NewGeminiProvider(apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultGeminiEmbedModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := g.client.Models.EmbedContent(ctx,
		g.model,
		contents,
		&genai.EmbedContentConfig{TaskType: taskType},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts",
			len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (g *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return g.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (g *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{text}, "FACT_VERIFICATION")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiProvider) Name() string {
	return fmt.Sprintf("gemini:%s", g.model)
}

// Dimensions returns 768; gemini-embedding-001 produces 768-dimensional vectors.
func (g *GeminiProvider) Dimensions() int {
	return 768
}

var _ Provider = (*GeminiProvider)(nil)

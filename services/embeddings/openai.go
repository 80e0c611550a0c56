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

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIEmbedModel = "text-embedding-3-small"

// OpenAIProvider embeds text through an OpenAI-compatible endpoint. Pointing
// baseURL at OpenRouter gives the secondary remote provider of the chain.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	name       string
	dimensions int
}

// NewOpenAIProvider creates a provider against api.openai.com or any
// compatible baseURL (e.g. https://openrouter.ai/api/v1).
func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai-compatible API key is required")
	}
	if model == "" {
		model = defaultOpenAIEmbedModel
	}

	cfg := openai.DefaultConfig(apiKey)
	name := fmt.Sprintf("openai:%s", model)
	if baseURL != "" {
		cfg.BaseURL = baseURL
		name = fmt.Sprintf("openrouter:%s", model)
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		name:       name,
		dimensions: 1536,
	}, nil
}

func (o *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding endpoint returned %d vectors for %d texts",
			len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding endpoint returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (o *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) Name() string {
	return o.name
}

func (o *OpenAIProvider) Dimensions() int {
	return o.dimensions
}

var _ Provider = (*OpenAIProvider)(nil)

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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rama.embeddings")

// BatchResult is an embedded batch plus the provider that produced it.
// Vectors from different providers are never mixed within one result.
type BatchResult struct {
	Vectors  [][]float32
	Provider string
	Degraded bool
}

// QueryResult is a single embedded query plus its provider.
type QueryResult struct {
	Vector   []float32
	Provider string
	Degraded bool
}

// Chain tries providers in preference order and short-circuits on the first
// success. The final provider should be LocalProvider so the chain only
// fails when given no providers at all.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from the given providers in preference order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Providers returns the chain members in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ByName finds a chain member by its Name().
func (c *Chain) ByName(name string) (Provider, bool) {
	for _, p := range c.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// EmbedDocuments embeds a batch with the first provider that succeeds.
func (c *Chain) EmbedDocuments(ctx context.Context, texts []string) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Chain.EmbedDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(texts)))

	var lastErr error
	for i, p := range c.providers {
		vectors, err := p.EmbedDocuments(ctx, texts)
		if err == nil {
			if i > 0 {
				slog.Warn("degraded_embedding",
					"provider", p.Name(),
					"failed_providers", i,
					"batch_size", len(texts))
			}
			span.SetAttributes(attribute.String("provider", p.Name()))
			return &BatchResult{Vectors: vectors, Provider: p.Name(), Degraded: i > 0}, nil
		}
		lastErr = err
		slog.Warn("Embedding provider failed, trying next",
			"provider", p.Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// EmbedQuery embeds one lookup string with the first provider that succeeds.
func (c *Chain) EmbedQuery(ctx context.Context, text string) (*QueryResult, error) {
	ctx, span := tracer.Start(ctx, "Chain.EmbedQuery")
	defer span.End()

	var lastErr error
	for i, p := range c.providers {
		vector, err := p.EmbedQuery(ctx, text)
		if err == nil {
			if i > 0 {
				slog.Warn("degraded_embedding", "provider", p.Name(), "failed_providers", i)
			}
			span.SetAttributes(attribute.String("provider", p.Name()))
			return &QueryResult{Vector: vector, Provider: p.Name(), Degraded: i > 0}, nil
		}
		lastErr = err
		slog.Warn("Embedding provider failed, trying next",
			"provider", p.Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// EmbedQueryWith embeds a query with one specific provider. Used when a
// collection was written by a provider other than the chain's current head,
// so queries stay in the same vector space as the stored records.
func (c *Chain) EmbedQueryWith(ctx context.Context, providerName, text string) (*QueryResult, error) {
	p, ok := c.ByName(providerName)
	if !ok {
		return nil, fmt.Errorf("embedding provider %q not in chain", providerName)
	}
	vector, err := p.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("provider %s failed: %w", providerName, err)
	}
	return &QueryResult{Vector: vector, Provider: providerName}, nil
}

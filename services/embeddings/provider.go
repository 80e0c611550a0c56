// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package embeddings provides the embedding providers and the ordered
// fallback chain used by ingestion and verification. A batch is always
// embedded by a single provider; on failure the whole batch moves to the
// next provider in the chain.
package embeddings

import (
	"context"
	"errors"
)

// ErrAllProvidersFailed is returned when every provider in the chain failed.
var ErrAllProvidersFailed = errors.New("all embedding providers failed")

// Provider turns text into vectors. Document and query embeddings are
// separate methods because some backends use task-specific encodings.
type Provider interface {
	// EmbedDocuments embeds a batch for storage. The returned slice is
	// parallel to texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single lookup string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Name identifies the provider, e.g. "gemini:gemini-embedding-001".
	Name() string

	// Dimensions returns the vector dimensionality.
	Dimensions() int
}

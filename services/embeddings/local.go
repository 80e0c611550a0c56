// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const localDimensions = 384

// LocalProvider is the deterministic last-resort embedder. It feature-hashes
// tokens into a fixed-width vector and L2-normalizes the result. Quality is
// far below the remote models, but it needs no network and the same text
// always yields the same vector, which keeps the pipeline alive offline.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashEmbed(text)
	}
	return vectors, nil
}

func (l *LocalProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return hashEmbed(text), nil
}

func (l *LocalProvider) Name() string {
	return "local:feature-hash"
}

func (l *LocalProvider) Dimensions() int {
	return localDimensions
}

func hashEmbed(text string) []float32 {
	vec := make([]float32, localDimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % localDimensions)
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

var _ Provider = (*LocalProvider)(nil)

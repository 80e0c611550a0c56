// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingestion

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	chunks := ChunkText("A short announcement from the ministry.", 800, 120)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "A short announcement from the ministry.", chunks[0].Text)
}

func TestChunkText_EmptyAndWhitespace(t *testing.T) {
	assert.Nil(t, ChunkText("", 800, 120))
	assert.Nil(t, ChunkText("   \n\t  ", 800, 120))
}

func TestChunkText_DenseOrdinalsAndOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 200)
	chunks := ChunkText(text, 800, 120)

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		assert.NotEmpty(t, c.Text)
		assert.Less(t, c.Start, c.End)
	}
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End-120, chunks[i].Start,
			"consecutive chunks overlap by the configured amount")
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
}

func TestChunkText_SnapsBoundariesToWhitespace(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 200)
	runes := []rune(text)
	chunks := ChunkText(text, 800, 120)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, unicode.IsSpace(runes[c.End-1]),
			"chunk boundary at %d should land after whitespace", c.End)
	}
}

func TestChunkText_UnbrokenTextStillProgresses(t *testing.T) {
	text := strings.Repeat("x", 2000)
	chunks := ChunkText(text, 800, 120)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 800)
	}
	assert.Equal(t, 2000, chunks[len(chunks)-1].End)
}

func TestChunkText_DefaultsApply(t *testing.T) {
	text := strings.Repeat("word ", 400)
	chunks := ChunkText(text, 0, -1)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), DefaultChunkSize)
	}
}

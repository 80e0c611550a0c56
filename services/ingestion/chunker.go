// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingestion pulls documents from the source connectors, deduplicates
// and chunks them, embeds the chunks, and persists vectors and raw documents.
package ingestion

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are in characters.
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120

	// boundarySlack is how far back a chunk boundary may move to land on
	// whitespace instead of splitting a word.
	boundarySlack = 64
)

// Chunk is one window of a document. Start and End are character offsets
// into the original text; Ordinal is dense starting at zero.
type Chunk struct {
	Ordinal int
	Text    string
	Start   int
	End     int
}

// ChunkText splits text into overlapping windows of roughly width
// characters. Boundaries are snapped backward to the nearest whitespace
// within boundarySlack so words are not split. Empty or whitespace-only
// text yields no chunks.
func ChunkText(text string, width, overlap int) []Chunk {
	if width <= 0 {
		width = DefaultChunkSize
	}
	if overlap < 0 || overlap >= width {
		overlap = DefaultChunkOverlap
		if overlap >= width {
			overlap = width / 4
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + width
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToWhitespace(runes, end, start)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{
				Ordinal: len(chunks),
				Text:    piece,
				Start:   start,
				End:     end,
			})
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// snapToWhitespace moves end backward to the nearest whitespace rune within
// boundarySlack. If none is found the hard cut stands.
func snapToWhitespace(runes []rune, end, start int) int {
	limit := end - boundarySlack
	if limit < start+1 {
		limit = start + 1
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

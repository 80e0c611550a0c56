// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine implements two-phase claim verification: a canon lookup
// against previously verified claims, then grounded reasoning over ranked
// evidence with a model gateway.
package engine

import (
	"sort"
	"strings"
	"unicode"
)

const (
	// contextSize is the maximum number of evidence items handed to the model.
	contextSize = 25
	// snippetChars is the maximum evidence snippet length in characters.
	snippetChars = 500
)

// Ranking weights: source trust dominates, semantic closeness refines.
const (
	credibilityWeight = 0.6
	similarityWeight  = 0.4
)

// Evidence is one retrieval result, indexed or live.
type Evidence struct {
	Content     string
	SourceName  string
	URL         string
	Kind        string
	PublishedAt int64
	Credibility float64
	Band        string
	Similarity  float64
	Live        bool
}

func (e Evidence) score() float64 {
	return credibilityWeight*e.Credibility + similarityWeight*e.Similarity
}

// rankEvidence orders evidence by blended score and truncates to limit.
// Ordering is total so the same evidence set always yields the same context.
func rankEvidence(items []Evidence, limit int) []Evidence {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.score() != b.score() {
			return a.score() > b.score()
		}
		if a.PublishedAt != b.PublishedAt {
			return a.PublishedAt > b.PublishedAt
		}
		if a.SourceName != b.SourceName {
			return a.SourceName < b.SourceName
		}
		return a.URL < b.URL
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// snippet truncates text to max characters, cutting back to the last space
// so words are not split, and marks truncation with an ellipsis.
func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := max
	for i := max; i > max-40 && i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

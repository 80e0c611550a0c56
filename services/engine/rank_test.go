// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankEvidence_BlendsCredibilityAndSimilarity(t *testing.T) {
	items := []Evidence{
		{SourceName: "random-blog", Credibility: 0.60, Similarity: 0.95},
		{SourceName: "gov-bulletin", Credibility: 0.95, Similarity: 0.70},
		{SourceName: "social-post", Credibility: 0.35, Similarity: 0.99},
	}
	ranked := rankEvidence(items, 25)

	// gov: .6*.95+.4*.70=0.85, blog: .6*.60+.4*.95=0.74, social: .6*.35+.4*.99=0.606
	require.Len(t, ranked, 3)
	assert.Equal(t, "gov-bulletin", ranked[0].SourceName)
	assert.Equal(t, "random-blog", ranked[1].SourceName)
	assert.Equal(t, "social-post", ranked[2].SourceName)
}

func TestRankEvidence_TruncatesToLimit(t *testing.T) {
	items := make([]Evidence, 40)
	for i := range items {
		items[i] = Evidence{SourceName: "s", Credibility: 0.5, Similarity: 0.5}
	}
	assert.Len(t, rankEvidence(items, 25), 25)
}

func TestRankEvidence_TieBreaksAreDeterministic(t *testing.T) {
	items := []Evidence{
		{SourceName: "b", Credibility: 0.8, Similarity: 0.7, PublishedAt: 100},
		{SourceName: "a", Credibility: 0.8, Similarity: 0.7, PublishedAt: 100},
		{SourceName: "c", Credibility: 0.8, Similarity: 0.7, PublishedAt: 200},
	}
	ranked := rankEvidence(items, 25)

	assert.Equal(t, "c", ranked[0].SourceName, "newer wins the tie")
	assert.Equal(t, "a", ranked[1].SourceName)
	assert.Equal(t, "b", ranked[2].SourceName)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("  short text  ", 500))

	long := strings.Repeat("evidence ", 100)
	s := snippet(long, 500)
	assert.LessOrEqual(t, len([]rune(s)), 503)
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(s, "..."), "eviden"), "words are not split")
}

func TestContradictionScore(t *testing.T) {
	assert.Equal(t, 0.0, contradictionScore(nil))

	items := []Evidence{
		{Content: "Officials denied the report and called it a hoax."},
		{Content: "The event took place on Thursday."},
		{Content: "Fact check: the viral video is misleading."},
		{Content: "Shares rose three percent."},
	}
	assert.InDelta(t, 0.5, contradictionScore(items), 0.001)
}

func TestPlaceholderURL(t *testing.T) {
	assert.Equal(t, "https://reference.afp-fact-check.example.com", placeholderURL("AFP Fact Check"))
	assert.Equal(t, "https://reference.source.example.com", placeholderURL("  "))
}

func TestBuildPrompt_NumbersEvidence(t *testing.T) {
	items := []Evidence{
		{Content: "First piece.", SourceName: "Reuters", Kind: "news", PublishedAt: 1766223600},
		{Content: "Second piece.", SourceName: "WHO", Kind: "gov"},
	}
	prompt := buildPrompt("The sky is green", items)

	assert.Contains(t, prompt, "Claim: The sky is green")
	assert.Contains(t, prompt, "[1] (news, Reuters, 2025-12-20): First piece.")
	assert.Contains(t, prompt, "[2] (gov, WHO, undated): Second piece.")
}

func TestSystemDirective_RequestsClaimLanguage(t *testing.T) {
	assert.Contains(t, systemDirective, "same language as the claim")
}

// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func geminiAgainst(t *testing.T, lastBody *string, embeddings string) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*lastBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(embeddings))
	}))
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	return &GeminiProvider{client: client, model: defaultGeminiEmbedModel}
}

func TestGeminiProvider_EmbedDocumentsSendsDocumentTaskType(t *testing.T) {
	var body string
	g := geminiAgainst(t, &body,
		`{"embeddings":[{"values":[0.1,0.2]},{"values":[0.3,0.4]}]}`)

	vectors, err := g.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
	assert.True(t, strings.Contains(body, "RETRIEVAL_DOCUMENT"),
		"document embeds must carry the document task type")
}

func TestGeminiProvider_EmbedQuerySendsVerificationTaskType(t *testing.T) {
	var body string
	g := geminiAgainst(t, &body,
		`{"embeddings":[{"values":[0.5,0.6]}]}`)

	vector, err := g.EmbedQuery(context.Background(), "is the sky green")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6}, vector)
	assert.True(t, strings.Contains(body, "FACT_VERIFICATION"),
		"query embeds must carry the fact verification task type")
}

func TestGeminiProvider_EmbedCountMismatch(t *testing.T) {
	var body string
	g := geminiAgainst(t, &body, `{"embeddings":[{"values":[0.1]}]}`)

	_, err := g.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 embeddings for 2 texts")
}

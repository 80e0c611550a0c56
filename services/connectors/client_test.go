// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connectors

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDoer implements HTTPClient returning canned responses.
type fakeDoer struct {
	status  int
	body    string
	err     error
	lastURL string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastURL = req.URL.String()
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestFetchNews_NormalizesItems(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{
		"items": [
			{"source": " Reuters ", "title": "Rate cut", "content": "  The central bank cut rates.  ",
			 "url": "https://www.reuters.com/a", "language": "en", "published_at": "2026-08-20T10:00:00Z"},
			{"source": "Empty", "title": "No body", "content": "   ", "url": "https://x.com/b"},
			{"source": "BadURL", "title": "t", "content": "text here", "url": "not-a-url"}
		]
	}`}
	client, err := NewClient("http://connector:9100", doer)
	require.NoError(t, err)

	items, err := client.FetchNews(context.Background(), FetchOptions{Query: "rates", Limit: 10})
	require.NoError(t, err)

	require.Len(t, items, 2, "empty-body items are dropped")
	assert.Equal(t, "Reuters", items[0].SourceName)
	assert.Equal(t, "The central bank cut rates.", items[0].Body)
	assert.Equal(t, "news", items[0].Kind)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())
	assert.Equal(t, "", items[1].URL, "relative URLs are cleared, item is kept")
	assert.Contains(t, doer.lastURL, "/news?")
	assert.Contains(t, doer.lastURL, "limit=10")
}

func TestFetch_ErrorStatus(t *testing.T) {
	doer := &fakeDoer{status: 502, body: `bad gateway`}
	client, _ := NewClient("http://connector:9100", doer)

	_, err := client.FetchGov(context.Background(), FetchOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetch_TransportError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	client, _ := NewClient("http://connector:9100", doer)

	_, err := client.FetchSocial(context.Background(), FetchOptions{})

	assert.Error(t, err)
}

func TestFetchFactChecks(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{
		"claims": [
			{"claim": "Vaccines contain microchips", "rating": "False",
			 "publisher": "Snopes", "url": "https://snopes.com/fc/1",
			 "reviewed_at": "2026-01-05T00:00:00Z"},
			{"claim": "   ", "rating": "True"}
		]
	}`}
	client, _ := NewClient("http://connector:9100", doer)

	items, err := client.FetchFactChecks(context.Background(), FetchOptions{Limit: 5})
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Vaccines contain microchips", items[0].Claim)
	assert.Equal(t, "False", items[0].Rating)
	assert.Equal(t, "Snopes", items[0].Publisher)
}

func TestGoogleFactCheck_Search(t *testing.T) {
	doer := &fakeDoer{status: 200, body: `{
		"claims": [
			{
				"text": "The earth is flat",
				"claimant": "someone",
				"claimReview": [
					{"publisher": {"name": "PolitiFact", "site": "politifact.com"},
					 "url": "https://politifact.com/fc/9",
					 "title": "Pants on fire: the earth is not flat",
					 "reviewDate": "2025-11-01T00:00:00Z",
					 "textualRating": "Pants on Fire",
					 "languageCode": "en"}
				]
			},
			{"text": "No reviews here", "claimReview": []}
		]
	}`}
	client, err := NewGoogleFactCheckClient("test-key", doer)
	require.NoError(t, err)

	items, err := client.Search(context.Background(), "earth flat", "en", 5)
	require.NoError(t, err)

	require.Len(t, items, 1, "claims without reviews are dropped")
	assert.Equal(t, "The earth is flat", items[0].Claim)
	assert.Equal(t, "Pants on Fire", items[0].Rating)
	assert.Equal(t, "PolitiFact", items[0].Publisher)
	assert.Contains(t, doer.lastURL, "query=earth+flat")
	assert.Contains(t, doer.lastURL, "languageCode=en")
}

func TestGoogleFactCheck_RequiresKey(t *testing.T) {
	_, err := NewGoogleFactCheckClient("", nil)
	assert.Error(t, err)
}

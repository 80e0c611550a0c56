// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const googleFactCheckEndpoint = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

// GoogleFactCheckClient queries the Google Fact Check Tools API for
// published claim reviews matching a query.
type GoogleFactCheckClient struct {
	apiKey     string
	endpoint   string
	httpClient HTTPClient
}

// NewGoogleFactCheckClient creates a client. httpClient may be nil.
func NewGoogleFactCheckClient(apiKey string, httpClient HTTPClient) (*GoogleFactCheckClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google fact check API key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleFactCheckClient{
		apiKey:     apiKey,
		endpoint:   googleFactCheckEndpoint,
		httpClient: httpClient,
	}, nil
}

// claims:search response shape.
type googleFactCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		Claimant    string `json:"claimant"`
		ClaimDate   string `json:"claimDate"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
			URL           string `json:"url"`
			Title         string `json:"title"`
			ReviewDate    string `json:"reviewDate"`
			TextualRating string `json:"textualRating"`
			LanguageCode  string `json:"languageCode"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// Search returns up to max published fact checks for the query.
func (g *GoogleFactCheckClient) Search(ctx context.Context, query, language string, max int) ([]FactCheckItem, error) {
	ctx, span := tracer.Start(ctx, "GoogleFactCheckClient.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("page_size", max))

	if max <= 0 {
		max = 5
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(max))
	q.Set("key", g.apiKey)
	if language != "" {
		q.Set("languageCode", language)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fact check search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fact check search failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact check search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fact check search returned status %d: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var parsed googleFactCheckResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fact check search response: %w", err)
	}

	items := make([]FactCheckItem, 0, len(parsed.Claims))
	for _, cl := range parsed.Claims {
		if len(cl.ClaimReview) == 0 {
			continue
		}
		claim := strings.TrimSpace(cl.Text)
		if claim == "" {
			continue
		}
		// Each claim may carry several reviews; the first is the primary one.
		review := cl.ClaimReview[0]

		var reviewed time.Time
		if review.ReviewDate != "" {
			if t, err := time.Parse(time.RFC3339, review.ReviewDate); err == nil {
				reviewed = t
			}
		}

		publisher := review.Publisher.Name
		if publisher == "" {
			publisher = review.Publisher.Site
		}

		items = append(items, FactCheckItem{
			Claim:       claim,
			Rating:      strings.TrimSpace(review.TextualRating),
			Publisher:   strings.TrimSpace(publisher),
			URL:         strings.TrimSpace(review.URL),
			Explanation: strings.TrimSpace(review.Title),
			Language:    review.LanguageCode,
			ReviewedAt:  reviewed,
		})
	}
	span.SetAttributes(attribute.Int("claims", len(items)))
	return items, nil
}

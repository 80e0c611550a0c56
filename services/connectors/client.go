// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package connectors provides typed clients for the external source
// connector service (news, government, social, fact-check feeds) and for
// the Google Fact Check Tools API.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rama.connectors")

// HTTPClient abstracts http.Client for test injection.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RawItem is a normalized document from any connector. Body is non-empty
// and trimmed; URL is absolute or empty.
type RawItem struct {
	Kind        string
	SourceName  string
	Title       string
	Body        string
	URL         string
	Language    string
	PublishedAt time.Time
}

// FactCheckItem is a published fact check from a connector or the Google
// Fact Check Tools API.
type FactCheckItem struct {
	Claim       string
	Rating      string
	RatingValue *float64
	Publisher   string
	URL         string
	Explanation string
	Language    string
	ReviewedAt  time.Time
}

// FetchOptions narrows a connector pull.
type FetchOptions struct {
	Query    string
	Limit    int
	Language string
}

// Client talks to the source connector service.
type Client struct {
	baseURL    string
	httpClient HTTPClient
}

// NewClient creates a connector client. httpClient may be nil, in which
// case a default with a 60s timeout is used.
func NewClient(baseURL string, httpClient HTTPClient) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("source connector URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// connectorItem is the wire shape shared by the news, gov and social feeds.
type connectorItem struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Language    string `json:"language"`
	PublishedAt string `json:"published_at"`
}

type connectorResponse struct {
	Items []connectorItem `json:"items"`
}

func (c *Client) fetch(ctx context.Context, path, kind string, opts FetchOptions) ([]RawItem, error) {
	ctx, span := tracer.Start(ctx, "Client.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("connector", kind))

	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", kind, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s connector call failed: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s connector response: %w", kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s connector returned status %d: %s", kind, resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var parsed connectorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s connector response: %w", kind, err)
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		item, ok := normalizeItem(it, kind)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

// normalizeItem enforces the connector contract: non-empty trimmed body,
// absolute URL or empty. Items without usable text are dropped.
func normalizeItem(it connectorItem, kind string) (RawItem, bool) {
	body := strings.TrimSpace(it.Content)
	if body == "" {
		return RawItem{}, false
	}

	cleanURL := strings.TrimSpace(it.URL)
	if cleanURL != "" {
		if u, err := url.Parse(cleanURL); err != nil || !u.IsAbs() {
			cleanURL = ""
		}
	}

	var published time.Time
	if it.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, it.PublishedAt); err == nil {
			published = t
		}
	}

	return RawItem{
		Kind:        kind,
		SourceName:  strings.TrimSpace(it.Source),
		Title:       strings.TrimSpace(it.Title),
		Body:        body,
		URL:         cleanURL,
		Language:    strings.TrimSpace(it.Language),
		PublishedAt: published,
	}, true
}

func (c *Client) FetchNews(ctx context.Context, opts FetchOptions) ([]RawItem, error) {
	return c.fetch(ctx, "/news", "news", opts)
}

func (c *Client) FetchGov(ctx context.Context, opts FetchOptions) ([]RawItem, error) {
	return c.fetch(ctx, "/gov", "gov", opts)
}

func (c *Client) FetchSocial(ctx context.Context, opts FetchOptions) ([]RawItem, error) {
	return c.fetch(ctx, "/social", "social", opts)
}

// factCheckWire is the /factcheck feed shape.
type factCheckWire struct {
	Claims []struct {
		Claim       string   `json:"claim"`
		Rating      string   `json:"rating"`
		RatingValue *float64 `json:"rating_value"`
		Publisher   string   `json:"publisher"`
		URL         string   `json:"url"`
		Explanation string   `json:"explanation"`
		Language    string   `json:"language"`
		ReviewedAt  string   `json:"reviewed_at"`
	} `json:"claims"`
}

// FetchFactChecks pulls published fact checks from the connector service.
func (c *Client) FetchFactChecks(ctx context.Context, opts FetchOptions) ([]FactCheckItem, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchFactChecks")
	defer span.End()

	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	target := c.baseURL + "/factcheck"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create factcheck request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("factcheck connector call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read factcheck connector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("factcheck connector returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed factCheckWire
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse factcheck connector response: %w", err)
	}

	items := make([]FactCheckItem, 0, len(parsed.Claims))
	for _, cl := range parsed.Claims {
		claim := strings.TrimSpace(cl.Claim)
		if claim == "" {
			continue
		}
		var reviewed time.Time
		if cl.ReviewedAt != "" {
			if t, err := time.Parse(time.RFC3339, cl.ReviewedAt); err == nil {
				reviewed = t
			}
		}
		items = append(items, FactCheckItem{
			Claim:       claim,
			Rating:      strings.TrimSpace(cl.Rating),
			RatingValue: cl.RatingValue,
			Publisher:   strings.TrimSpace(cl.Publisher),
			URL:         strings.TrimSpace(cl.URL),
			Explanation: strings.TrimSpace(cl.Explanation),
			Language:    strings.TrimSpace(cl.Language),
			ReviewedAt:  reviewed,
		})
	}
	span.SetAttributes(attribute.Int("claims", len(items)))
	return items, nil
}

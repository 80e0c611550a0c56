// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rama-labs/rama/services/connectors"
	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/embeddings"
	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/vectorstore"
	"github.com/rama-labs/rama/services/verifier/datatypes"
)

var tracer = otel.Tracer("rama.engine")

// liveSimilarity is assigned to live (non-indexed) evidence, which has no
// vector similarity of its own. It ranks below a strong indexed match of
// equal credibility and above a borderline one.
const liveSimilarity = 0.5

// Embedder is the query-embedding surface. *embeddings.Chain satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) (*embeddings.QueryResult, error)
	EmbedQueryWith(ctx context.Context, providerName, text string) (*embeddings.QueryResult, error)
}

var _ Embedder = (*embeddings.Chain)(nil)

// Generator is the model gateway surface. *llm.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, params llm.GenerationParams) (*llm.Generation, error)
}

var _ Generator = (*llm.Gateway)(nil)

// LiveNews fetches fresh articles for a query. May be nil.
type LiveNews interface {
	FetchNews(ctx context.Context, opts connectors.FetchOptions) ([]connectors.RawItem, error)
}

// LiveFactCheck searches published fact checks for a query. May be nil.
type LiveFactCheck interface {
	Search(ctx context.Context, query, language string, max int) ([]connectors.FactCheckItem, error)
}

// LogSink receives verification log entries asynchronously. May be nil.
type LogSink interface {
	Enqueue(doc docstore.ClaimLogDoc)
}

// Config tunes retrieval and deadlines.
type Config struct {
	CanonThreshold float64
	MinSimilarity  float64
	NewsK          int
	GovK           int
	SocialK        int
	LiveNewsK      int
	LiveFactCheckK int
	OnlineTimeout  time.Duration
	OfflineTimeout time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.CanonThreshold <= 0 {
		cfg.CanonThreshold = 0.85
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = 0.65
	}
	if cfg.NewsK <= 0 {
		cfg.NewsK = 50
	}
	if cfg.GovK <= 0 {
		cfg.GovK = 20
	}
	if cfg.SocialK <= 0 {
		cfg.SocialK = 15
	}
	if cfg.LiveNewsK <= 0 {
		cfg.LiveNewsK = 10
	}
	if cfg.LiveFactCheckK <= 0 {
		cfg.LiveFactCheckK = 5
	}
	if cfg.OnlineTimeout <= 0 {
		cfg.OnlineTimeout = 15 * time.Second
	}
	if cfg.OfflineTimeout <= 0 {
		cfg.OfflineTimeout = 20 * time.Second
	}
	return cfg
}

// Engine runs two-phase claim verification.
type Engine struct {
	embedder Embedder
	index    vectorstore.Index
	gateway  Generator
	mode     func() string
	liveNews LiveNews
	liveFC   LiveFactCheck
	creds    *datatypes.CredibilityTable
	logs     LogSink
	cfg      Config
}

// New wires an engine. liveNews, liveFC and logs may be nil; mode may be
// nil, in which case the engine assumes it is online.
func New(embedder Embedder, index vectorstore.Index, gateway Generator,
	mode func() string, liveNews LiveNews, liveFC LiveFactCheck,
	creds *datatypes.CredibilityTable, logs LogSink, cfg Config) *Engine {

	if creds == nil {
		creds = datatypes.DefaultCredibilityTable()
	}
	if mode == nil {
		mode = func() string { return "online" }
	}
	return &Engine{
		embedder: embedder,
		index:    index,
		gateway:  gateway,
		mode:     mode,
		liveNews: liveNews,
		liveFC:   liveFC,
		creds:    creds,
		logs:     logs,
		cfg:      applyConfigDefaults(cfg),
	}
}

// Verify checks one claim. The returned response is always well-formed;
// an error is returned only when the whole pipeline is unusable, e.g.
// every model backend is down.
func (e *Engine) Verify(ctx context.Context, req datatypes.VerifyRequest, userKey string) (*datatypes.VerifyResponse, error) {
	ctx, span := tracer.Start(ctx, "Engine.Verify")
	defer span.End()

	start := time.Now()
	mode := e.mode()
	deadline := e.cfg.OnlineTimeout
	if mode == "offline" {
		deadline = e.cfg.OfflineTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	claim := strings.TrimSpace(req.Claim)
	claimID := uuid.NewString()
	span.SetAttributes(attribute.String("claim_id", claimID), attribute.String("mode", mode))

	vectors := newVectorCache(e.embedder, claim)

	resp, err := e.verify(ctx, claimID, claim, req.Language, vectors)
	if errors.Is(err, context.DeadlineExceeded) {
		// The deadline is internal; the caller still gets a structured
		// answer rather than an error.
		slog.Warn("Verification deadline expired", "claim_id", claimID, "deadline", deadline)
		resp = &datatypes.VerifyResponse{
			Verdict:     datatypes.VerdictUnverified,
			Confidence:  0,
			Explanation: "Verification timed out before the model produced a verdict.",
			SourcesUsed: []datatypes.SourceUsed{},
			Mode:        datatypes.ModeRefused,
		}
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp.ClaimID = claimID
	resp.Language = req.Language
	resp.ProcessingMs = time.Since(start).Milliseconds()
	resp.Timestamp = time.Now().UTC()
	span.SetAttributes(
		attribute.String("verdict", resp.Verdict),
		attribute.String("verify_mode", resp.Mode),
	)

	if e.logs != nil {
		e.logs.Enqueue(docstore.ClaimLogDoc{
			LogID:      uuid.NewString(),
			ClaimID:    claimID,
			Claim:      claim,
			Verdict:    resp.Verdict,
			Confidence: resp.Confidence,
			Mode:       resp.Mode,
			ModelUsed:  resp.ModelUsed,
			UserKey:    userKey,
			Language:   req.Language,
			DurationMs: resp.ProcessingMs,
			CreatedAt:  time.Now().UTC(),
		})
	}
	return resp, nil
}

func (e *Engine) verify(ctx context.Context, claimID, claim, language string, vectors *vectorCache) (*datatypes.VerifyResponse, error) {
	// Phase 1: canon lookup against previously verified claims. A canon
	// answer is a settled verdict, so no contradiction is reported.
	if hit, ok := e.canonLookup(ctx, vectors); ok {
		return &datatypes.VerifyResponse{
			Verdict:            datatypes.NormalizeVerdict(hit.Verdict),
			Confidence:         clamp01(hit.Similarity),
			ContradictionScore: 0,
			Explanation:        hit.Explanation,
			SourcesUsed:        []datatypes.SourceUsed{evidenceToSource(hitToEvidence(*hit))},
			Mode:               datatypes.ModeExistingFactCheck,
		}, nil
	}

	// Phase 2: grounded reasoning over retrieved evidence.
	evidence := e.gatherEvidence(ctx, claim, language, vectors)
	if len(evidence) == 0 {
		return &datatypes.VerifyResponse{
			Verdict:     datatypes.VerdictUnverified,
			Confidence:  0.3,
			Explanation: "No relevant evidence was found in the indexed or live sources for this claim.",
			SourcesUsed: []datatypes.SourceUsed{},
			Mode:        datatypes.ModeReasoned,
		}, nil
	}
	evidence = rankEvidence(evidence, contextSize)

	gen, err := e.gateway.Generate(ctx, systemDirective, buildPrompt(claim, evidence), reasoningParams())
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", claimID, err)
	}

	reply, parseErr := parseModelReply(gen.Text)
	if parseErr != nil {
		slog.Warn("Model reply unparseable, attempting repair", "claim_id", claimID, "model", gen.ModelUsed)
		repaired, err := e.gateway.Generate(ctx, systemDirective, repairPrompt(gen.Text), reasoningParams())
		if err != nil {
			return nil, fmt.Errorf("claim %s repair: %w", claimID, err)
		}
		gen.ModelUsed = repaired.ModelUsed
		gen.Text = repaired.Text
		if reply, parseErr = parseModelReply(repaired.Text); parseErr != nil {
			slog.Error("Model reply unparseable after repair", "claim_id", claimID, "model", gen.ModelUsed)
			return &datatypes.VerifyResponse{
				Verdict:     datatypes.VerdictUnverified,
				Confidence:  0,
				Explanation: "The model did not produce a structured verdict for this claim.",
				SourcesUsed: []datatypes.SourceUsed{},
				RawAnswer:   repaired.Text,
				Mode:        datatypes.ModeRefused,
				ModelUsed:   gen.ModelUsed,
			}, nil
		}
	}

	cited := citedEvidence(reply.Citations, evidence)
	verdict := reply.Verdict
	if len(cited) == 0 {
		// A verdict grounded in nothing is no verdict.
		verdict = datatypes.VerdictUnverified
	}

	sources := make([]datatypes.SourceUsed, 0, len(cited))
	for _, ev := range cited {
		sources = append(sources, evidenceToSource(ev))
	}
	return &datatypes.VerifyResponse{
		Verdict:            verdict,
		Confidence:         reply.Confidence,
		ContradictionScore: contradictionScore(cited),
		Explanation:        reply.Explanation,
		SourcesUsed:        sources,
		RawAnswer:          gen.Text,
		Mode:               datatypes.ModeReasoned,
		ModelUsed:          gen.ModelUsed,
	}, nil
}

// canonLookup queries the verified-claims collection for a near-exact match.
func (e *Engine) canonLookup(ctx context.Context, vectors *vectorCache) (*vectorstore.Hit, bool) {
	vec, err := vectors.forCollection(ctx, e.index, vectorstore.CollectionVerifiedClaims)
	if err != nil {
		slog.Warn("Canon lookup skipped, embedding failed", "error", err)
		return nil, false
	}
	hits, err := e.index.Query(ctx, vectorstore.CollectionVerifiedClaims, vec, 1, e.cfg.CanonThreshold)
	if err != nil {
		slog.Warn("Canon lookup failed", "error", err)
		return nil, false
	}
	if len(hits) == 0 {
		return nil, false
	}
	return &hits[0], true
}

// gatherEvidence fans out to the indexed collections and the live sources.
// Individual retrieval failures degrade the evidence set instead of failing
// the request.
func (e *Engine) gatherEvidence(ctx context.Context, claim, language string, vectors *vectorCache) []Evidence {
	var (
		mu       sync.Mutex
		evidence []Evidence
	)
	add := func(items ...Evidence) {
		mu.Lock()
		defer mu.Unlock()
		evidence = append(evidence, items...)
	}

	indexed := func(collection string, k int) func() error {
		return func() error {
			vec, err := vectors.forCollection(ctx, e.index, collection)
			if err != nil {
				slog.Warn("Evidence retrieval skipped", "collection", collection, "error", err)
				return nil
			}
			hits, err := e.index.Query(ctx, collection, vec, k, e.cfg.MinSimilarity)
			if err != nil {
				slog.Warn("Evidence retrieval failed", "collection", collection, "error", err)
				return nil
			}
			for _, h := range hits {
				add(hitToEvidence(h))
			}
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(indexed(vectorstore.CollectionNews, e.cfg.NewsK))
	g.Go(indexed(vectorstore.CollectionGov, e.cfg.GovK))
	g.Go(indexed(vectorstore.CollectionSocial, e.cfg.SocialK))

	if e.liveNews != nil {
		g.Go(func() error {
			items, err := e.liveNews.FetchNews(gctx, connectors.FetchOptions{
				Query: claim, Limit: e.cfg.LiveNewsK, Language: language,
			})
			if err != nil {
				slog.Warn("Live news retrieval failed", "error", err)
				return nil
			}
			for _, it := range items {
				score, band := e.creds.Classify(it.Kind, it.SourceName, it.URL)
				add(Evidence{
					Content:     it.Body,
					SourceName:  it.SourceName,
					URL:         it.URL,
					Kind:        datatypes.KindNews,
					PublishedAt: it.PublishedAt.Unix(),
					Credibility: score,
					Band:        band,
					Similarity:  liveSimilarity,
					Live:        true,
				})
			}
			return nil
		})
	}
	if e.liveFC != nil {
		g.Go(func() error {
			items, err := e.liveFC.Search(gctx, claim, language, e.cfg.LiveFactCheckK)
			if err != nil {
				slog.Warn("Live fact check retrieval failed", "error", err)
				return nil
			}
			for _, it := range items {
				score, band := e.creds.Classify(datatypes.KindFactCheck, it.Publisher, it.URL)
				content := fmt.Sprintf("%s. Rated %q by %s.", it.Claim, it.Rating, it.Publisher)
				if it.Explanation != "" {
					content += " " + it.Explanation
				}
				add(Evidence{
					Content:     content,
					SourceName:  it.Publisher,
					URL:         it.URL,
					Kind:        datatypes.KindFactCheck,
					PublishedAt: it.ReviewedAt.Unix(),
					Credibility: score,
					Band:        band,
					Similarity:  liveSimilarity,
					Live:        true,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return evidence
}

// citedEvidence resolves 1-based citation indices against the ranked
// evidence, dropping out-of-range and duplicate indices.
func citedEvidence(citations []int, evidence []Evidence) []Evidence {
	seen := make(map[int]bool, len(citations))
	var cited []Evidence
	for _, n := range citations {
		if n < 1 || n > len(evidence) || seen[n] {
			continue
		}
		seen[n] = true
		cited = append(cited, evidence[n-1])
	}
	return cited
}

func hitToEvidence(h vectorstore.Hit) Evidence {
	content := h.Content
	if h.Verdict != "" {
		content = fmt.Sprintf("%s. Verdict: %s.", h.Content, h.Verdict)
		if h.Explanation != "" {
			content += " " + h.Explanation
		}
	}
	return Evidence{
		Content:     content,
		SourceName:  h.SourceName,
		URL:         h.URL,
		Kind:        h.Kind,
		PublishedAt: h.PublishedAt,
		Credibility: h.Credibility,
		Band:        h.Band,
		Similarity:  h.Similarity,
	}
}

func evidenceToSource(e Evidence) datatypes.SourceUsed {
	url := e.URL
	if url == "" {
		url = placeholderURL(e.SourceName)
	}
	return datatypes.SourceUsed{
		Source:           e.SourceName,
		URL:              url,
		Snippet:          snippet(e.Content, snippetChars),
		Kind:             e.Kind,
		CredibilityScore: e.Credibility,
		CredibilityLevel: e.Band,
		IsVerifiedSource: datatypes.IsVerifiedSource(e.Credibility),
		Similarity:       e.Similarity,
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// placeholderURL stands in for evidence with no link of its own, so the
// response schema can keep url non-empty.
func placeholderURL(sourceName string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(sourceName), "-"), "-")
	if slug == "" {
		slug = "source"
	}
	return fmt.Sprintf("https://reference.%s.example.com", slug)
}

func reasoningParams() llm.GenerationParams {
	temp := float32(0.1)
	maxTokens := 1024
	return llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}
}

// vectorCache embeds the claim once per embedding provider. Collections
// written by a provider other than the chain head are queried with a vector
// from that same provider, never a mixed one.
type vectorCache struct {
	embedder Embedder
	text     string

	mu      sync.Mutex
	vectors map[string][]float32
	head    string
}

func newVectorCache(embedder Embedder, text string) *vectorCache {
	return &vectorCache{
		embedder: embedder,
		text:     text,
		vectors:  make(map[string][]float32),
	}
}

func (c *vectorCache) forCollection(ctx context.Context, index vectorstore.Index, collection string) ([]float32, error) {
	provider, err := index.Provider(ctx, collection)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if provider == "" {
		// Collection never written: use the chain head.
		if c.head == "" {
			res, err := c.embedder.EmbedQuery(ctx, c.text)
			if err != nil {
				return nil, err
			}
			c.head = res.Provider
			c.vectors[res.Provider] = res.Vector
		}
		return c.vectors[c.head], nil
	}
	if vec, ok := c.vectors[provider]; ok {
		return vec, nil
	}
	res, err := c.embedder.EmbedQueryWith(ctx, provider, c.text)
	if err != nil {
		return nil, err
	}
	c.vectors[provider] = res.Vector
	return res.Vector, nil
}

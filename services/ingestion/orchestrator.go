// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	"github.com/rama-labs/rama/services/vectorstore"
	"github.com/rama-labs/rama/services/verifier/datatypes"
)

var tracer = otel.Tracer("rama.ingestion")

var (
	// ErrAlreadyRunning means another ingestion run holds the singleton slot.
	ErrAlreadyRunning = errors.New("ingestion is already running")
	// ErrCooldown means the last run finished too recently.
	ErrCooldown = errors.New("ingestion is cooling down")
)

// Store is the docstore surface the pipeline needs.
type Store interface {
	StartIngestRun(ctx context.Context, runID, triggeredBy string) error
	FinishIngestRun(ctx context.Context, runID string, result docstore.IngestRunDoc) error
	LastFinishedRun(ctx context.Context) (*docstore.IngestRunDoc, error)
	UpsertVerifiedClaim(ctx context.Context, doc docstore.VerifiedClaimDoc) error
	InsertRawItem(ctx context.Context, doc docstore.RawItemDoc) error
	RawItemExists(ctx context.Context, kind, urlNormalized, contentKey string) (bool, error)
}

var _ Store = (*docstore.MongoStore)(nil)

// Embedder produces document vectors. *embeddings.Chain satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) (*embeddings.BatchResult, error)
}

var _ Embedder = (*embeddings.Chain)(nil)

// Source is the connector surface the pipeline needs. *connectors.Client
// satisfies it.
type Source interface {
	FetchNews(ctx context.Context, opts connectors.FetchOptions) ([]connectors.RawItem, error)
	FetchGov(ctx context.Context, opts connectors.FetchOptions) ([]connectors.RawItem, error)
	FetchSocial(ctx context.Context, opts connectors.FetchOptions) ([]connectors.RawItem, error)
	FetchFactChecks(ctx context.Context, opts connectors.FetchOptions) ([]connectors.FactCheckItem, error)
}

var _ Source = (*connectors.Client)(nil)

// Config tunes the pipeline.
type Config struct {
	Cooldown         time.Duration
	ConnectorTimeout time.Duration
	EmbedBatchSize   int
	FetchLimit       int
	ChunkSize        int
	ChunkOverlap     int
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Minute
	}
	if cfg.ConnectorTimeout <= 0 {
		cfg.ConnectorTimeout = 60 * time.Second
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 100
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return cfg
}

// Orchestrator runs the ingestion pipeline end to end.
type Orchestrator struct {
	store    Store
	index    vectorstore.Index
	embedder Embedder
	source   Source
	creds    *datatypes.CredibilityTable
	cfg      Config
}

func NewOrchestrator(store Store, index vectorstore.Index, embedder Embedder, source Source, creds *datatypes.CredibilityTable, cfg Config) *Orchestrator {
	if creds == nil {
		creds = datatypes.DefaultCredibilityTable()
	}
	return &Orchestrator{
		store:    store,
		index:    index,
		embedder: embedder,
		source:   source,
		creds:    creds,
		cfg:      applyConfigDefaults(cfg),
	}
}

// kindCollections maps source kinds to their vector collections.
var kindCollections = map[string]string{
	datatypes.KindNews:   vectorstore.CollectionNews,
	datatypes.KindGov:    vectorstore.CollectionGov,
	datatypes.KindSocial: vectorstore.CollectionSocial,
}

// Run executes one ingestion run. force bypasses the cooldown, never the
// singleton gate. The returned document reflects the terminal run state.
func (o *Orchestrator) Run(ctx context.Context, force bool, triggeredBy string) (*docstore.IngestRunDoc, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()
	span.SetAttributes(attribute.Bool("force", force), attribute.String("triggered_by", triggeredBy))

	if !force {
		last, err := o.store.LastFinishedRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check last ingestion run: %w", err)
		}
		if last != nil && !last.FinishedAt.IsZero() && time.Since(last.FinishedAt) < o.cfg.Cooldown {
			return nil, fmt.Errorf("%w: last run finished %s ago",
				ErrCooldown, time.Since(last.FinishedAt).Round(time.Second))
		}
	}

	runID := uuid.NewString()
	if err := o.store.StartIngestRun(ctx, runID, triggeredBy); err != nil {
		if errors.Is(err, docstore.ErrRunActive) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("run_id", runID))
	slog.Info("Ingestion run started", "run_id", runID, "triggered_by", triggeredBy)

	result := o.execute(ctx, runID)
	result.RunID = runID
	result.TriggeredBy = triggeredBy

	if err := o.store.FinishIngestRun(ctx, runID, *result); err != nil {
		slog.Error("Failed to record ingestion run result", "run_id", runID, "error", err)
	}
	slog.Info("Ingestion run finished",
		"run_id", runID,
		"status", result.Status,
		"new_documents", result.NewDocuments,
		"new_claims", result.NewClaims,
		"duplicates", result.Duplicates,
		"errors", len(result.Errors))
	if result.Status == docstore.RunStatusFailed {
		span.SetStatus(codes.Error, "ingestion run failed")
	}
	return result, nil
}

// fetchResults holds the fan-out output, one slot per connector.
type fetchResults struct {
	mu         sync.Mutex
	docs       map[string][]connectors.RawItem
	factChecks []connectors.FactCheckItem
	failures   []string
}

func (r *fetchResults) fail(kind string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", kind, err))
}

func (o *Orchestrator) execute(ctx context.Context, runID string) *docstore.IngestRunDoc {
	results := &fetchResults{docs: make(map[string][]connectors.RawItem)}
	opts := connectors.FetchOptions{Limit: o.cfg.FetchLimit}

	fetchDocs := func(kind string, fetch func(context.Context, connectors.FetchOptions) ([]connectors.RawItem, error)) func() error {
		return func() error {
			fctx, cancel := context.WithTimeout(ctx, o.cfg.ConnectorTimeout)
			defer cancel()
			items, err := fetch(fctx, opts)
			if err != nil {
				slog.Warn("Connector fetch failed", "run_id", runID, "kind", kind, "error", err)
				results.fail(kind, err)
				return nil
			}
			results.mu.Lock()
			results.docs[kind] = items
			results.mu.Unlock()
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(fetchDocs(datatypes.KindNews, o.source.FetchNews))
	g.Go(fetchDocs(datatypes.KindGov, o.source.FetchGov))
	g.Go(fetchDocs(datatypes.KindSocial, o.source.FetchSocial))
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, o.cfg.ConnectorTimeout)
		defer cancel()
		items, err := o.source.FetchFactChecks(fctx, opts)
		if err != nil {
			slog.Warn("Connector fetch failed", "run_id", runID, "kind", "factcheck", "error", err)
			results.fail(datatypes.KindFactCheck, err)
			return nil
		}
		results.mu.Lock()
		results.factChecks = items
		results.mu.Unlock()
		return nil
	})
	_ = g.Wait()

	result := &docstore.IngestRunDoc{
		Fetched: map[string]int{},
		Errors:  results.failures,
	}
	for kind, items := range results.docs {
		result.Fetched[kind] = len(items)
	}
	result.Fetched[datatypes.KindFactCheck] = len(results.factChecks)

	if len(results.failures) == 4 {
		result.Status = docstore.RunStatusFailed
		return result
	}

	dedup := NewDeduper()
	for _, kind := range []string{datatypes.KindNews, datatypes.KindGov, datatypes.KindSocial} {
		o.ingestDocuments(ctx, kind, results.docs[kind], dedup, result)
	}
	o.ingestFactChecks(ctx, results.factChecks, result)

	switch {
	case result.NewDocuments == 0 && result.NewClaims == 0 && len(result.Errors) > 0 && result.Duplicates == 0:
		result.Status = docstore.RunStatusFailed
	case len(result.Errors) > 0:
		result.Status = docstore.RunStatusPartial
	default:
		result.Status = docstore.RunStatusOK
	}
	return result
}

// ingestDocuments chunks, embeds, and persists one kind's items. Vectors
// are written before the raw document so a crash can only leave orphan
// vectors, never an unindexed document.
func (o *Orchestrator) ingestDocuments(ctx context.Context, kind string, items []connectors.RawItem, dedup *Deduper, result *docstore.IngestRunDoc) {
	collection := kindCollections[kind]
	for _, item := range items {
		normURL := NormalizeURL(item.URL)
		text := item.Body
		if item.Title != "" {
			text = item.Title + "\n\n" + item.Body
		}
		key := ContentKey(text)

		if dedup.Seen(normURL, key) {
			result.Duplicates++
			continue
		}
		exists, err := o.store.RawItemExists(ctx, kind, normURL, key)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s dedupe check: %v", kind, err))
			continue
		}
		if exists {
			result.Duplicates++
			continue
		}

		score, band := o.creds.Classify(kind, item.SourceName, item.URL)
		chunks := ChunkText(text, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
		if len(chunks) == 0 {
			continue
		}

		// Derived from the document identity, so a retry after a partial
		// failure replaces its vectors instead of accumulating new ones.
		docID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(normURL+"|"+key)).String()
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, provider, err := o.embedBatches(ctx, texts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s embed: %v", kind, err))
			continue
		}

		records := make([]vectorstore.Record, len(chunks))
		for i, c := range chunks {
			records[i] = vectorstore.Record{
				RecordID:    fmt.Sprintf("%s#%d", docID, c.Ordinal),
				Content:     c.Text,
				SourceName:  item.SourceName,
				URL:         item.URL,
				Kind:        kind,
				PublishedAt: item.PublishedAt.Unix(),
				Credibility: score,
				Band:        band,
				Language:    item.Language,
				Ordinal:     c.Ordinal,
				Vector:      vectors[i],
			}
		}
		if err := o.persistVectors(ctx, collection, provider, len(vectors[0]), records); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s index: %v", kind, err))
			continue
		}

		doc := docstore.RawItemDoc{
			DocID:         docID,
			Kind:          kind,
			SourceName:    item.SourceName,
			Title:         item.Title,
			Body:          item.Body,
			URL:           item.URL,
			URLNormalized: normURL,
			ContentKey:    key,
			Credibility:   score,
			Band:          band,
			Language:      item.Language,
			PublishedAt:   item.PublishedAt,
			IngestedAt:    time.Now().UTC(),
			Chunks:        len(chunks),
		}
		if err := o.store.InsertRawItem(ctx, doc); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s store: %v", kind, err))
			continue
		}
		result.NewDocuments++
	}
}

// ingestFactChecks embeds published fact checks into the canon collection
// and upserts the claim documents. Claim IDs are derived from publisher
// and claim text, so re-ingesting the same review overwrites in place.
func (o *Orchestrator) ingestFactChecks(ctx context.Context, items []connectors.FactCheckItem, result *docstore.IngestRunDoc) {
	for _, item := range items {
		claimID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(item.Publisher+"|"+strings.ToLower(item.Claim))).String()
		verdict := NormalizeRating(item.Rating, item.RatingValue)
		if verdict == datatypes.VerdictUnverified {
			// The canon holds settled verdicts only. A review the
			// publisher itself marks unresolved is not one.
			continue
		}
		score, band := o.creds.Classify(datatypes.KindFactCheck, item.Publisher, item.URL)

		vectors, provider, err := o.embedBatches(ctx, []string{item.Claim})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("factcheck embed: %v", err))
			continue
		}
		record := vectorstore.Record{
			RecordID:    claimID,
			Content:     item.Claim,
			SourceName:  item.Publisher,
			URL:         item.URL,
			Kind:        datatypes.KindFactCheck,
			PublishedAt: item.ReviewedAt.Unix(),
			Credibility: score,
			Band:        band,
			Language:    item.Language,
			Verdict:     verdict,
			Explanation: item.Explanation,
			Vector:      vectors[0],
		}
		if err := o.persistVectors(ctx, vectorstore.CollectionVerifiedClaims, provider, len(vectors[0]), []vectorstore.Record{record}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("factcheck index: %v", err))
			continue
		}

		doc := docstore.VerifiedClaimDoc{
			ClaimID:     claimID,
			Claim:       item.Claim,
			Verdict:     verdict,
			Explanation: item.Explanation,
			Publisher:   item.Publisher,
			URL:         item.URL,
			Credibility: score,
			Language:    item.Language,
			ReviewedAt:  item.ReviewedAt,
			IngestedAt:  time.Now().UTC(),
		}
		if err := o.store.UpsertVerifiedClaim(ctx, doc); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("factcheck store: %v", err))
			continue
		}
		result.NewClaims++
	}
}

// persistVectors records the embedding provider for the collection and
// upserts the records. A provider mismatch refuses the write so one
// collection never mixes vector spaces.
func (o *Orchestrator) persistVectors(ctx context.Context, collection, provider string, dims int, records []vectorstore.Record) error {
	if err := o.index.SetProvider(ctx, collection, provider, dims); err != nil {
		return err
	}
	return o.index.Upsert(ctx, collection, records)
}

// embedBatches embeds texts in fixed-size batches. Every batch must come
// from the same provider; a mid-document provider switch aborts rather
// than mixing vector spaces within one document.
func (o *Orchestrator) embedBatches(ctx context.Context, texts []string) ([][]float32, string, error) {
	var (
		vectors  [][]float32
		provider string
	)
	for start := 0; start < len(texts); start += o.cfg.EmbedBatchSize {
		end := start + o.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := o.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, "", err
		}
		if provider == "" {
			provider = batch.Provider
		} else if provider != batch.Provider {
			return nil, "", fmt.Errorf("embedding provider changed from %s to %s mid-document", provider, batch.Provider)
		}
		vectors = append(vectors, batch.Vectors...)
	}
	return vectors, provider, nil
}

// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rama.vectorstore")

// ErrProviderMismatch is returned when a write would change the embedding
// provider already recorded for a collection.
var ErrProviderMismatch = errors.New("collection embedding provider mismatch")

// WeaviateIndex implements Index over a Weaviate instance.
type WeaviateIndex struct {
	client *weaviate.Client
}

// NewWeaviateIndex wraps an already connected client.
func NewWeaviateIndex(client *weaviate.Client) *WeaviateIndex {
	return &WeaviateIndex{client: client}
}

func validCollection(collection string) error {
	switch collection {
	case CollectionVerifiedClaims, CollectionNews, CollectionGov, CollectionSocial:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
}

// objectUUID derives a stable Weaviate object ID from the record identity,
// so re-upserting the same record replaces rather than duplicates it.
func objectUUID(collection, recordID string) strfmt.UUID {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(collection+"/"+recordID))
	return strfmt.UUID(id.String())
}

// Upsert writes records in one batch request.
func (w *WeaviateIndex) Upsert(ctx context.Context, collection string, records []Record) error {
	ctx, span := tracer.Start(ctx, "WeaviateIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("records", len(records)),
	)

	if err := validCollection(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(records))
	for i, rec := range records {
		props := map[string]interface{}{
			"record_id":         rec.RecordID,
			"content":           rec.Content,
			"source_name":       rec.SourceName,
			"url":               rec.URL,
			"kind":              rec.Kind,
			"published_at":      rec.PublishedAt,
			"credibility_score": rec.Credibility,
			"credibility_band":  rec.Band,
			"language":          rec.Language,
			"chunk_ordinal":     rec.Ordinal,
		}
		if collection == CollectionVerifiedClaims {
			props["verdict"] = rec.Verdict
			props["explanation"] = rec.Explanation
		}
		objects[i] = &models.Object{
			Class:      collection,
			ID:         objectUUID(collection, rec.RecordID),
			Vector:     rec.Vector,
			Properties: props,
		}
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("weaviate batch upsert failed: %w", err)
	}

	var failed []string
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, e := range item.Result.Errors.Error {
				failed = append(failed, e.Message)
			}
		}
	}
	if len(failed) > 0 {
		err := fmt.Errorf("weaviate rejected %d objects: %s", len(failed), strings.Join(failed, "; "))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// weaviateHit mirrors the GraphQL Get response for evidence classes.
type weaviateHit struct {
	RecordID    string  `json:"record_id"`
	Content     string  `json:"content"`
	SourceName  string  `json:"source_name"`
	URL         string  `json:"url"`
	Kind        string  `json:"kind"`
	PublishedAt float64 `json:"published_at"`
	Credibility float64 `json:"credibility_score"`
	Band        string  `json:"credibility_band"`
	Language    string  `json:"language"`
	Verdict     string  `json:"verdict"`
	Explanation string  `json:"explanation"`
	Additional  struct {
		ID        string   `json:"id"`
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}

// getEnvelope matches {"Get": {"<Class>": [...]}} for any class name.
type getEnvelope struct {
	Get map[string][]weaviateHit `json:"Get"`
}

// parseGraphQLResponse converts Weaviate's dynamic response payload into a
// typed struct. T must carry json tags matching the response shape.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

// Query runs a nearVector search. Certainty is used as the similarity score;
// results below minSimilarity are dropped even if Weaviate returns them.
func (w *WeaviateIndex) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "WeaviateIndex.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
		attribute.Float64("min_similarity", minSimilarity),
	)

	if err := validCollection(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)
	if minSimilarity > 0 {
		nearVector = nearVector.WithCertainty(float32(minSimilarity))
	}

	fields := []graphql.Field{
		{Name: "record_id"},
		{Name: "content"},
		{Name: "source_name"},
		{Name: "url"},
		{Name: "kind"},
		{Name: "published_at"},
		{Name: "credibility_score"},
		{Name: "credibility_band"},
		{Name: "language"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
		}},
	}
	if collection == CollectionVerifiedClaims {
		fields = append(fields,
			graphql.Field{Name: "verdict"},
			graphql.Field{Name: "explanation"},
		)
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(collection).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	parsed, err := parseGraphQLResponse[getEnvelope](result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	raw := parsed.Get[collection]
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		sim := 0.0
		if h.Additional.Certainty != nil {
			sim = float64(*h.Additional.Certainty)
		}
		if sim < minSimilarity {
			continue
		}
		hits = append(hits, Hit{
			RecordID:    h.RecordID,
			Content:     h.Content,
			SourceName:  h.SourceName,
			URL:         h.URL,
			Kind:        h.Kind,
			PublishedAt: int64(h.PublishedAt),
			Credibility: h.Credibility,
			Band:        h.Band,
			Language:    h.Language,
			Verdict:     h.Verdict,
			Explanation: h.Explanation,
			Similarity:  sim,
		})
	}
	sortHits(hits)
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// Count returns the object count via a meta aggregation.
func (w *WeaviateIndex) Count(ctx context.Context, collection string) (int64, error) {
	if err := validCollection(collection); err != nil {
		return 0, err
	}

	agg, err := w.client.GraphQL().Aggregate().
		WithClassName(collection).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate aggregate failed: %w", err)
	}

	type aggEnvelope struct {
		Aggregate map[string][]struct {
			Meta struct {
				Count float64 `json:"count"`
			} `json:"meta"`
		} `json:"Aggregate"`
	}
	parsed, err := parseGraphQLResponse[aggEnvelope](agg)
	if err != nil {
		return 0, err
	}
	rows := parsed.Aggregate[collection]
	if len(rows) == 0 {
		return 0, nil
	}
	return int64(rows[0].Meta.Count), nil
}

// Provider reads the embedding provider recorded for a collection.
func (w *WeaviateIndex) Provider(ctx context.Context, collection string) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}

	objs, err := w.client.Data().ObjectsGetter().
		WithClassName("CollectionMeta").
		WithID(string(objectUUID("CollectionMeta", collection))).
		Do(ctx)
	if err != nil {
		var clientErr *fault.WeaviateClientError
		if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
			// Absent metadata means the collection was never written.
			return "", nil
		}
		return "", fmt.Errorf("failed to read embedding provider for %s: %w", collection, err)
	}
	if len(objs) == 0 {
		return "", nil
	}
	props, ok := objs[0].Properties.(map[string]interface{})
	if !ok {
		return "", nil
	}
	provider, _ := props["embedding_provider"].(string)
	return provider, nil
}

// SetProvider records the provider for a collection, refusing silent changes.
func (w *WeaviateIndex) SetProvider(ctx context.Context, collection, provider string, dimensions int) error {
	if err := validCollection(collection); err != nil {
		return err
	}

	existing, err := w.Provider(ctx, collection)
	if err != nil {
		return err
	}
	if existing == provider {
		if existing != "" {
			return nil
		}
	} else if existing != "" {
		return fmt.Errorf("%w: %s already embedded with %s, refusing %s",
			ErrProviderMismatch, collection, existing, provider)
	}

	props := map[string]interface{}{
		"collection":         collection,
		"embedding_provider": provider,
		"dimensions":         dimensions,
		"updated_at":         time.Now().UnixMilli(),
	}
	_, err = w.client.Data().Creator().
		WithClassName("CollectionMeta").
		WithID(string(objectUUID("CollectionMeta", collection))).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to record embedding provider for %s: %w", collection, err)
	}
	slog.Info("Recorded collection embedding provider",
		"collection", collection, "provider", provider, "dimensions", dimensions)
	return nil
}

var _ Index = (*WeaviateIndex)(nil)

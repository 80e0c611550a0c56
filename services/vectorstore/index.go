// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vectorstore provides the named vector collections backing claim
// verification: the verified-claims canon plus the news, government, and
// social evidence indexes.
package vectorstore

import (
	"context"
	"errors"
	"sort"
)

// Weaviate class names for the four logical collections.
const (
	CollectionVerifiedClaims = "VerifiedClaim"
	CollectionNews           = "NewsArticle"
	CollectionGov            = "GovBulletin"
	CollectionSocial         = "SocialPost"
)

// ErrUnknownCollection is returned for a class name outside the fixed set.
var ErrUnknownCollection = errors.New("unknown vector collection")

// Record is one embedded snippet ready for upsert. RecordID is the caller's
// stable identity; writing the same RecordID again replaces the stored
// object instead of duplicating it.
type Record struct {
	RecordID    string
	Content     string
	SourceName  string
	URL         string
	Kind        string
	PublishedAt int64
	Credibility float64
	Band        string
	Language    string
	Ordinal     int
	Verdict     string
	Explanation string
	Vector      []float32
}

// Hit is one query result with its similarity in [0,1].
type Hit struct {
	RecordID    string
	Content     string
	SourceName  string
	URL         string
	Kind        string
	PublishedAt int64
	Credibility float64
	Band        string
	Language    string
	Verdict     string
	Explanation string
	Similarity  float64
}

// Index is the contract the engine and the ingestion pipeline depend on.
type Index interface {
	// Upsert writes records into a collection. The batch either fully
	// succeeds or returns an error; callers may retry with the same
	// RecordIDs safely.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query returns up to k hits at or above minSimilarity, ordered by
	// similarity with deterministic tie-breaking.
	Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]Hit, error)

	// Count returns the number of objects in a collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Provider returns the embedding provider recorded for a collection,
	// or "" if the collection has never been written.
	Provider(ctx context.Context, collection string) (string, error)

	// SetProvider records which embedding provider produced a collection's
	// vectors. It is an error to change an already recorded provider.
	SetProvider(ctx context.Context, collection, provider string, dimensions int) error
}

// sortHits orders hits by similarity descending, breaking ties by
// credibility descending, then published_at descending, then RecordID
// ascending. The full ordering is total, so equal inputs always produce
// the same ranking.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Credibility != b.Credibility {
			return a.Credibility > b.Credibility
		}
		if a.PublishedAt != b.PublishedAt {
			return a.PublishedAt > b.PublishedAt
		}
		return a.RecordID < b.RecordID
	})
}

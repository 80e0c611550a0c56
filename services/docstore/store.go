// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rama.docstore")

// ErrRunActive is returned by StartIngestRun when another run holds the
// singleton slot.
var ErrRunActive = errors.New("an ingestion run is already active")

const databaseName = "rama"

// Collection names.
const (
	collVerifiedClaims = "verified_claims"
	collNewsItems      = "news_items"
	collGovItems       = "gov_items"
	collSocialItems    = "social_items"
	collClaimLogs      = "claim_logs"
	collIngestRuns     = "ingest_runs"
	collFeedback       = "feedback"
)

// MongoStore is the MongoDB-backed document store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and prepares the database handle.
// The caller owns the client lifetime via Close.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(databaseName)}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether MongoDB is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the store relies on. Idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collVerifiedClaims: {
			{Keys: bson.D{{Key: "claim_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collNewsItems: {
			{Keys: bson.D{{Key: "url_normalized", Value: 1}}},
			{Keys: bson.D{{Key: "content_key", Value: 1}}},
		},
		collGovItems: {
			{Keys: bson.D{{Key: "url_normalized", Value: 1}}},
			{Keys: bson.D{{Key: "content_key", Value: 1}}},
		},
		collSocialItems: {
			{Keys: bson.D{{Key: "url_normalized", Value: 1}}},
			{Keys: bson.D{{Key: "content_key", Value: 1}}},
		},
		collClaimLogs: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_key", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collIngestRuns: {
			// Partial unique index is the singleton gate: at most one
			// document may hold status RUNNING at a time.
			{
				Keys: bson.D{{Key: "status", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": RunStatusRunning}),
			},
			{Keys: bson.D{{Key: "finished_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// rawItemCollection maps a source kind to its collection.
func rawItemCollection(kind string) (string, error) {
	switch kind {
	case "news":
		return collNewsItems, nil
	case "gov":
		return collGovItems, nil
	case "social":
		return collSocialItems, nil
	default:
		return "", fmt.Errorf("unknown raw item kind %q", kind)
	}
}

// UpsertVerifiedClaim inserts or replaces a canonical claim by claim_id.
func (s *MongoStore) UpsertVerifiedClaim(ctx context.Context, doc VerifiedClaimDoc) error {
	ctx, span := tracer.Start(ctx, "MongoStore.UpsertVerifiedClaim")
	defer span.End()

	_, err := s.db.Collection(collVerifiedClaims).UpdateOne(ctx,
		bson.M{"claim_id": doc.ClaimID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert verified claim %s: %w", doc.ClaimID, err)
	}
	return nil
}

// InsertRawItem stores an ingested document in its kind's collection.
func (s *MongoStore) InsertRawItem(ctx context.Context, doc RawItemDoc) error {
	ctx, span := tracer.Start(ctx, "MongoStore.InsertRawItem")
	defer span.End()
	span.SetAttributes(attribute.String("kind", doc.Kind))

	coll, err := rawItemCollection(doc.Kind)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert %s item: %w", doc.Kind, err)
	}
	return nil
}

// RawItemExists reports whether a document with the given normalized URL
// or content key was already ingested for the kind.
func (s *MongoStore) RawItemExists(ctx context.Context, kind, urlNormalized, contentKey string) (bool, error) {
	coll, err := rawItemCollection(kind)
	if err != nil {
		return false, err
	}
	clauses := []bson.M{}
	if urlNormalized != "" {
		clauses = append(clauses, bson.M{"url_normalized": urlNormalized})
	}
	if contentKey != "" {
		clauses = append(clauses, bson.M{"content_key": contentKey})
	}
	if len(clauses) == 0 {
		return false, nil
	}
	n, err := s.db.Collection(coll).CountDocuments(ctx, bson.M{"$or": clauses}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check %s item existence: %w", kind, err)
	}
	return n > 0, nil
}

// AppendClaimLog stores one verification log entry.
func (s *MongoStore) AppendClaimLog(ctx context.Context, doc ClaimLogDoc) error {
	if _, err := s.db.Collection(collClaimLogs).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append claim log: %w", err)
	}
	return nil
}

// RecentClaimLogs returns the newest log entries, most recent first.
func (s *MongoStore) RecentClaimLogs(ctx context.Context, limit int) ([]ClaimLogDoc, error) {
	ctx, span := tracer.Start(ctx, "MongoStore.RecentClaimLogs")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.db.Collection(collClaimLogs).Find(ctx, bson.M{}, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query claim logs: %w", err)
	}
	defer cur.Close(ctx)

	var logs []ClaimLogDoc
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode claim logs: %w", err)
	}
	return logs, nil
}

// UserHistory returns the newest log entries for one user key.
func (s *MongoStore) UserHistory(ctx context.Context, userKey string, limit int) ([]ClaimLogDoc, error) {
	ctx, span := tracer.Start(ctx, "MongoStore.UserHistory")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.db.Collection(collClaimLogs).Find(ctx, bson.M{"user_key": userKey}, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query user history: %w", err)
	}
	defer cur.Close(ctx)

	var logs []ClaimLogDoc
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode user history: %w", err)
	}
	return logs, nil
}

// InsertFeedback stores one feedback entry.
func (s *MongoStore) InsertFeedback(ctx context.Context, doc FeedbackDoc) error {
	if _, err := s.db.Collection(collFeedback).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// staleRunAfter bounds how long a RUNNING run may hold the singleton slot.
// A crash mid-run never reaches FinishIngestRun, so runs older than this are
// presumed dead and expired on the next start attempt.
const staleRunAfter = 2 * time.Hour

// staleRunFilter matches RUNNING runs started before the staleness bound.
func staleRunFilter(now time.Time) bson.M {
	return bson.M{
		"status":     RunStatusRunning,
		"started_at": bson.M{"$lt": now.Add(-staleRunAfter)},
	}
}

// expireStaleRuns marks abandoned RUNNING runs FAILED so they release the
// singleton slot.
func (s *MongoStore) expireStaleRuns(ctx context.Context, now time.Time) error {
	res, err := s.db.Collection(collIngestRuns).UpdateMany(ctx, staleRunFilter(now),
		bson.M{"$set": bson.M{
			"status":      RunStatusFailed,
			"errors":      []string{"run expired: still RUNNING past the staleness bound"},
			"finished_at": now,
		}})
	if err != nil {
		return fmt.Errorf("failed to expire stale ingest runs: %w", err)
	}
	if res.ModifiedCount > 0 {
		slog.Warn("Expired stale ingest runs", "count", res.ModifiedCount)
	}
	return nil
}

// StartIngestRun claims the ingestion singleton slot. Returns ErrRunActive
// if another run is already RUNNING; the partial unique index on status
// makes the claim atomic. Stale RUNNING runs are expired first so a crashed
// run cannot hold the slot forever.
func (s *MongoStore) StartIngestRun(ctx context.Context, runID, triggeredBy string) error {
	ctx, span := tracer.Start(ctx, "MongoStore.StartIngestRun")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	now := time.Now().UTC()
	if err := s.expireStaleRuns(ctx, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	doc := IngestRunDoc{
		RunID:       runID,
		Status:      RunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   now,
	}
	_, err := s.db.Collection(collIngestRuns).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrRunActive
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to start ingest run: %w", err)
	}
	return nil
}

// FinishIngestRun records the terminal state of a run and releases the
// singleton slot.
func (s *MongoStore) FinishIngestRun(ctx context.Context, runID string, result IngestRunDoc) error {
	ctx, span := tracer.Start(ctx, "MongoStore.FinishIngestRun")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID), attribute.String("status", result.Status))

	update := bson.M{"$set": bson.M{
		"status":        result.Status,
		"fetched":       result.Fetched,
		"new_documents": result.NewDocuments,
		"new_claims":    result.NewClaims,
		"duplicates":    result.Duplicates,
		"errors":        result.Errors,
		"finished_at":   time.Now().UTC(),
	}}
	res, err := s.db.Collection(collIngestRuns).UpdateOne(ctx, bson.M{"run_id": runID}, update)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to finish ingest run %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("ingest run %s not found", runID)
	}
	return nil
}

// LastFinishedRun returns the most recently finished run, or nil when no
// run has finished yet.
func (s *MongoStore) LastFinishedRun(ctx context.Context) (*IngestRunDoc, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	filter := bson.M{"status": bson.M{"$ne": RunStatusRunning}}

	var doc IngestRunDoc
	err := s.db.Collection(collIngestRuns).FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last finished run: %w", err)
	}
	return &doc, nil
}

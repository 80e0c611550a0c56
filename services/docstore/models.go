// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package docstore persists raw documents, verified claims, verification
// logs, ingestion runs, feedback, and user history in MongoDB. Vector data
// lives in the vectorstore; this package is the durable system of record.
package docstore

import "time"

// Ingestion run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusOK      = "OK"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"
)

// VerifiedClaimDoc is a canonical fact-checked claim.
type VerifiedClaimDoc struct {
	ClaimID     string    `bson:"claim_id"`
	Claim       string    `bson:"claim"`
	Verdict     string    `bson:"verdict"`
	Explanation string    `bson:"explanation"`
	Publisher   string    `bson:"publisher"`
	URL         string    `bson:"url"`
	Credibility float64   `bson:"credibility_score"`
	Language    string    `bson:"language"`
	ReviewedAt  time.Time `bson:"reviewed_at"`
	IngestedAt  time.Time `bson:"ingested_at"`
}

// RawItemDoc is an ingested source document before chunking.
type RawItemDoc struct {
	DocID         string    `bson:"doc_id"`
	Kind          string    `bson:"kind"`
	SourceName    string    `bson:"source_name"`
	Title         string    `bson:"title"`
	Body          string    `bson:"body"`
	URL           string    `bson:"url"`
	URLNormalized string    `bson:"url_normalized"`
	ContentKey    string    `bson:"content_key"`
	Credibility   float64   `bson:"credibility_score"`
	Band          string    `bson:"credibility_band"`
	Language      string    `bson:"language"`
	PublishedAt   time.Time `bson:"published_at"`
	IngestedAt    time.Time `bson:"ingested_at"`
	Chunks        int       `bson:"chunks"`
}

// ClaimLogDoc records one verification request and its outcome.
type ClaimLogDoc struct {
	LogID      string    `bson:"log_id"`
	ClaimID    string    `bson:"claim_id"`
	Claim      string    `bson:"claim"`
	Verdict    string    `bson:"verdict"`
	Confidence float64   `bson:"confidence"`
	Mode       string    `bson:"mode"`
	ModelUsed  string    `bson:"model_used"`
	UserKey    string    `bson:"user_key"`
	Language   string    `bson:"language"`
	DurationMs int64     `bson:"duration_ms"`
	CreatedAt  time.Time `bson:"created_at"`
}

// IngestRunDoc tracks one ingestion run.
type IngestRunDoc struct {
	RunID        string         `bson:"run_id"`
	Status       string         `bson:"status"`
	TriggeredBy  string         `bson:"triggered_by"`
	Fetched      map[string]int `bson:"fetched,omitempty"`
	NewDocuments int            `bson:"new_documents"`
	NewClaims    int            `bson:"new_claims"`
	Duplicates   int            `bson:"duplicates"`
	Errors       []string       `bson:"errors,omitempty"`
	StartedAt    time.Time      `bson:"started_at"`
	FinishedAt   time.Time      `bson:"finished_at,omitempty"`
}

// FeedbackDoc stores user feedback on a verdict.
type FeedbackDoc struct {
	FeedbackID      string    `bson:"feedback_id"`
	ClaimText       string    `bson:"claim_text"`
	VerdictReturned string    `bson:"verdict_returned"`
	Comment         string    `bson:"comment"`
	ScreenshotURL   string    `bson:"screenshot_url,omitempty"`
	UserKey         string    `bson:"user_key"`
	CreatedAt       time.Time `bson:"created_at"`
}

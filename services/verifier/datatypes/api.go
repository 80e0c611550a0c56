// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the request/response contracts for the verifier
// HTTP API plus the source credibility tables shared by the engine and the
// ingestion pipeline.
package datatypes

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Verdict Taxonomy
// =============================================================================

const (
	VerdictTrue       = "true"
	VerdictFalse      = "false"
	VerdictMisleading = "misleading"
	VerdictUnverified = "unverified"
)

const (
	ModeExistingFactCheck = "existing_fact_check"
	ModeReasoned          = "reasoned"
	ModeRefused           = "refused"
)

// NormalizeVerdict coerces a free-form verdict string into the closed
// taxonomy. Anything unrecognized becomes "unverified".
func NormalizeVerdict(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case VerdictTrue:
		return VerdictTrue
	case VerdictFalse:
		return VerdictFalse
	case VerdictMisleading:
		return VerdictMisleading
	default:
		return VerdictUnverified
	}
}

// =============================================================================
// Verify
// =============================================================================

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	Claim    string `json:"text" binding:"required,claimtext"`
	Language string `json:"language"`
	Category string `json:"category"`
}

// SourceUsed describes one piece of evidence the model actually cited.
type SourceUsed struct {
	Source           string  `json:"source"`
	URL              string  `json:"url"`
	Snippet          string  `json:"snippet"`
	Kind             string  `json:"kind"`
	CredibilityScore float64 `json:"credibility_score"`
	CredibilityLevel string  `json:"credibility_level"`
	IsVerifiedSource bool    `json:"is_verified_source"`
	Similarity       float64 `json:"similarity"`
}

// VerifyResponse is the body returned by POST /verify.
type VerifyResponse struct {
	ClaimID            string       `json:"claim_id"`
	Verdict            string       `json:"verdict"`
	Confidence         float64      `json:"confidence"`
	ContradictionScore float64      `json:"contradiction_score"`
	Explanation        string       `json:"explanation"`
	SourcesUsed        []SourceUsed `json:"sources_used"`
	RawAnswer          string       `json:"raw_answer,omitempty"`
	Mode               string       `json:"mode"`
	ModelUsed          string       `json:"model_used"`
	Language           string       `json:"language"`
	ProcessingMs       int64        `json:"processing_ms"`
	Timestamp          time.Time    `json:"timestamp"`
}

// =============================================================================
// Ingestion
// =============================================================================

// IngestRequest is the body of POST /admin/ingest.
type IngestRequest struct {
	Force      bool     `json:"force"`
	Connectors []string `json:"connectors"`
}

// IngestResponse reports the outcome of an ingestion run.
type IngestResponse struct {
	RunID        string         `json:"run_id"`
	Status       string         `json:"status"`
	Fetched      map[string]int `json:"fetched"`
	NewDocuments int            `json:"new_documents"`
	NewClaims    int            `json:"new_claims"`
	Duplicates   int            `json:"duplicates"`
	DurationMs   int64          `json:"duration_ms"`
	Errors       []string       `json:"errors,omitempty"`
}

// =============================================================================
// Health
// =============================================================================

// BackendHealth is the sampled status of one model backend.
type BackendHealth struct {
	Healthy   bool      `json:"healthy"`
	LatencyMs int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// IngestSummary is the compact view of the most recent finished run.
type IngestSummary struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                   `json:"status"`
	Mode       string                   `json:"mode"`
	Backends   map[string]BackendHealth `json:"backends"`
	LastIngest *IngestSummary           `json:"last_ingest,omitempty"`
}

// =============================================================================
// Feedback / History / Logs
// =============================================================================

// FeedbackRequest is the body of POST /feedback. VerdictReturned echoes
// the verdict the service gave for the claim being disputed or confirmed.
type FeedbackRequest struct {
	ClaimText       string `json:"claim_text" binding:"required"`
	VerdictReturned string `json:"verdict_returned" binding:"required"`
	Comment         string `json:"comment"`
	ScreenshotURL   string `json:"screenshot_url"`
}

// ClaimLogView is one verification record as exposed by GET /admin/logs
// and GET /user/history.
type ClaimLogView struct {
	LogID      string    `json:"log_id"`
	ClaimID    string    `json:"claim_id"`
	Claim      string    `json:"claim"`
	Verdict    string    `json:"verdict"`
	Confidence float64   `json:"confidence"`
	Mode       string    `json:"mode"`
	ModelUsed  string    `json:"model_used"`
	UserKey    string    `json:"user_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// =============================================================================
// Validation
// =============================================================================

// RegisterValidations installs custom binding validators on gin's engine.
// "claimtext" rejects claims shorter than 10 characters after trimming,
// so whitespace padding cannot sneak an empty claim past the minimum.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("claimtext", func(fl validator.FieldLevel) bool {
			return len(strings.TrimSpace(fl.Field().String())) >= 10
		})
	}
}

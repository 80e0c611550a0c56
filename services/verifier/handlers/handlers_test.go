// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/ingestion"
	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	datatypes.RegisterValidations()
}

// fakeVerifier delegates to a function field.
type fakeVerifier struct {
	verifyFunc func(ctx context.Context, req datatypes.VerifyRequest, userKey string) (*datatypes.VerifyResponse, error)
}

func (f *fakeVerifier) Verify(ctx context.Context, req datatypes.VerifyRequest, userKey string) (*datatypes.VerifyResponse, error) {
	return f.verifyFunc(ctx, req, userKey)
}

type fakeRunner struct {
	runFunc func(ctx context.Context, force bool, triggeredBy string) (*docstore.IngestRunDoc, error)
}

func (f *fakeRunner) Run(ctx context.Context, force bool, triggeredBy string) (*docstore.IngestRunDoc, error) {
	return f.runFunc(ctx, force, triggeredBy)
}

type fakeLogReader struct {
	recent  []docstore.ClaimLogDoc
	history []docstore.ClaimLogDoc
	err     error
}

func (f *fakeLogReader) RecentClaimLogs(context.Context, int) ([]docstore.ClaimLogDoc, error) {
	return f.recent, f.err
}

func (f *fakeLogReader) UserHistory(context.Context, string, int) ([]docstore.ClaimLogDoc, error) {
	return f.history, f.err
}

type fakeFeedbackStore struct {
	docs []docstore.FeedbackDoc
	err  error
}

func (f *fakeFeedbackStore) InsertFeedback(_ context.Context, doc docstore.FeedbackDoc) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

type fakeHealthSampler struct {
	snapshot map[string]llm.BackendStatus
	mode     string
	healthy  bool
}

func (f *fakeHealthSampler) Snapshot() map[string]llm.BackendStatus { return f.snapshot }
func (f *fakeHealthSampler) Mode() string                          { return f.mode }
func (f *fakeHealthSampler) AnyHealthy() bool                      { return f.healthy }

type fakeLastRun struct{ run *docstore.IngestRunDoc }

func (f *fakeLastRun) LastFinishedRun(context.Context) (*docstore.IngestRunDoc, error) {
	return f.run, nil
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandleVerifyClaim_Success(t *testing.T) {
	verifier := &fakeVerifier{verifyFunc: func(_ context.Context, req datatypes.VerifyRequest, userKey string) (*datatypes.VerifyResponse, error) {
		assert.Equal(t, "The central bank cut rates", req.Claim)
		assert.NotEmpty(t, userKey)
		return &datatypes.VerifyResponse{
			ClaimID: "c1", Verdict: datatypes.VerdictTrue, Confidence: 0.8,
			Mode: datatypes.ModeReasoned, SourcesUsed: []datatypes.SourceUsed{},
		}, nil
	}}
	r := gin.New()
	r.POST("/verify", middleware.Fingerprint(), HandleVerifyClaim(verifier))

	w := postJSON(r, "/verify", gin.H{"text": "The central bank cut rates"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.VerdictTrue, resp.Verdict)
}

func TestHandleVerifyClaim_RejectsShortClaim(t *testing.T) {
	r := gin.New()
	r.POST("/verify", HandleVerifyClaim(&fakeVerifier{}))

	for _, claim := range []string{"", "short", "         padded   "} {
		w := postJSON(r, "/verify", gin.H{"text": claim})
		assert.Equal(t, http.StatusBadRequest, w.Code, "claim: %q", claim)
	}
}

func TestHandleVerifyClaim_AcceptsTenCharClaim(t *testing.T) {
	verifier := &fakeVerifier{verifyFunc: func(context.Context, datatypes.VerifyRequest, string) (*datatypes.VerifyResponse, error) {
		return &datatypes.VerifyResponse{Verdict: datatypes.VerdictUnverified, Mode: datatypes.ModeReasoned}, nil
	}}
	r := gin.New()
	r.POST("/verify", HandleVerifyClaim(verifier))

	w := postJSON(r, "/verify", gin.H{"text": "exactly 10"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVerifyClaim_AllBackendsDown(t *testing.T) {
	verifier := &fakeVerifier{verifyFunc: func(context.Context, datatypes.VerifyRequest, string) (*datatypes.VerifyResponse, error) {
		return nil, llm.ErrAllBackendsDown
	}}
	r := gin.New()
	r.POST("/verify", HandleVerifyClaim(verifier))

	w := postJSON(r, "/verify", gin.H{"text": "Something long enough to verify"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "all_backends_down")
}

func TestHandleVerifyClaim_Timeout(t *testing.T) {
	verifier := &fakeVerifier{verifyFunc: func(context.Context, datatypes.VerifyRequest, string) (*datatypes.VerifyResponse, error) {
		return nil, context.DeadlineExceeded
	}}
	r := gin.New()
	r.POST("/verify", HandleVerifyClaim(verifier))

	w := postJSON(r, "/verify", gin.H{"text": "Something long enough to verify"})

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestHandleTriggerIngest_Success(t *testing.T) {
	runner := &fakeRunner{runFunc: func(_ context.Context, force bool, triggeredBy string) (*docstore.IngestRunDoc, error) {
		assert.True(t, force)
		assert.Equal(t, "admin", triggeredBy)
		return &docstore.IngestRunDoc{
			RunID: "run-1", Status: docstore.RunStatusOK,
			Fetched: map[string]int{"news": 10}, NewDocuments: 7, Duplicates: 3,
		}, nil
	}}
	r := gin.New()
	r.POST("/admin/ingest", HandleTriggerIngest(runner))

	w := postJSON(r, "/admin/ingest", gin.H{"force": true})

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, resp.NewDocuments)
}

func TestHandleTriggerIngest_AlreadyRunning(t *testing.T) {
	runner := &fakeRunner{runFunc: func(context.Context, bool, string) (*docstore.IngestRunDoc, error) {
		return nil, ingestion.ErrAlreadyRunning
	}}
	r := gin.New()
	r.POST("/admin/ingest", HandleTriggerIngest(runner))

	w := postJSON(r, "/admin/ingest", gin.H{})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_running")
}

func TestHandleTriggerIngest_Cooldown(t *testing.T) {
	runner := &fakeRunner{runFunc: func(context.Context, bool, string) (*docstore.IngestRunDoc, error) {
		return nil, ingestion.ErrCooldown
	}}
	r := gin.New()
	r.POST("/admin/ingest", HandleTriggerIngest(runner))

	w := postJSON(r, "/admin/ingest", gin.H{})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "cooldown")
}

func TestHandleHealth(t *testing.T) {
	sampler := &fakeHealthSampler{
		snapshot: map[string]llm.BackendStatus{
			"gemini": {Healthy: true, LatencyMs: 120, CheckedAt: time.Now()},
		},
		mode:    "online",
		healthy: true,
	}
	runs := &fakeLastRun{run: &docstore.IngestRunDoc{
		RunID: "run-9", Status: docstore.RunStatusPartial, FinishedAt: time.Now(),
	}}
	r := gin.New()
	r.GET("/health", HandleHealth(sampler, runs))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "online", resp.Mode)
	assert.True(t, resp.Backends["gemini"].Healthy)
	require.NotNil(t, resp.LastIngest)
	assert.Equal(t, "run-9", resp.LastIngest.RunID)
}

func TestHandleHealth_DegradedWhenAnyBackendDown(t *testing.T) {
	sampler := &fakeHealthSampler{mode: "online", healthy: true,
		snapshot: map[string]llm.BackendStatus{
			"gemini": {Healthy: true},
			"ollama": {Healthy: false},
		}}
	r := gin.New()
	r.GET("/health", HandleHealth(sampler, &fakeLastRun{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestHandleHealth_DegradedWhenNoBackendHealthy(t *testing.T) {
	sampler := &fakeHealthSampler{mode: "offline", healthy: false,
		snapshot: map[string]llm.BackendStatus{}}
	r := gin.New()
	r.GET("/health", HandleHealth(sampler, &fakeLastRun{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Nil(t, resp.LastIngest)
}

func TestHandleHealth_DegradedWhenLastIngestFailed(t *testing.T) {
	sampler := &fakeHealthSampler{mode: "online", healthy: true,
		snapshot: map[string]llm.BackendStatus{"gemini": {Healthy: true}}}
	runs := &fakeLastRun{run: &docstore.IngestRunDoc{
		RunID: "run-3", Status: docstore.RunStatusFailed, FinishedAt: time.Now(),
	}}
	r := gin.New()
	r.GET("/health", HandleHealth(sampler, runs))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestHandleFeedback(t *testing.T) {
	store := &fakeFeedbackStore{}
	r := gin.New()
	r.POST("/feedback", middleware.Fingerprint(), HandleFeedback(store))

	w := postJSON(r, "/feedback", gin.H{
		"claim_text":       "The central bank cut rates",
		"verdict_returned": "false",
		"comment":          "source is outdated",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, store.docs, 1)
	assert.Equal(t, "false", store.docs[0].VerdictReturned)
	assert.Equal(t, "The central bank cut rates", store.docs[0].ClaimText)
	assert.NotEmpty(t, store.docs[0].UserKey)
}

func TestHandleFeedback_RequiresClaimText(t *testing.T) {
	r := gin.New()
	r.POST("/feedback", HandleFeedback(&fakeFeedbackStore{}))

	w := postJSON(r, "/feedback", gin.H{"verdict_returned": "false"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUserHistory(t *testing.T) {
	reader := &fakeLogReader{history: []docstore.ClaimLogDoc{
		{LogID: "l1", Claim: "x", Verdict: "true", UserKey: "u-secret"},
	}}
	r := gin.New()
	r.GET("/user/history", middleware.Fingerprint(), HandleUserHistory(reader))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/user/history", nil)
	req.Header.Set(middleware.UserIDHeader, "u-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"l1"`)
	assert.NotContains(t, w.Body.String(), "u-secret", "history never echoes user keys")
}

func TestHandleRecentLogs(t *testing.T) {
	reader := &fakeLogReader{recent: []docstore.ClaimLogDoc{
		{LogID: "l1", Claim: "x", Verdict: "false", UserKey: "u-1"},
	}}
	r := gin.New()
	r.GET("/admin/logs", HandleRecentLogs(reader))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/logs?limit=10", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u-1", "admin view includes user keys")
}

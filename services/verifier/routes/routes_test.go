// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/verifier/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct{}

func (stubVerifier) Verify(context.Context, datatypes.VerifyRequest, string) (*datatypes.VerifyResponse, error) {
	return &datatypes.VerifyResponse{Verdict: datatypes.VerdictUnverified}, nil
}

type stubRunner struct{}

func (stubRunner) Run(context.Context, bool, string) (*docstore.IngestRunDoc, error) {
	return &docstore.IngestRunDoc{Status: docstore.RunStatusOK}, nil
}

type stubLogs struct{}

func (stubLogs) RecentClaimLogs(context.Context, int) ([]docstore.ClaimLogDoc, error) {
	return nil, nil
}
func (stubLogs) UserHistory(context.Context, string, int) ([]docstore.ClaimLogDoc, error) {
	return nil, nil
}

type stubFeedback struct{}

func (stubFeedback) InsertFeedback(context.Context, docstore.FeedbackDoc) error { return nil }

type stubSampler struct{}

func (stubSampler) Snapshot() map[string]llm.BackendStatus { return nil }
func (stubSampler) Mode() string                           { return "online" }
func (stubSampler) AnyHealthy() bool                       { return true }

type stubLastRun struct{}

func (stubLastRun) LastFinishedRun(context.Context) (*docstore.IngestRunDoc, error) {
	return nil, nil
}

func testRouter(adminToken string) *gin.Engine {
	r := gin.New()
	SetupRoutes(r, Deps{
		Verifier:   stubVerifier{},
		Runner:     stubRunner{},
		Logs:       stubLogs{},
		Feedback:   stubFeedback{},
		Sampler:    stubSampler{},
		LastRun:    stubLastRun{},
		AdminToken: adminToken,
		Version:    "test",
	})
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestSetupRoutes_PublicEndpoints(t *testing.T) {
	r := testRouter("secret")

	assert.Equal(t, http.StatusOK, get(r, "/").Code)
	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
	assert.Equal(t, http.StatusOK, get(r, "/metrics").Code)
	assert.Equal(t, http.StatusOK, get(r, "/user/history").Code)
}

func TestSetupRoutes_AdminRequiresToken(t *testing.T) {
	r := testRouter("secret")

	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin/logs").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/logs", nil)
	req.Header.Set("X-Admin-Token", "secret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_AdminDisabledWithoutToken(t *testing.T) {
	r := testRouter("")

	assert.Equal(t, http.StatusForbidden, get(r, "/admin/logs").Code)
}

func TestSetupRoutes_RootDescribesService(t *testing.T) {
	w := get(testRouter("x"), "/")
	assert.Contains(t, w.Body.String(), "rama-verifier")
	assert.Contains(t, w.Body.String(), "POST /verify")
}

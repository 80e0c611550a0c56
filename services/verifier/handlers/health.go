// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/verifier/datatypes"
)

// HealthSampler exposes the model backend health snapshot.
type HealthSampler interface {
	Snapshot() map[string]llm.BackendStatus
	Mode() string
	AnyHealthy() bool
}

// LastRunReader reads the most recent finished ingestion run.
type LastRunReader interface {
	LastFinishedRun(ctx context.Context) (*docstore.IngestRunDoc, error)
}

// HandleHealth serves GET /health. The service reports degraded when any
// configured model backend is down or the last ingestion run failed. The
// gateway still serves verdicts while at least one backend is healthy;
// degraded signals reduced redundancy, not an outage.
func HandleHealth(sampler HealthSampler, runs LastRunReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := datatypes.HealthResponse{
			Status:   "ok",
			Backends: map[string]datatypes.BackendHealth{},
		}

		if sampler != nil {
			resp.Mode = sampler.Mode()
			for id, st := range sampler.Snapshot() {
				resp.Backends[id] = datatypes.BackendHealth{
					Healthy:   st.Healthy,
					LatencyMs: st.LatencyMs,
					CheckedAt: st.CheckedAt,
				}
				if !st.Healthy {
					resp.Status = "degraded"
				}
			}
			if !sampler.AnyHealthy() {
				resp.Status = "degraded"
			}
		}

		if runs != nil {
			if last, err := runs.LastFinishedRun(c.Request.Context()); err == nil && last != nil {
				resp.LastIngest = &datatypes.IngestSummary{
					RunID:      last.RunID,
					Status:     last.Status,
					FinishedAt: last.FinishedAt,
				}
				if last.Status == docstore.RunStatusFailed {
					resp.Status = "degraded"
				}
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleRoot serves GET / with a short service descriptor.
func HandleRoot(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "rama-verifier",
			"version": version,
			"endpoints": []string{
				"POST /verify",
				"POST /feedback",
				"GET /user/history",
				"GET /health",
				"GET /metrics",
				"POST /admin/ingest",
				"GET /admin/logs",
			},
		})
	}
}

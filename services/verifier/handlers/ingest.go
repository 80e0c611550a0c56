// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/ingestion"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/observability"
)

// IngestRunner is the pipeline surface the admin ingest endpoint needs.
type IngestRunner interface {
	Run(ctx context.Context, force bool, triggeredBy string) (*docstore.IngestRunDoc, error)
}

// HandleTriggerIngest serves POST /admin/ingest. The run executes
// synchronously; the response carries the full run summary.
func HandleTriggerIngest(runner IngestRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleTriggerIngest")
		defer span.End()

		if runner == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "ingestion is not configured: no source connector URL",
			})
			return
		}

		var req datatypes.IngestRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "malformed ingest request: " + err.Error()})
				return
			}
		}

		start := time.Now()
		result, err := runner.Run(ctx, req.Force, "admin")
		if err != nil {
			switch {
			case errors.Is(err, ingestion.ErrAlreadyRunning):
				c.JSON(http.StatusConflict, gin.H{
					"status": "already_running",
					"error":  "an ingestion run is already in progress",
				})
			case errors.Is(err, ingestion.ErrCooldown):
				c.JSON(http.StatusTooManyRequests, gin.H{
					"status": "cooldown",
					"error":  err.Error(),
				})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed: " + err.Error()})
			}
			return
		}

		status := strings.ToLower(result.Status)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordIngestRun(status, map[string]int{
				"documents": result.NewDocuments,
				"claims":    result.NewClaims,
			})
		}

		c.JSON(http.StatusOK, datatypes.IngestResponse{
			RunID:        result.RunID,
			Status:       status,
			Fetched:      result.Fetched,
			NewDocuments: result.NewDocuments,
			NewClaims:    result.NewClaims,
			Duplicates:   result.Duplicates,
			DurationMs:   time.Since(start).Milliseconds(),
			Errors:       result.Errors,
		})
	}
}

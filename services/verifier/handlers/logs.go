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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/middleware"
)

// LogReader reads verification logs.
type LogReader interface {
	RecentClaimLogs(ctx context.Context, limit int) ([]docstore.ClaimLogDoc, error)
	UserHistory(ctx context.Context, userKey string, limit int) ([]docstore.ClaimLogDoc, error)
}

const maxLogLimit = 200

func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > maxLogLimit {
		return maxLogLimit
	}
	return n
}

func toViews(logs []docstore.ClaimLogDoc, includeUser bool) []datatypes.ClaimLogView {
	views := make([]datatypes.ClaimLogView, 0, len(logs))
	for _, l := range logs {
		v := datatypes.ClaimLogView{
			LogID:      l.LogID,
			ClaimID:    l.ClaimID,
			Claim:      l.Claim,
			Verdict:    l.Verdict,
			Confidence: l.Confidence,
			Mode:       l.Mode,
			ModelUsed:  l.ModelUsed,
			CreatedAt:  l.CreatedAt,
		}
		if includeUser {
			v.UserKey = l.UserKey
		}
		views = append(views, v)
	}
	return views
}

// HandleRecentLogs serves GET /admin/logs.
func HandleRecentLogs(reader LogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := reader.RecentClaimLogs(c.Request.Context(), parseLimit(c, 50))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": toViews(logs, true)})
	}
}

// HandleUserHistory serves GET /user/history for the calling client's
// fingerprint.
func HandleUserHistory(reader LogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := middleware.UserKey(c)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no client identity available"})
			return
		}
		logs, err := reader.UserHistory(c.Request.Context(), key, parseLimit(c, 20))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": toViews(logs, false)})
	}
}

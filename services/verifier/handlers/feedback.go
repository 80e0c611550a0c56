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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rama-labs/rama/services/docstore"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/middleware"
)

// FeedbackStore persists user feedback.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, doc docstore.FeedbackDoc) error
}

// HandleFeedback serves POST /feedback.
func HandleFeedback(store FeedbackStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "claim_text and verdict_returned are required",
			})
			return
		}

		doc := docstore.FeedbackDoc{
			FeedbackID:      uuid.NewString(),
			ClaimText:       req.ClaimText,
			VerdictReturned: req.VerdictReturned,
			Comment:         req.Comment,
			ScreenshotURL:   req.ScreenshotURL,
			UserKey:         middleware.UserKey(c),
			CreatedAt:       time.Now().UTC(),
		}
		if err := store.InsertFeedback(c.Request.Context(), doc); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"feedback_id": doc.FeedbackID})
	}
}

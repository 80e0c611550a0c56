// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the verifier HTTP endpoints as gin handler
// closures over narrow dependency interfaces.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/rama-labs/rama/services/llm"
	"github.com/rama-labs/rama/services/verifier/datatypes"
	"github.com/rama-labs/rama/services/verifier/middleware"
	"github.com/rama-labs/rama/services/verifier/observability"
)

var tracer = otel.Tracer("rama.verifier.handlers")

// Verifier is the engine surface the verify endpoint needs.
type Verifier interface {
	Verify(ctx context.Context, req datatypes.VerifyRequest, userKey string) (*datatypes.VerifyResponse, error)
}

// HandleVerifyClaim serves POST /verify.
func HandleVerifyClaim(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleVerifyClaim")
		defer span.End()

		var req datatypes.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "claim is required and must be at least 10 characters",
			})
			return
		}

		start := time.Now()
		resp, err := verifier.Verify(ctx, req, middleware.UserKey(c))
		if err != nil {
			status, reason := verifyErrorStatus(err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordVerifyError(reason)
			}
			c.JSON(status, gin.H{"error": "verification failed: " + reason})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordVerify(resp.Verdict, resp.Mode, time.Since(start).Seconds())
		}
		c.JSON(http.StatusOK, resp)
	}
}

func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrAllBackendsDown):
		return http.StatusServiceUnavailable, "all_backends_down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

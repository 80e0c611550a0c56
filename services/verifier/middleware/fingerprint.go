// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

// UserIDHeader lets clients carry a stable identity across requests.
const UserIDHeader = "X-User-ID"

const userKeyContextKey = "user_key"

// Fingerprint derives a stable per-client key: the X-User-ID header when
// provided, otherwise a hash of the client IP. The key labels history and
// rate limiting; it is never treated as an authenticated identity.
func Fingerprint() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(UserIDHeader)
		if key == "" {
			sum := sha256.Sum256([]byte(c.ClientIP()))
			key = hex.EncodeToString(sum[:])[:16]
		}
		c.Set(userKeyContextKey, key)
		c.Next()
	}
}

// UserKey returns the fingerprint set by Fingerprint, or "" if the
// middleware did not run.
func UserKey(c *gin.Context) string {
	return c.GetString(userKeyContextKey)
}

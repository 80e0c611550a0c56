// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminRouter(token string) *gin.Engine {
	r := gin.New()
	r.GET("/admin/ping", AdminAuth(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAdminAuth_ValidToken(t *testing.T) {
	r := adminRouter("secret")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set(AdminTokenHeader, "secret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_WrongToken(t *testing.T) {
	r := adminRouter("secret")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set(AdminTokenHeader, "nope")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_MissingToken(t *testing.T) {
	r := adminRouter("secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin/ping", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_DisabledWithoutConfiguredToken(t *testing.T) {
	r := adminRouter("")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/ping", nil)
	req.Header.Set(AdminTokenHeader, "anything")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFingerprint_HeaderWins(t *testing.T) {
	r := gin.New()
	r.Use(Fingerprint())
	var got string
	r.GET("/x", func(c *gin.Context) {
		got = UserKey(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(UserIDHeader, "user-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-42", got)
}

func TestFingerprint_FallsBackToHashedIP(t *testing.T) {
	r := gin.New()
	r.Use(Fingerprint())
	var got string
	r.GET("/x", func(c *gin.Context) {
		got = UserKey(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/x", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, got, 16)
	assert.NotEqual(t, "203.0.113.9", got)
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	rejected := 0
	rl := NewRateLimiter(0.001, 2, func() { rejected++ })
	r := gin.New()
	r.Use(Fingerprint(), rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/x", nil)
		req.Header.Set(UserIDHeader, "same-client")
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rejected)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, nil)
	r := gin.New()
	r.Use(Fingerprint(), rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, client := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/x", nil)
		req.Header.Set(UserIDHeader, client)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "client %s", client)
	}
}

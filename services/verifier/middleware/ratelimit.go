// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxTrackedClients caps the limiter map; when exceeded the map is reset
// rather than letting an IP-rotation attack grow it without bound.
const maxTrackedClients = 10000

// RateLimiter hands out one token bucket per client fingerprint.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	onReject func()
}

// NewRateLimiter allows rps sustained requests with the given burst per
// client. onReject may be nil; it is called once per rejected request.
func NewRateLimiter(rps float64, burst int, onReject func()) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		onReject: onReject,
	}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.limiters) >= maxTrackedClients {
		r.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.rps, r.burst)
		r.limiters[key] = l
	}
	return l
}

// Middleware rejects requests that exceed the client's budget. It must run
// after Fingerprint so the client key is available.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserKey(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !r.limiterFor(key).Allow() {
			if r.onReject != nil {
				r.onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}

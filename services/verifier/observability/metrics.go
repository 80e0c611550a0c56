// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the verifier.
//
// # Description
//
// Metrics cover verification requests (by verdict and mode), request
// latency, model backend attempts and fallbacks, embedding degradation,
// ingestion runs, and dropped log entries. Exposed via /metrics; use with
// Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "rama"

const verifierSubsystem = "verifier"

// VerifierMetrics holds all Prometheus metrics for the verifier service.
type VerifierMetrics struct {
	// VerifyRequestsTotal counts verification requests.
	// Labels: verdict (true, false, misleading, unverified), mode
	// (existing_fact_check, reasoned, refused)
	VerifyRequestsTotal *prometheus.CounterVec

	// VerifyDurationSeconds measures end-to-end verification latency.
	// Labels: mode
	VerifyDurationSeconds *prometheus.HistogramVec

	// VerifyErrorsTotal counts failed verification requests.
	// Labels: reason (all_backends_down, timeout, internal)
	VerifyErrorsTotal *prometheus.CounterVec

	// BackendAttemptsTotal counts model backend attempts.
	// Labels: backend (gemini, openrouter, ollama), outcome (success, error)
	BackendAttemptsTotal *prometheus.CounterVec

	// EmbeddingDegradedTotal counts embeddings served by a fallback provider.
	EmbeddingDegradedTotal prometheus.Counter

	// IngestRunsTotal counts ingestion runs by terminal status.
	// Labels: status (OK, PARTIAL, FAILED)
	IngestRunsTotal *prometheus.CounterVec

	// IngestDocumentsTotal counts newly ingested documents.
	// Labels: kind (news, gov, social, factcheck)
	IngestDocumentsTotal *prometheus.CounterVec

	// DroppedLogEntriesTotal counts claim log entries evicted from the
	// bounded log queue.
	DroppedLogEntriesTotal prometheus.Counter

	// RateLimitedTotal counts requests rejected by the per-client limiter.
	RateLimitedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics().
var DefaultMetrics *VerifierMetrics

// InitMetrics creates and registers all verifier metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *VerifierMetrics {
	DefaultMetrics = &VerifierMetrics{
		VerifyRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "verify_requests_total",
				Help:      "Total verification requests by verdict and mode",
			},
			[]string{"verdict", "mode"},
		),

		VerifyDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "verify_duration_seconds",
				Help:      "End-to-end verification latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
			},
			[]string{"mode"},
		),

		VerifyErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "verify_errors_total",
				Help:      "Total failed verification requests by reason",
			},
			[]string{"reason"},
		),

		BackendAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "backend_attempts_total",
				Help:      "Model backend attempts by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),

		EmbeddingDegradedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "embedding_degraded_total",
				Help:      "Embeddings served by a fallback provider",
			},
		),

		IngestRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "ingest_runs_total",
				Help:      "Ingestion runs by terminal status",
			},
			[]string{"status"},
		),

		IngestDocumentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "ingest_documents_total",
				Help:      "Newly ingested documents by kind",
			},
			[]string{"kind"},
		),

		DroppedLogEntriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "dropped_log_entries_total",
				Help:      "Claim log entries evicted from the bounded queue",
			},
		),

		RateLimitedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: verifierSubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-client rate limiter",
			},
		),
	}
	return DefaultMetrics
}

// RecordVerify records one completed verification.
func (m *VerifierMetrics) RecordVerify(verdict, mode string, seconds float64) {
	m.VerifyRequestsTotal.WithLabelValues(verdict, mode).Inc()
	m.VerifyDurationSeconds.WithLabelValues(mode).Observe(seconds)
}

// RecordVerifyError records one failed verification.
func (m *VerifierMetrics) RecordVerifyError(reason string) {
	m.VerifyErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordIngestRun records one finished ingestion run.
func (m *VerifierMetrics) RecordIngestRun(status string, newDocsByKind map[string]int) {
	m.IngestRunsTotal.WithLabelValues(status).Inc()
	for kind, n := range newDocsByKind {
		m.IngestDocumentsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

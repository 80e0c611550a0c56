package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BackendStatus is one sampled health observation.
type BackendStatus struct {
	Healthy   bool
	LatencyMs int64
	CheckedAt time.Time
}

// Sampler pings every backend on a fixed interval and keeps the latest
// observation per backend. /health reads the snapshot; it never pings
// inline.
type Sampler struct {
	backends     []Backend
	interval     time.Duration
	pingTimeout  time.Duration
	forceOffline bool

	mu       sync.RWMutex
	statuses map[string]BackendStatus
}

// NewSampler creates a sampler. interval defaults to 60s.
func NewSampler(backends []Backend, interval time.Duration, forceOffline bool) *Sampler {
	if interval == 0 {
		interval = 60 * time.Second
	}
	return &Sampler{
		backends:     backends,
		interval:     interval,
		pingTimeout:  10 * time.Second,
		forceOffline: forceOffline,
		statuses:     make(map[string]BackendStatus),
	}
}

// Start samples once immediately, then on every tick until ctx is done.
func (s *Sampler) Start(ctx context.Context) {
	go func() {
		s.sampleAll(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleAll(ctx)
			}
		}
	}()
}

func (s *Sampler) sampleAll(ctx context.Context) {
	for _, backend := range s.backends {
		if s.forceOffline && backend.Remote() {
			s.record(backend.ID(), BackendStatus{
				Healthy:   false,
				CheckedAt: time.Now(),
			})
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
		start := time.Now()
		err := backend.Ping(pingCtx)
		cancel()

		status := BackendStatus{
			Healthy:   err == nil,
			LatencyMs: time.Since(start).Milliseconds(),
			CheckedAt: time.Now(),
		}
		if err != nil {
			slog.Warn("Backend health check failed", "backend", backend.ID(), "error", err)
		}
		s.record(backend.ID(), status)
	}
}

func (s *Sampler) record(id string, status BackendStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
}

// Snapshot returns a copy of the latest observations.
func (s *Sampler) Snapshot() map[string]BackendStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]BackendStatus, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// Mode reports "offline" when remotes are forced off or no remote backend is
// healthy, "online" otherwise.
func (s *Sampler) Mode() string {
	if s.forceOffline {
		return "offline"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, backend := range s.backends {
		if !backend.Remote() {
			continue
		}
		if st, ok := s.statuses[backend.ID()]; ok && st.Healthy {
			return "online"
		}
	}
	return "offline"
}

// AnyHealthy reports whether at least one backend is currently healthy.
func (s *Sampler) AnyHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.statuses {
		if st.Healthy {
			return true
		}
	}
	return false
}

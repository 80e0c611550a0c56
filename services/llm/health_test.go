package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_SnapshotAfterSample(t *testing.T) {
	healthy := &fakeBackend{id: "gemini", remote: true}
	broken := &fakeBackend{id: "ollama", pingErr: errors.New("connection refused")}
	s := NewSampler([]Backend{healthy, broken}, time.Minute, false)

	s.sampleAll(context.Background())

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap["gemini"].Healthy)
	assert.False(t, snap["ollama"].Healthy)
	assert.False(t, snap["gemini"].CheckedAt.IsZero())
}

func TestSampler_ForceOfflineMarksRemotesDown(t *testing.T) {
	remote := &fakeBackend{id: "gemini", remote: true}
	local := &fakeBackend{id: "ollama"}
	s := NewSampler([]Backend{remote, local}, time.Minute, true)

	s.sampleAll(context.Background())

	snap := s.Snapshot()
	assert.False(t, snap["gemini"].Healthy, "remote must be reported down in offline mode")
	assert.True(t, snap["ollama"].Healthy)
	assert.Equal(t, "offline", s.Mode())
}

func TestSampler_Mode(t *testing.T) {
	remote := &fakeBackend{id: "gemini", remote: true}
	local := &fakeBackend{id: "ollama"}
	s := NewSampler([]Backend{remote, local}, time.Minute, false)

	s.sampleAll(context.Background())
	assert.Equal(t, "online", s.Mode())

	remote.pingErr = errors.New("down")
	s.sampleAll(context.Background())
	assert.Equal(t, "offline", s.Mode(), "no healthy remote means offline")
}

func TestSampler_AnyHealthy(t *testing.T) {
	broken := &fakeBackend{id: "a", pingErr: errors.New("x")}
	s := NewSampler([]Backend{broken}, time.Minute, false)

	s.sampleAll(context.Background())
	assert.False(t, s.AnyHealthy())

	broken.pingErr = nil
	s.sampleAll(context.Background())
	assert.True(t, s.AnyHealthy())
}

func TestSampler_SnapshotIsACopy(t *testing.T) {
	s := NewSampler([]Backend{&fakeBackend{id: "a"}}, time.Minute, false)
	s.sampleAll(context.Background())

	snap := s.Snapshot()
	snap["a"] = BackendStatus{Healthy: false}

	assert.True(t, s.Snapshot()["a"].Healthy, "mutating a snapshot must not affect the sampler")
}

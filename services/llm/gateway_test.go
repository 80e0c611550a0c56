package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements Backend with configurable behavior.
type fakeBackend struct {
	id       string
	remote   bool
	genFunc  func(calls int32) (string, error)
	pingErr  error
	genCalls int32
}

func (f *fakeBackend) Generate(_ context.Context, _, _ string, _ GenerationParams) (string, error) {
	n := atomic.AddInt32(&f.genCalls, 1)
	if f.genFunc != nil {
		return f.genFunc(n)
	}
	return "ok", nil
}

func (f *fakeBackend) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeBackend) ID() string                   { return f.id }
func (f *fakeBackend) Remote() bool                 { return f.remote }

func fastGateway(cfg GatewayConfig, backends ...Backend) *Gateway {
	g := NewGateway(cfg, backends...)
	g.cfg.ModelTimeout = time.Second
	return g
}

func TestGateway_FirstBackendSucceeds(t *testing.T) {
	primary := &fakeBackend{id: "gemini", remote: true}
	fallback := &fakeBackend{id: "ollama"}
	gw := fastGateway(GatewayConfig{}, primary, fallback)

	gen, err := gw.Generate(context.Background(), "sys", "prompt", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "gemini", gen.ModelUsed)
	assert.Equal(t, "ok", gen.Text)
	assert.Equal(t, int32(0), fallback.genCalls)
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	primary := &fakeBackend{
		id:     "gemini",
		remote: true,
		genFunc: func(calls int32) (string, error) {
			if calls < 3 {
				return "", NewRetryableError(errors.New("503 upstream"))
			}
			return "eventually", nil
		},
	}
	gw := fastGateway(GatewayConfig{MaxAttempts: 3}, primary)

	gen, err := gw.Generate(context.Background(), "", "p", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "eventually", gen.Text)
	assert.Equal(t, int32(3), primary.genCalls)
}

func TestGateway_NonRetryableFallsThroughImmediately(t *testing.T) {
	primary := &fakeBackend{
		id:     "gemini",
		remote: true,
		genFunc: func(int32) (string, error) {
			return "", NewNonRetryableError(errors.New("401 invalid key"))
		},
	}
	fallback := &fakeBackend{id: "openrouter", remote: true}
	gw := fastGateway(GatewayConfig{MaxAttempts: 3}, primary, fallback)

	gen, err := gw.Generate(context.Background(), "", "p", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "openrouter", gen.ModelUsed)
	assert.Equal(t, int32(1), primary.genCalls, "non-retryable error must not be retried")
}

func TestGateway_AllBackendsDown(t *testing.T) {
	down := func(int32) (string, error) {
		return "", NewNonRetryableError(errors.New("unreachable"))
	}
	gw := fastGateway(GatewayConfig{},
		&fakeBackend{id: "gemini", remote: true, genFunc: down},
		&fakeBackend{id: "ollama", genFunc: down},
	)

	_, err := gw.Generate(context.Background(), "", "p", GenerationParams{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllBackendsDown)
}

func TestGateway_ForceOfflineSkipsRemotes(t *testing.T) {
	remote := &fakeBackend{id: "gemini", remote: true}
	local := &fakeBackend{id: "ollama"}
	gw := fastGateway(GatewayConfig{ForceOffline: true}, remote, local)

	gen, err := gw.Generate(context.Background(), "", "p", GenerationParams{})

	require.NoError(t, err)
	assert.Equal(t, "ollama", gen.ModelUsed)
	assert.Equal(t, int32(0), remote.genCalls, "remote backends must not be touched offline")
}

func TestGateway_ForceOfflineAllRemote(t *testing.T) {
	gw := fastGateway(GatewayConfig{ForceOffline: true},
		&fakeBackend{id: "gemini", remote: true},
		&fakeBackend{id: "openrouter", remote: true},
	)

	_, err := gw.Generate(context.Background(), "", "p", GenerationParams{})

	assert.ErrorIs(t, err, ErrAllBackendsDown)
}

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var gatewayTracer = otel.Tracer("rama.llm.gateway")

// GatewayConfig tunes the fallback chain.
type GatewayConfig struct {
	// ModelTimeout is the per-attempt deadline. Default: 30s.
	ModelTimeout time.Duration
	// MaxAttempts is the number of attempts per backend. Default: 3.
	MaxAttempts int
	// ForceOffline skips every remote backend.
	ForceOffline bool
}

func applyGatewayDefaults(cfg GatewayConfig) GatewayConfig {
	if cfg.ModelTimeout == 0 {
		cfg.ModelTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return cfg
}

// Gateway walks a preference-ordered backend chain: each backend gets
// MaxAttempts tries with exponential backoff on transient errors, then the
// chain moves on. Non-retryable errors skip the remaining attempts of that
// backend immediately.
type Gateway struct {
	backends []Backend
	cfg      GatewayConfig
}

func NewGateway(cfg GatewayConfig, backends ...Backend) *Gateway {
	return &Gateway{
		backends: backends,
		cfg:      applyGatewayDefaults(cfg),
	}
}

// Backends returns the chain in preference order.
func (g *Gateway) Backends() []Backend {
	return g.backends
}

// Offline reports whether remote backends are being skipped.
func (g *Gateway) Offline() bool {
	return g.cfg.ForceOffline
}

// Generate runs the chain until one backend produces a completion.
func (g *Gateway) Generate(ctx context.Context, system, prompt string,
	params GenerationParams) (*Generation, error) {

	ctx, span := gatewayTracer.Start(ctx, "Gateway.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("chain_length", len(g.backends)),
		attribute.Bool("force_offline", g.cfg.ForceOffline),
	)

	var lastErr error
	for _, backend := range g.backends {
		if g.cfg.ForceOffline && backend.Remote() {
			slog.Debug("Skipping remote backend in offline mode", "backend", backend.ID())
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}

		var text string
		err := RetryWithBackoff(ctx, RetryConfig{
			MaxAttempts:   g.cfg.MaxAttempts,
			InitialDelay:  500 * time.Millisecond,
			Multiplier:    2.0,
			Jitter:        250 * time.Millisecond,
			OperationName: "generate:" + backend.ID(),
		}, func(ctx context.Context) error {
			attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.ModelTimeout)
			defer cancel()
			var genErr error
			text, genErr = backend.Generate(attemptCtx, system, prompt, params)
			return genErr
		})
		if err == nil {
			span.SetAttributes(attribute.String("model_used", backend.ID()))
			return &Generation{Text: text, ModelUsed: backend.ID()}, nil
		}

		lastErr = err
		slog.Warn("Backend exhausted, falling through",
			"backend", backend.ID(), "error", err)
	}

	err := fmt.Errorf("%w: %v", ErrAllBackendsDown, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

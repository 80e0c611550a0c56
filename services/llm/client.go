package llm

import (
	"context"
	"errors"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ErrAllBackendsDown is returned when every backend in the chain was
// exhausted without producing a reply.
var ErrAllBackendsDown = errors.New("all model backends unavailable")

// Backend is the standard interface for any model backend in the chain.
type Backend interface {
	// Generate produces a completion. system may be empty.
	Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error)

	// Ping performs a cheap reachability check.
	Ping(ctx context.Context) error

	// ID returns a stable backend identifier, e.g. "gemini".
	ID() string

	// Remote reports whether the backend needs network egress.
	Remote() bool
}

// Generation is a successful completion plus the backend that produced it.
type Generation struct {
	Text      string
	ModelUsed string
}

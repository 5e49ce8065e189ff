// Package llm provides the text-generation backends and the generator
// gateway that the behavior pipeline talks to. The gateway owns caching,
// the request budget, and per-channel fallback payloads; callers never see
// a generation error.
package llm

import "context"

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer is a raw text-generation backend. Implementations may fail,
// time out, or return malformed text; the Gateway absorbs all of that.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
	Enabled() bool
}

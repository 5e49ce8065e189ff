package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/talgya/petmind/internal/config"
)

// Channel identifies which pipeline consumer a generation call belongs to.
// The fallback payload shape is chosen per channel.
type Channel string

const (
	ChannelPerception Channel = "perception"
	ChannelCore       Channel = "core"
	ChannelExecution  Channel = "execution"
	ChannelTraits     Channel = "traits"
)

// Source marks where a Result's text came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceCache     Source = "cache"
	SourceFallback  Source = "fallback"
)

// Result is the outcome of a gateway call. Text is always populated;
// callers branch on content, never on error.
type Result struct {
	Text   string
	Source Source
}

// cacheKeyPrefixLen bounds how much of the prompt participates in the
// cache key.
const cacheKeyPrefixLen = 240

// Gateway fronts a Completer with a per-window request budget, a response
// cache, and pre-authored per-channel fallbacks. Generate never returns an
// error: transport failures, malformed prompts, timeouts, and budget
// exhaustion all resolve to the channel's fallback payload.
type Gateway struct {
	backend Completer
	cfg     config.GeneratorConfig

	mu        sync.Mutex
	callCount int
	cache     map[string]string

	sf singleflight.Group
}

// NewGateway wraps a backend. backend may be nil, in which case every call
// serves the fallback payload.
func NewGateway(backend Completer, cfg config.GeneratorConfig) *Gateway {
	return &Gateway{
		backend: backend,
		cfg:     cfg,
		cache:   make(map[string]string),
	}
}

// Generate runs one completion on behalf of a pipeline channel.
func (g *Gateway) Generate(ctx context.Context, ch Channel, system, user string, opts Options) Result {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = g.cfg.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.cfg.Temperature
	}

	key := cacheKey(ch, system, user, opts)

	g.mu.Lock()
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return Result{Text: cached, Source: SourceCache}
	}
	if g.backend == nil || !g.backend.Enabled() {
		g.mu.Unlock()
		return Result{Text: FallbackText(ch), Source: SourceFallback}
	}
	if g.callCount >= g.cfg.BudgetPerWindow {
		g.mu.Unlock()
		slog.Debug("generator budget exhausted", "channel", ch)
		return Result{Text: FallbackText(ch), Source: SourceFallback}
	}
	g.callCount++
	g.mu.Unlock()

	text, err, _ := g.sf.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()
		return g.backend.Complete(callCtx, system, user, opts)
	})
	if err != nil {
		slog.Debug("generation failed, serving fallback", "channel", ch, "error", err)
		return Result{Text: FallbackText(ch), Source: SourceFallback}
	}

	out := text.(string)
	g.mu.Lock()
	g.cache[key] = out
	g.mu.Unlock()

	return Result{Text: out, Source: SourceGenerated}
}

// ResetBudget zeroes the request counter. The caller owns the reset
// schedule, typically a ticker at the budget window.
func (g *Gateway) ResetBudget() {
	g.mu.Lock()
	g.callCount = 0
	g.mu.Unlock()
}

// CallsThisWindow returns the number of backend calls attempted since the
// last budget reset.
func (g *Gateway) CallsThisWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCount
}

func cacheKey(ch Channel, system, user string, opts Options) string {
	prompt := system + "\x00" + user
	if len(prompt) > cacheKeyPrefixLen {
		prompt = prompt[:cacheKeyPrefixLen]
	}
	return fmt.Sprintf("%s|%.2f|%d|%s", ch, opts.Temperature, opts.MaxTokens, prompt)
}

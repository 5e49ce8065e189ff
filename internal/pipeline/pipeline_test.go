package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
)

// scriptedCompleter routes canned responses per stage, keyed on a marker
// substring of each stage's system prompt, and records call order.
type scriptedCompleter struct {
	mu        sync.Mutex
	order     []string
	perceive  string
	core      string
	execute   string
	traits    string
	failEvery bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, system, user string, opts llm.Options) (string, error) {
	stage := stageFor(system)

	s.mu.Lock()
	s.order = append(s.order, stage)
	s.mu.Unlock()

	if s.failEvery {
		return "", fmt.Errorf("generator down")
	}

	switch stage {
	case "perception":
		return s.perceive, nil
	case "core":
		return s.core, nil
	case "execution":
		return s.execute, nil
	case "traits":
		return s.traits, nil
	}
	return "", fmt.Errorf("unknown stage prompt")
}

func (s *scriptedCompleter) Enabled() bool { return true }

func (s *scriptedCompleter) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func stageFor(system string) string {
	switch {
	case strings.Contains(system, `"situation_type"`):
		return "perception"
	case strings.Contains(system, `"behavior_tendency"`):
		return "core"
	case strings.Contains(system, `"stat_changes"`):
		return "execution"
	case strings.Contains(system, `"effect_value"`):
		return "traits"
	}
	return "unknown"
}

func newTestPipeline(c llm.Completer) (*Pipeline, *config.Config) {
	cfg := config.Default()
	gw := llm.NewGateway(c, cfg.Generator)
	return New(gw, cfg), cfg
}

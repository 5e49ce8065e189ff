package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// Pipeline runs the three behavior stages against a generator gateway.
// The prompt templates and personality come from the injected profile, so
// game variants configure a pipeline instead of re-implementing one.
type Pipeline struct {
	gw  *llm.Gateway
	cfg *config.Config
}

// New creates a pipeline over the given gateway and configuration.
func New(gw *llm.Gateway, cfg *config.Config) *Pipeline {
	return &Pipeline{gw: gw, cfg: cfg}
}

func (p *Pipeline) opts() llm.Options {
	return llm.Options{
		Temperature: p.cfg.Generator.Temperature,
		MaxTokens:   p.cfg.Generator.MaxTokens,
	}
}

// petSummary renders the slice of pet state the generator needs.
func petSummary(st *pet.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pet state: happiness %d, energy %d, trust %d, curiosity %d.\n",
		st.Stats.Happiness, st.Stats.Energy, st.Stats.Trust, st.Stats.Curiosity)
	fmt.Fprintf(&b, "Dominant trait: %s", st.CoreTraits.Dominant)
	if len(st.CoreTraits.Secondary) > 0 {
		fmt.Fprintf(&b, " (secondary: %s)", strings.Join(st.CoreTraits.Secondary, ", "))
	}
	fmt.Fprintf(&b, ". Adaptability level %d.\n", st.CoreTraits.AdaptabilityLevel)
	return b.String()
}

func round(v float64) int {
	return int(math.Round(v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// memoryScanDepth is how many recent memories the influence scan covers.
const memoryScanDepth = 5

// defaultPerceptionPayload is the deterministic substitute when the
// generated read cannot be parsed.
func defaultPerceptionPayload() perceptionPayload {
	return perceptionPayload{
		SituationType: "exploration",
		EmotionFactor: 0,
		Adaptability:  50,
		KeyElements:   []string{"unknown"},
	}
}

// RunPerception scores an incoming situation against the pet's state.
// The generated structured read is best-effort; the emotional weight,
// adaptability score, and memory influence are always computed.
func (p *Pipeline) RunPerception(ctx context.Context, st *pet.State, situation, playerChoice string, environment map[string]string) PerceptionResult {
	system := p.cfg.Profile.Personality + "\n\n" + p.cfg.Profile.PerceptionPrompt
	user := buildPerceptionPrompt(st, situation, playerChoice, environment)

	res := p.gw.Generate(ctx, llm.ChannelPerception, system, user, p.opts())

	payload, err := parsePerception(res.Text)
	source := res.Source
	if err != nil {
		slog.Debug("perception parse failed, using default read", "error", err)
		payload = defaultPerceptionPayload()
		source = llm.SourceFallback
	}

	out := PerceptionResult{
		SituationType: payload.SituationType,
		EmotionFactor: payload.EmotionFactor,
		Adaptability:  payload.Adaptability,
		KeyElements:   payload.KeyElements,
		Source:        source,
	}

	// Emotional weight blends the situation's charge with the pet's
	// current mood, normalized to [0, 1].
	normalized := float64(payload.EmotionFactor+3) / 6
	moodTerm := float64(st.Stats.Happiness+st.Stats.Energy) / 200
	out.EmotionalWeight = clamp01(0.7*normalized + 0.3*moodTerm)

	out.AdaptabilityScore = round(0.6*float64(payload.Adaptability) + 0.4*float64(st.CoreTraits.AdaptabilityLevel))

	for _, el := range payload.KeyElements {
		if st.RemembersElement(el, memoryScanDepth) {
			out.MemoryInfluence = append(out.MemoryInfluence,
				fmt.Sprintf("%s feels familiar from a recent experience", el))
		}
	}

	return out
}

func buildPerceptionPrompt(st *pet.State, situation, playerChoice string, environment map[string]string) string {
	var b strings.Builder
	b.WriteString(petSummary(st))
	fmt.Fprintf(&b, "\nSituation: %s\n", situation)
	fmt.Fprintf(&b, "Keeper's choice: %s\n", playerChoice)
	if len(environment) > 0 {
		b.WriteString("Environment:\n")
		for k, v := range environment {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

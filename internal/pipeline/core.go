package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// defaultCorePayload is the deterministic substitute when the generated
// core read cannot be parsed: neutral tendency, keep the baseline reaction.
func defaultCorePayload() corePayload {
	return corePayload{
		EmotionAdjustment: "The pet holds its baseline reaction.",
		BehaviorTendency: BehaviorTendency{
			Aggression:   30,
			Caution:      50,
			Sociability:  50,
			Independence: 50,
		},
		LayerInstructions: LayerInstructions{
			FocusArea:     "immediate surroundings",
			ResponseStyle: "keep baseline reaction",
			DecisionBias:  "wait and observe",
		},
	}
}

// Labels for the dominant tendency, used as the execution stage's
// primary focus.
var focusLabels = map[string]string{
	"aggression":   "confrontation",
	"caution":      "vigilance",
	"sociability":  "bonding",
	"independence": "self-reliance",
}

// RunCore folds the perception result into the core generation prompt,
// asks for a personality read, then runs the deterministic trait-evolution
// and instruction analysis over whatever came back.
func (p *Pipeline) RunCore(ctx context.Context, st *pet.State, perception PerceptionResult) CoreResult {
	system := p.cfg.Profile.Personality + "\n\n" + p.cfg.Profile.CorePrompt
	user := buildCorePrompt(st, perception)

	res := p.gw.Generate(ctx, llm.ChannelCore, system, user, p.opts())

	payload, err := parseCore(res.Text)
	source := res.Source
	if err != nil {
		slog.Debug("core parse failed, using baseline read", "error", err)
		payload = defaultCorePayload()
		source = llm.SourceFallback
	}

	out := CoreResult{
		EmotionAdjustment: payload.EmotionAdjustment,
		BehaviorTendency:  payload.BehaviorTendency,
		LayerInstructions: payload.LayerInstructions,
		TraitEvolution:    payload.TraitEvolution,
		Source:            source,
	}

	// The evolution analysis runs whether or not generation succeeded.
	out.TraitEvolution.SecondaryTraitChanges = append(out.TraitEvolution.SecondaryTraitChanges,
		analyzeTendency(out.BehaviorTendency)...)

	out.CoreInstructions = deriveInstructions(out.BehaviorTendency)

	changes := len(out.TraitEvolution.SecondaryTraitChanges)
	shift := abs(out.TraitEvolution.DominantTraitShift)
	out.TraitStability = pet.Clamp(100-(changes*20+shift*30), 0, 100)

	return out
}

// analyzeTendency appends a labeled trait-change note for each tendency
// that crosses its evolution threshold.
func analyzeTendency(t BehaviorTendency) []string {
	var notes []string
	if t.Aggression > 70 {
		notes = append(notes, "increase aggression")
	}
	if t.Caution > 80 {
		notes = append(notes, "strengthen caution")
	}
	if t.Sociability > 75 {
		notes = append(notes, "deepen sociability")
	}
	return notes
}

// deriveInstructions picks the dominant tendency (ties break on the first
// key in declaration order) and builds the decision framework thresholds.
func deriveInstructions(t BehaviorTendency) CoreInstructions {
	keys := []string{"aggression", "caution", "sociability", "independence"}
	values := []int{t.Aggression, t.Caution, t.Sociability, t.Independence}

	dominant := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[dominant] {
			dominant = i
		}
	}

	out := CoreInstructions{PrimaryFocus: focusLabels[keys[dominant]]}

	if t.Caution < 50 {
		out.DecisionFramework = append(out.DecisionFramework, "high risk tolerance")
	}
	if t.Sociability > 60 {
		out.DecisionFramework = append(out.DecisionFramework, "group preference")
	}
	if t.Aggression > 60 {
		out.DecisionFramework = append(out.DecisionFramework, "direct conflict style")
	}

	return out
}

// buildCorePrompt extends the base template with conditional clauses
// derived from the perception result. The mutated prompt, not the base
// template, is what gets generated against.
func buildCorePrompt(st *pet.State, perception PerceptionResult) string {
	var b strings.Builder
	b.WriteString(petSummary(st))
	fmt.Fprintf(&b, "\nThe pet just perceived a %s situation", perception.SituationType)
	if len(perception.KeyElements) > 0 {
		fmt.Fprintf(&b, " involving %s", strings.Join(perception.KeyElements, ", "))
	}
	b.WriteString(".\n")

	switch {
	case perception.EmotionalWeight > 0.7:
		b.WriteString("Emotional intensity: high — the pet is strongly moved; let feeling lead its response.\n")
	case perception.EmotionalWeight < 0.3:
		b.WriteString("Emotional intensity: low — the pet is barely stirred; keep the response muted.\n")
	default:
		b.WriteString("Emotional intensity: moderate — the pet is engaged but composed.\n")
	}

	switch {
	case perception.AdaptabilityScore > 80:
		b.WriteString("Adaptation: the pet adjusts to this easily; it can act with confidence.\n")
	case perception.AdaptabilityScore < 40:
		b.WriteString("Adaptation: this is hard for the pet to adjust to; hesitation is natural.\n")
	default:
		b.WriteString("Adaptation: the pet can cope with this, carefully.\n")
	}

	if len(perception.MemoryInfluence) > 0 {
		b.WriteString("Memory influence:\n")
		for _, note := range perception.MemoryInfluence {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	return b.String()
}

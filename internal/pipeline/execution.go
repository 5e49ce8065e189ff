package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// stabilityScaleThreshold: proposed deltas larger than this get scaled by
// the trait stability factor before the hard clamp.
const stabilityScaleThreshold = 10

// defaultExecutionPayload is the deterministic substitute when the
// generated proposal cannot be parsed: a neutral reaction worth a point of
// bond and experience.
func defaultExecutionPayload() executionPayload {
	return executionPayload{
		BehaviorDescription: "The pet pauses, tilts its head, and watches quietly before settling down.",
		StatChanges:         StatChanges{Bond: 1, Experience: 1},
		MoodDisplay:         "confused",
	}
}

// Fixed effect appended for each primary focus, on top of whatever the
// generator proposed.
var focusEffects = map[string]string{
	"confrontation": "attack boost",
	"vigilance":     "defense boost",
	"bonding":       "bond glow",
	"self-reliance": "speed surge",
}

// RunExecution folds the core result into the execution prompt, asks for a
// concrete behavior proposal, then clamps the proposed stat changes using
// the stability factor from the core stage.
func (p *Pipeline) RunExecution(ctx context.Context, st *pet.State, core CoreResult) ExecutionResult {
	system := p.cfg.Profile.Personality + "\n\n" + p.cfg.Profile.ExecutionPrompt
	user := buildExecutionPrompt(st, core)

	res := p.gw.Generate(ctx, llm.ChannelExecution, system, user, p.opts())

	payload, err := parseExecution(res.Text)
	source := res.Source
	if err != nil {
		slog.Debug("execution parse failed, using neutral reaction", "error", err)
		payload = defaultExecutionPayload()
		source = llm.SourceFallback
	}

	limit := p.cfg.Pet.StatChangeLimit
	changes := StatChanges{
		HP:         stabilize(payload.StatChanges.HP, core.TraitStability, limit),
		Attack:     stabilize(payload.StatChanges.Attack, core.TraitStability, limit),
		Defense:    stabilize(payload.StatChanges.Defense, core.TraitStability, limit),
		Speed:      stabilize(payload.StatChanges.Speed, core.TraitStability, limit),
		Bond:       stabilize(payload.StatChanges.Bond, core.TraitStability, limit),
		Experience: stabilize(payload.StatChanges.Experience, core.TraitStability, limit),
	}

	out := ExecutionResult{
		BehaviorDescription: payload.BehaviorDescription,
		Dialogue:            payload.Dialogue,
		StatChanges:         changes,
		SpecialEffects:      payload.SpecialEffects,
		MoodDisplay:         payload.MoodDisplay,
		Source:              source,
	}

	if effect, ok := focusEffects[core.CoreInstructions.PrimaryFocus]; ok {
		out.SpecialEffects = append(out.SpecialEffects, effect)
	}

	out.EmotionalImpact = pet.Clamp(round(float64(changes.Sum())/5), -5, 5)

	out.MemoryToAdd = payload.BehaviorDescription
	if len(core.TraitEvolution.SecondaryTraitChanges) > 0 {
		out.MemoryToAdd += fmt.Sprintf(" (traits shifting: %s)",
			strings.Join(core.TraitEvolution.SecondaryTraitChanges, "; "))
	}

	return out
}

// stabilize scales an oversized delta by the stability factor, then hard
// clamps it to [-limit, limit].
func stabilize(v, stability, limit int) int {
	if abs(v) > stabilityScaleThreshold {
		v = round(float64(v) * float64(stability) / 100)
	}
	return pet.Clamp(v, -limit, limit)
}

// buildExecutionPrompt appends the core stage's instructions as labeled
// clauses; only non-empty fields are appended.
func buildExecutionPrompt(st *pet.State, core CoreResult) string {
	var b strings.Builder
	b.WriteString(petSummary(st))
	b.WriteString("\n")

	if core.EmotionAdjustment != "" {
		fmt.Fprintf(&b, "Emotional state: %s\n", core.EmotionAdjustment)
	}
	if core.LayerInstructions.FocusArea != "" {
		fmt.Fprintf(&b, "Focus area: %s\n", core.LayerInstructions.FocusArea)
	}
	if core.LayerInstructions.ResponseStyle != "" {
		fmt.Fprintf(&b, "Response style: %s\n", core.LayerInstructions.ResponseStyle)
	}
	if core.LayerInstructions.DecisionBias != "" {
		fmt.Fprintf(&b, "Decision bias: %s\n", core.LayerInstructions.DecisionBias)
	}
	if core.LayerInstructions.SpecialInstructions != "" {
		fmt.Fprintf(&b, "Special instructions: %s\n", core.LayerInstructions.SpecialInstructions)
	}
	if core.CoreInstructions.PrimaryFocus != "" {
		fmt.Fprintf(&b, "Primary focus: %s\n", core.CoreInstructions.PrimaryFocus)
	}
	if len(core.CoreInstructions.DecisionFramework) > 0 {
		fmt.Fprintf(&b, "Decision framework: %s\n",
			strings.Join(core.CoreInstructions.DecisionFramework, ", "))
	}

	return b.String()
}

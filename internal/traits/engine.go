// Package traits converts untrusted trait candidates into bounded,
// persisted traits: schema validation, numeric normalization, per-type
// caps, and the balance check that keeps negative value compensated.
package traits

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
	"github.com/talgya/petmind/internal/pipeline"
)

// EvolutionTemplate describes a pending evolution: candidate traits plus
// proposed attribute deltas, from generation or game logic.
type EvolutionTemplate struct {
	Theme           string               `json:"theme"`
	Stage           string               `json:"stage"`
	CandidateTraits []pet.TraitCandidate `json:"candidate_traits,omitempty"`
	AttributeDeltas map[string]int       `json:"attribute_deltas,omitempty"`
}

// Engine solidifies evolution templates into persisted traits. It always
// returns a list, possibly empty, never an error: generation problems
// route to the algorithmic path that derives candidates from the template
// itself.
type Engine struct {
	gw      *llm.Gateway // nil disables the live generation path
	cfg     config.TraitsConfig
	profile config.Profile
}

// NewEngine creates a solidification engine. gw may be nil.
func NewEngine(gw *llm.Gateway, cfg *config.Config) *Engine {
	return &Engine{gw: gw, cfg: cfg.Traits, profile: cfg.Profile}
}

// Solidify turns a template into validated, normalized, balanced traits
// for the caller to persist.
func (e *Engine) Solidify(ctx context.Context, tmpl EvolutionTemplate, p *pet.State) []pet.Trait {
	candidates := e.generateCandidates(ctx, tmpl, p)
	if len(candidates) == 0 {
		candidates = deriveCandidates(tmpl)
	}
	return e.process(candidates, p)
}

// generateCandidates asks the gateway for candidates from the live path.
// Empty on any failure; the caller falls through to the algorithmic path.
func (e *Engine) generateCandidates(ctx context.Context, tmpl EvolutionTemplate, p *pet.State) []pet.TraitCandidate {
	if e.gw == nil {
		return nil
	}

	system := e.profile.Personality + "\n\n" + e.profile.TraitsPrompt
	res := e.gw.Generate(ctx, llm.ChannelTraits, system, buildTemplatePrompt(tmpl, p), llm.Options{})
	if res.Source == llm.SourceFallback {
		return nil
	}

	candidates, err := pipeline.ParseTraitCandidates(res.Text)
	if err != nil {
		slog.Debug("trait candidate parse failed", "error", err)
		return nil
	}
	return candidates
}

// deriveCandidates is the algorithmic fallback: 0+ candidates taken
// directly from the template's own fields, no generation call.
func deriveCandidates(tmpl EvolutionTemplate) []pet.TraitCandidate {
	out := append([]pet.TraitCandidate(nil), tmpl.CandidateTraits...)

	attrs := make([]string, 0, len(tmpl.AttributeDeltas))
	for attr := range tmpl.AttributeDeltas {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	for _, attr := range attrs {
		delta := tmpl.AttributeDeltas[attr]
		if delta == 0 {
			continue
		}
		name := strings.TrimSpace(tmpl.Theme + " " + attr)
		out = append(out, pet.TraitCandidate{
			Name:        name,
			Type:        attrType(attr),
			EffectValue: math.Abs(float64(delta)),
			IsNegative:  delta < 0,
		})
	}
	return out
}

func attrType(attr string) string {
	switch attr {
	case "attack":
		return string(pet.TraitAttack)
	case "defense":
		return string(pet.TraitDefense)
	case "special":
		return string(pet.TraitSpecial)
	default:
		return string(pet.TraitPassive)
	}
}

// process validates, normalizes, cap-checks, and balances a batch.
func (e *Engine) process(candidates []pet.TraitCandidate, p *pet.State) []pet.Trait {
	now := time.Now()
	accepted := make([]pet.Trait, 0, len(candidates))
	batchCounts := make(map[pet.TraitType]int)

	for _, c := range candidates {
		t := pet.TraitType(c.Type)
		switch {
		case c.Name == "", !t.Valid():
			slog.Debug("trait candidate rejected", "name", c.Name, "type", c.Type)
			continue
		case math.IsNaN(c.EffectValue), math.IsInf(c.EffectValue, 0):
			slog.Debug("trait candidate rejected", "name", c.Name, "reason", "non-numeric effect value")
			continue
		}

		limit, ok := e.cfg.TypeCaps[string(t)]
		if ok && p.ActiveTraitCount(t)+batchCounts[t] >= limit {
			slog.Warn("trait cap reached", "pet", p.ID, "type", t, "cap", limit, "rejected", c.Name)
			continue
		}

		rarity := c.Rarity
		switch rarity {
		case "common", "uncommon", "rare":
		default:
			rarity = "common"
		}

		accepted = append(accepted, pet.Trait{
			ID:               uuid.NewString(),
			PetID:            p.ID,
			Name:             c.Name,
			Type:             t,
			EffectValue:      pet.Clamp(int(math.Round(c.EffectValue)), e.cfg.EffectValueMin, e.cfg.EffectValueMax),
			SpecialMechanism: c.SpecialMechanism,
			IsNegative:       c.IsNegative,
			Rarity:           rarity,
			AcquisitionTime:  now,
			IsActive:         true,
		})
		batchCounts[t]++
	}

	return e.balance(accepted, p, batchCounts, now)
}

// balance enforces the value invariant for a batch: weighted negative
// value may not exceed weighted positive value × BalanceRatio. It closes
// the gap with compensation passives, splitting them when one would
// exceed the effect value ceiling, and runs them through the same
// passive-cap accounting as every candidate. If the cap blocks enough
// compensation, the heaviest negative traits are shed instead.
func (e *Engine) balance(batch []pet.Trait, p *pet.State, counts map[pet.TraitType]int, now time.Time) []pet.Trait {
	negSum, posSum := e.weightedSums(batch)
	if negSum <= posSum*e.cfg.BalanceRatio {
		return batch
	}

	// Positive value needed to restore the ratio, floored by the
	// configured share of the gap.
	need := int(math.Ceil(negSum/e.cfg.BalanceRatio - posSum))
	if byFactor := int(math.Round(e.cfg.CompensationFactor * (negSum - posSum))); byFactor > need {
		need = byFactor
	}
	slog.Info("balance compensation applied",
		"pet", p.ID, "negative", negSum, "positive", posSum, "value", need)

	limit, capped := e.cfg.TypeCaps[string(pet.TraitPassive)]
	for need > 0 {
		if capped && p.ActiveTraitCount(pet.TraitPassive)+counts[pet.TraitPassive] >= limit {
			break
		}
		value := need
		if value > e.cfg.EffectValueMax {
			value = e.cfg.EffectValueMax
		}
		if value < e.cfg.EffectValueMin {
			value = e.cfg.EffectValueMin
		}
		batch = append(batch, pet.Trait{
			ID:              uuid.NewString(),
			PetID:           p.ID,
			Name:            "balancing instinct",
			Type:            pet.TraitPassive,
			EffectValue:     value,
			IsNegative:      false,
			Rarity:          "common",
			AcquisitionTime: now,
			IsActive:        true,
		})
		counts[pet.TraitPassive]++
		need -= value
	}

	for {
		negSum, posSum = e.weightedSums(batch)
		if negSum <= posSum*e.cfg.BalanceRatio {
			return batch
		}
		i := e.heaviestNegative(batch)
		if i < 0 {
			return batch
		}
		slog.Warn("negative trait shed to restore balance",
			"pet", p.ID, "trait", batch[i].Name, "value", batch[i].EffectValue)
		counts[batch[i].Type]--
		batch = append(batch[:i], batch[i+1:]...)
	}
}

func (e *Engine) weightedSums(batch []pet.Trait) (neg, pos float64) {
	for _, t := range batch {
		weight := 1.0
		if t.SpecialMechanism != "" {
			weight = e.cfg.MechanismFactor
		}
		value := float64(t.EffectValue) * weight
		if t.IsNegative {
			neg += value
		} else {
			pos += value
		}
	}
	return neg, pos
}

func (e *Engine) heaviestNegative(batch []pet.Trait) int {
	idx, heaviest := -1, 0.0
	for i, t := range batch {
		if !t.IsNegative {
			continue
		}
		weight := 1.0
		if t.SpecialMechanism != "" {
			weight = e.cfg.MechanismFactor
		}
		if v := float64(t.EffectValue) * weight; v > heaviest {
			idx, heaviest = i, v
		}
	}
	return idx
}

func buildTemplatePrompt(tmpl EvolutionTemplate, p *pet.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evolution theme: %s\n", tmpl.Theme)
	if tmpl.Stage != "" {
		fmt.Fprintf(&b, "Evolution stage: %s\n", tmpl.Stage)
	}
	fmt.Fprintf(&b, "Pet dominant trait: %s\n", p.CoreTraits.Dominant)
	if len(tmpl.CandidateTraits) > 0 {
		b.WriteString("Seed candidates:\n")
		for _, c := range tmpl.CandidateTraits {
			fmt.Fprintf(&b, "- %s (%s, value %.0f)\n", c.Name, c.Type, c.EffectValue)
		}
	}
	if len(tmpl.AttributeDeltas) > 0 {
		b.WriteString("Proposed attribute deltas:\n")
		attrs := make([]string, 0, len(tmpl.AttributeDeltas))
		for attr := range tmpl.AttributeDeltas {
			attrs = append(attrs, attr)
		}
		sort.Strings(attrs)
		for _, attr := range attrs {
			fmt.Fprintf(&b, "- %s: %+d\n", attr, tmpl.AttributeDeltas[attr])
		}
	}
	return b.String()
}

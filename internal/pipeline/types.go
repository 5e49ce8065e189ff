// Package pipeline implements the three-stage behavior cascade
// (perception → core → execution) and the orchestrator that merges the
// final result into pet state. Each stage combines a deterministic
// computed part with a best-effort generated part; a stage result always
// exists, falling back to canned data when generation fails.
package pipeline

import "github.com/talgya/petmind/internal/llm"

// PerceptionResult is the immutable output of the perception stage.
type PerceptionResult struct {
	SituationType string   `json:"situation_type"`
	EmotionFactor int      `json:"emotion_factor"` // -3..3
	Adaptability  int      `json:"adaptability"`   // 0..100
	KeyElements   []string `json:"key_elements"`

	// Deterministically derived.
	EmotionalWeight   float64  `json:"emotional_weight"`   // 0..1
	AdaptabilityScore int      `json:"adaptability_score"` // 0..100
	MemoryInfluence   []string `json:"memory_influence,omitempty"`

	Source llm.Source `json:"source"`
}

// BehaviorTendency holds the four generated personality axes, 0..100 each.
type BehaviorTendency struct {
	Aggression   int `json:"aggression"`
	Caution      int `json:"caution"`
	Sociability  int `json:"sociability"`
	Independence int `json:"independence"`
}

// LayerInstructions carry the core stage's generated guidance down to the
// execution stage prompt.
type LayerInstructions struct {
	FocusArea           string `json:"focus_area"`
	ResponseStyle       string `json:"response_style"`
	DecisionBias        string `json:"decision_bias"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// TraitEvolution is the core stage's read on how the pet's personality is
// shifting.
type TraitEvolution struct {
	DominantTraitShift    int      `json:"dominant_trait_shift"`
	SecondaryTraitChanges []string `json:"secondary_trait_changes,omitempty"`
	NewTraitEmergence     string   `json:"new_trait_emergence,omitempty"`
}

// CoreInstructions are derived deterministically from the behavior
// tendency and steer the execution stage.
type CoreInstructions struct {
	PrimaryFocus      string   `json:"primary_focus"`
	DecisionFramework []string `json:"decision_framework,omitempty"`
}

// CoreResult is the immutable output of the core mutation stage.
type CoreResult struct {
	EmotionAdjustment string            `json:"emotion_adjustment"`
	BehaviorTendency  BehaviorTendency  `json:"behavior_tendency"`
	LayerInstructions LayerInstructions `json:"layer_instructions"`
	TraitEvolution    TraitEvolution    `json:"trait_evolution"`

	// Deterministically derived.
	CoreInstructions CoreInstructions `json:"core_instructions"`
	TraitStability   int              `json:"trait_stability"` // 0..100

	Source llm.Source `json:"source"`
}

// StatChanges are the per-run stat deltas, each clamped after the
// stability adjustment.
type StatChanges struct {
	HP         int `json:"hp"`
	Attack     int `json:"attack"`
	Defense    int `json:"defense"`
	Speed      int `json:"speed"`
	Bond       int `json:"bond"`
	Experience int `json:"experience"`
}

// Sum returns the total of all deltas.
func (s StatChanges) Sum() int {
	return s.HP + s.Attack + s.Defense + s.Speed + s.Bond + s.Experience
}

// ExecutionResult is the immutable output of the execution stage and the
// basis for the state merge.
type ExecutionResult struct {
	BehaviorDescription string      `json:"behavior_description"`
	Dialogue            string      `json:"dialogue,omitempty"`
	StatChanges         StatChanges `json:"stat_changes"`
	SpecialEffects      []string    `json:"special_effects,omitempty"`
	MoodDisplay         string      `json:"mood_display"`

	// Deterministically derived.
	EmotionalImpact int    `json:"emotional_impact"` // -5..5
	MemoryToAdd     string `json:"memory_to_add"`

	Source llm.Source `json:"source"`
}

// LayerResults bundles all three stage results for callers that want the
// full trace of a run.
type LayerResults struct {
	Perception PerceptionResult `json:"perception"`
	Core       CoreResult       `json:"core"`
	Execution  ExecutionResult  `json:"execution"`
}

// AlgorithmResults surfaces the key derived values of a run.
type AlgorithmResults struct {
	EmotionalWeight   float64 `json:"emotional_weight"`
	AdaptabilityScore int     `json:"adaptability_score"`
	TraitStability    int     `json:"trait_stability"`
	EmotionalImpact   int     `json:"emotional_impact"`
}

// Package pet provides the pet entity model: bounded stats, core traits,
// the memory stream, and persisted trait records.
package pet

import (
	"time"
)

// Stats holds every bounded scalar attribute of a pet.
// All values are clamped to [0, 100] after any pipeline run.
type Stats struct {
	// Mood register — drives perception and prompt context.
	Happiness int `json:"happiness"`
	Energy    int `json:"energy"`
	Trust     int `json:"trust"`
	Curiosity int `json:"curiosity"`

	// Combat register — mutated by execution-stage stat changes.
	HP         int `json:"hp"`
	Attack     int `json:"attack"`
	Defense    int `json:"defense"`
	Speed      int `json:"speed"`
	Bond       int `json:"bond"`
	Experience int `json:"experience"`
}

// CoreTraits is the slow-moving personality layer of a pet.
type CoreTraits struct {
	Dominant          string   `json:"dominant"`
	Secondary         []string `json:"secondary"`
	AdaptabilityLevel int      `json:"adaptability_level"` // 0–100
}

// MemoryEntry records a notable experience in the pet's life.
type MemoryEntry struct {
	Event           string    `json:"event"`
	Timestamp       time.Time `json:"timestamp"`
	EmotionalImpact int       `json:"emotional_impact"` // -5..+5
}

// State is the core entity representing a pet. It is exclusively owned by
// the pipeline orchestrator for the duration of a run.
type State struct {
	ID         string        `json:"id"`
	Stats      Stats         `json:"stats"`
	CoreTraits CoreTraits    `json:"core_traits"`
	Memories   []MemoryEntry `json:"memories,omitempty"`
	Traits     []Trait       `json:"traits,omitempty"`
	LastUpdate time.Time     `json:"last_update"`
}

// TraitType enumerates the four persisted trait categories.
type TraitType string

const (
	TraitAttack  TraitType = "attack"
	TraitDefense TraitType = "defense"
	TraitSpecial TraitType = "special"
	TraitPassive TraitType = "passive"
)

// Valid reports whether t is one of the four allowed types.
func (t TraitType) Valid() bool {
	switch t {
	case TraitAttack, TraitDefense, TraitSpecial, TraitPassive:
		return true
	}
	return false
}

// Trait is a persisted, bounded numeric modifier on a pet.
type Trait struct {
	ID               string    `json:"id"`
	PetID            string    `json:"pet_id"`
	Name             string    `json:"name"`
	Type             TraitType `json:"type"`
	EffectValue      int       `json:"effect_value"` // 1–50
	SpecialMechanism string    `json:"special_mechanism,omitempty"`
	IsNegative       bool      `json:"is_negative"`
	Rarity           string    `json:"rarity"`
	AcquisitionTime  time.Time `json:"acquisition_time"`
	IsActive         bool      `json:"is_active"`
}

// TraitCandidate is an untrusted trait proposal, typically parsed from
// generator output. It becomes a Trait only after validation.
type TraitCandidate struct {
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	EffectValue      float64 `json:"effect_value"`
	SpecialMechanism string  `json:"special_mechanism,omitempty"`
	IsNegative       bool    `json:"is_negative"`
	Rarity           string  `json:"rarity,omitempty"`
}

// BehaviorRecord is an immutable fact about one player action, appended to
// an append-only history.
type BehaviorRecord struct {
	ID            string    `json:"id"`
	PetID         string    `json:"pet_id"`
	ActionType    string    `json:"action_type"`
	ActionTarget  string    `json:"action_target"`
	KeywordsAdded []string  `json:"keywords_added,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

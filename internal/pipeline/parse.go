package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/petmind/internal/pet"
)

// extractJSON slices the outermost JSON value out of generator text,
// tolerating markdown fences and prose around it.
func extractJSON(text string, open, close byte) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON payload found")
	}
	return text[start : end+1], nil
}

// perceptionPayload is the generated half of a perception result.
type perceptionPayload struct {
	SituationType string   `json:"situation_type"`
	EmotionFactor int      `json:"emotion_factor"`
	Adaptability  int      `json:"adaptability"`
	KeyElements   []string `json:"key_elements"`
}

func parsePerception(text string) (perceptionPayload, error) {
	raw, err := extractJSON(text, '{', '}')
	if err != nil {
		return perceptionPayload{}, err
	}
	var p perceptionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return perceptionPayload{}, fmt.Errorf("parse perception: %w", err)
	}
	if p.SituationType == "" {
		return perceptionPayload{}, fmt.Errorf("perception missing situation_type")
	}
	p.EmotionFactor = pet.Clamp(p.EmotionFactor, -3, 3)
	p.Adaptability = pet.Clamp(p.Adaptability, 0, 100)
	if len(p.KeyElements) == 0 {
		p.KeyElements = []string{"unknown"}
	}
	return p, nil
}

// corePayload is the generated half of a core result.
type corePayload struct {
	EmotionAdjustment string            `json:"emotion_adjustment"`
	BehaviorTendency  BehaviorTendency  `json:"behavior_tendency"`
	LayerInstructions LayerInstructions `json:"layer_instructions"`
	TraitEvolution    TraitEvolution    `json:"trait_evolution"`
}

func parseCore(text string) (corePayload, error) {
	raw, err := extractJSON(text, '{', '}')
	if err != nil {
		return corePayload{}, err
	}
	var p corePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return corePayload{}, fmt.Errorf("parse core: %w", err)
	}
	t := &p.BehaviorTendency
	t.Aggression = pet.Clamp(t.Aggression, 0, 100)
	t.Caution = pet.Clamp(t.Caution, 0, 100)
	t.Sociability = pet.Clamp(t.Sociability, 0, 100)
	t.Independence = pet.Clamp(t.Independence, 0, 100)
	return p, nil
}

// executionPayload is the generated half of an execution result.
type executionPayload struct {
	BehaviorDescription string      `json:"behavior_description"`
	Dialogue            string      `json:"dialogue"`
	StatChanges         StatChanges `json:"stat_changes"`
	SpecialEffects      []string    `json:"special_effects"`
	MoodDisplay         string      `json:"mood_display"`
}

func parseExecution(text string) (executionPayload, error) {
	raw, err := extractJSON(text, '{', '}')
	if err != nil {
		return executionPayload{}, err
	}
	var p executionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return executionPayload{}, fmt.Errorf("parse execution: %w", err)
	}
	if p.BehaviorDescription == "" {
		return executionPayload{}, fmt.Errorf("execution missing behavior_description")
	}
	if p.MoodDisplay == "" {
		p.MoodDisplay = "neutral"
	}
	return p, nil
}

// ParseTraitCandidates extracts a candidate array from generator text.
// Used by the trait solidification engine's live path.
func ParseTraitCandidates(text string) ([]pet.TraitCandidate, error) {
	raw, err := extractJSON(text, '[', ']')
	if err != nil {
		return nil, err
	}
	var out []pet.TraitCandidate
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse trait candidates: %w", err)
	}
	return out, nil
}

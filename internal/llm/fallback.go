package llm

// Pre-authored fallback payloads, one per channel, shaped exactly like a
// successful payload so downstream parsers never special-case failure.

const fallbackPerception = `{
  "situation_type": "exploration",
  "emotion_factor": 0,
  "adaptability": 50,
  "key_elements": ["unknown"]
}`

const fallbackCore = `{
  "emotion_adjustment": "The pet holds its baseline reaction, neither drawn in nor pushed away.",
  "behavior_tendency": {
    "aggression": 30,
    "caution": 50,
    "sociability": 50,
    "independence": 50
  },
  "layer_instructions": {
    "focus_area": "immediate surroundings",
    "response_style": "keep baseline reaction",
    "decision_bias": "wait and observe",
    "special_instructions": ""
  },
  "trait_evolution": {
    "dominant_trait_shift": 0,
    "secondary_trait_changes": [],
    "new_trait_emergence": ""
  }
}`

const fallbackExecution = `{
  "behavior_description": "The pet pauses, tilts its head, and watches quietly before settling down.",
  "dialogue": "",
  "stat_changes": {
    "hp": 0,
    "attack": 0,
    "defense": 0,
    "speed": 0,
    "bond": 1,
    "experience": 1
  },
  "special_effects": [],
  "mood_display": "confused"
}`

const fallbackTraits = `[]`

// FallbackText returns the canned payload for a channel.
func FallbackText(ch Channel) string {
	switch ch {
	case ChannelPerception:
		return fallbackPerception
	case ChannelCore:
		return fallbackCore
	case ChannelExecution:
		return fallbackExecution
	case ChannelTraits:
		return fallbackTraits
	}
	return "{}"
}

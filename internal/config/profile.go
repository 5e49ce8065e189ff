package config

// DefaultProfile is the stock companion personality. Game variants swap in
// their own profile rather than re-implementing the pipeline.
func DefaultProfile() Profile {
	return Profile{
		Name: "companion",
		Personality: "You are a small, curious creature bonded to your keeper. " +
			"You are expressive but not theatrical, brave in familiar places and wary in new ones. " +
			"You remember kindness and you remember being startled.",

		PerceptionPrompt: `Read the situation below from the pet's point of view.

Respond with ONLY valid JSON (no markdown, no prose outside the JSON):
{
  "situation_type": "exploration" | "social" | "danger" | "rest" | "play",
  "emotion_factor": <integer -3..3, negative = distressing, positive = exciting>,
  "adaptability": <integer 0..100, how well the pet can adapt to this>,
  "key_elements": ["short", "nouns", "from", "the", "situation"]
}`,

		CorePrompt: `Decide how the pet's personality responds to what it just perceived.

Respond with ONLY valid JSON (no markdown, no prose outside the JSON):
{
  "emotion_adjustment": "one short sentence",
  "behavior_tendency": {
    "aggression": <integer 0..100>,
    "caution": <integer 0..100>,
    "sociability": <integer 0..100>,
    "independence": <integer 0..100>
  },
  "layer_instructions": {
    "focus_area": "what the pet is paying attention to",
    "response_style": "how it carries itself",
    "decision_bias": "what it leans toward doing",
    "special_instructions": "optional, empty string if none"
  },
  "trait_evolution": {
    "dominant_trait_shift": <integer -2..2>,
    "secondary_trait_changes": ["optional short notes"],
    "new_trait_emergence": "optional trait name, empty string if none"
  }
}`,

		ExecutionPrompt: `Produce the pet's concrete reaction.

Respond with ONLY valid JSON (no markdown, no prose outside the JSON):
{
  "behavior_description": "one or two sentences of what the pet does",
  "dialogue": "optional short vocalization, empty string if none",
  "stat_changes": {
    "hp": <integer>, "attack": <integer>, "defense": <integer>,
    "speed": <integer>, "bond": <integer>, "experience": <integer>
  },
  "special_effects": ["optional effect labels"],
  "mood_display": "one word mood"
}`,

		TraitsPrompt: `Propose new traits for the pet based on the evolution template below.

Respond with ONLY a valid JSON array (no markdown, no prose outside the JSON):
[
  {
    "name": "trait name",
    "type": "attack" | "defense" | "special" | "passive",
    "effect_value": <number 1..50>,
    "special_mechanism": "optional, empty string if none",
    "is_negative": <bool>,
    "rarity": "common" | "uncommon" | "rare"
  }
]`,
	}
}

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

func TestRunPerceptionDerivedValues(t *testing.T) {
	completer := &scriptedCompleter{
		perceive: `{"situation_type":"exploration","emotion_factor":3,"adaptability":100,"key_elements":["cave"]}`,
	}
	p, _ := newTestPipeline(completer)

	st := pet.NewState("p1") // happiness 50, energy 50, adaptability level 50
	st.AddMemory(pet.MemoryEntry{Event: "explored a damp cave"}, 10)

	out := p.RunPerception(context.Background(), st, "a cave mouth", "go in", nil)

	assert.Equal(t, "exploration", out.SituationType)
	// 0.7 × normalize(3) + 0.3 × (100/200) = 0.7 + 0.15
	assert.InDelta(t, 0.85, out.EmotionalWeight, 1e-9)
	// round(0.6×100 + 0.4×50)
	assert.Equal(t, 80, out.AdaptabilityScore)
	require.Len(t, out.MemoryInfluence, 1)
	assert.Contains(t, out.MemoryInfluence[0], "cave")
	assert.Equal(t, llm.SourceGenerated, out.Source)
}

func TestRunPerceptionNegativeEmotion(t *testing.T) {
	completer := &scriptedCompleter{
		perceive: `{"situation_type":"danger","emotion_factor":-3,"adaptability":0,"key_elements":["wolf"]}`,
	}
	p, _ := newTestPipeline(completer)

	st := pet.NewState("p1")
	st.Stats.Happiness = 0
	st.Stats.Energy = 0
	st.CoreTraits.AdaptabilityLevel = 0

	out := p.RunPerception(context.Background(), st, "a wolf appears", "freeze", nil)

	assert.InDelta(t, 0.0, out.EmotionalWeight, 1e-9)
	assert.Equal(t, 0, out.AdaptabilityScore)
	assert.Empty(t, out.MemoryInfluence)
}

func TestRunPerceptionParseFailure(t *testing.T) {
	completer := &scriptedCompleter{perceive: "I cannot answer in JSON, sorry."}
	p, _ := newTestPipeline(completer)

	st := pet.NewState("p1")
	out := p.RunPerception(context.Background(), st, "anything", "anything", nil)

	// Fixed default perception.
	assert.Equal(t, "exploration", out.SituationType)
	assert.Equal(t, 0, out.EmotionFactor)
	assert.Equal(t, 50, out.Adaptability)
	assert.Equal(t, []string{"unknown"}, out.KeyElements)
	assert.Equal(t, llm.SourceFallback, out.Source)

	// Derived values still computed from the default.
	assert.InDelta(t, 0.5, out.EmotionalWeight, 1e-9)
	assert.Equal(t, 50, out.AdaptabilityScore)
}

func TestRunPerceptionClampsGeneratedValues(t *testing.T) {
	completer := &scriptedCompleter{
		perceive: `{"situation_type":"play","emotion_factor":9,"adaptability":400,"key_elements":["ball"]}`,
	}
	p, _ := newTestPipeline(completer)

	out := p.RunPerception(context.Background(), pet.NewState("p1"), "a ball", "throw it", nil)

	assert.Equal(t, 3, out.EmotionFactor)
	assert.Equal(t, 100, out.Adaptability)
}

func TestBuildPerceptionPromptIncludesEnvironment(t *testing.T) {
	st := pet.NewState("p1")
	prompt := buildPerceptionPrompt(st, "a cave", "go in", map[string]string{"weather": "rainy"})

	assert.Contains(t, prompt, "Situation: a cave")
	assert.Contains(t, prompt, "Keeper's choice: go in")
	assert.Contains(t, prompt, "weather: rainy")
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// memRepo is an in-memory pet.Repository for pipeline tests.
type memRepo struct {
	mu        sync.Mutex
	pets      map[string]*pet.State
	behaviors []pet.BehaviorRecord
	failGet   bool
	panicSave bool
}

func newMemRepo() *memRepo {
	return &memRepo{pets: make(map[string]*pet.State)}
}

func (r *memRepo) GetPet(id string) (*pet.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet {
		return nil, fmt.Errorf("storage offline")
	}
	if st, ok := r.pets[id]; ok {
		return st, nil
	}
	return pet.NewState(id), nil
}

func (r *memRepo) SavePet(st *pet.State) error {
	if r.panicSave {
		panic("storage corrupted")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pets[st.ID] = st
	return nil
}

func (r *memRepo) AppendBehavior(rec pet.BehaviorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors = append(r.behaviors, rec)
	return nil
}

func (r *memRepo) AppendTrait(t pet.Trait) error { return nil }

func (r *memRepo) PetHistory(petID string, limit int) ([]pet.BehaviorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pet.BehaviorRecord(nil), r.behaviors...), nil
}

func newTestOrchestrator(c llm.Completer, repo pet.Repository) (*Orchestrator, *config.Config) {
	cfg := config.Default()
	gw := llm.NewGateway(c, cfg.Generator)
	return NewOrchestrator(repo, New(gw, cfg), cfg), cfg
}

func TestProcessReactionGeneratorAlwaysFails(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	orch, _ := newTestOrchestrator(completer, repo)

	r := orch.ProcessReaction(context.Background(), "p1", "explore a cave", "go in", map[string]string{})

	require.NotNil(t, r)
	assert.True(t, r.Success)
	assert.Equal(t, "confused", r.Reaction.MoodDisplay)
	assert.Equal(t, StatChanges{HP: 0, Attack: 0, Defense: 0, Speed: 0, Bond: 1, Experience: 1}, r.Reaction.StatChanges)
	require.NotNil(t, r.LayerResults)
	assert.Equal(t, llm.SourceFallback, r.LayerResults.Perception.Source)
	assert.Equal(t, llm.SourceFallback, r.LayerResults.Core.Source)
	assert.Equal(t, llm.SourceFallback, r.LayerResults.Execution.Source)
}

func TestProcessReactionStageOrdering(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	orch, _ := newTestOrchestrator(completer, newMemRepo())

	orch.ProcessReaction(context.Background(), "p1", "a quiet meadow", "rest", nil)

	assert.Equal(t, []string{"perception", "core", "execution"}, completer.callOrder())
}

func TestProcessReactionStatBoundedness(t *testing.T) {
	// A generator that always proposes large gains must never push any
	// stat outside its bounds.
	completer := &scriptedCompleter{
		perceive: `{"situation_type":"play","emotion_factor":3,"adaptability":90,"key_elements":["ball"]}`,
		core: `{
			"emotion_adjustment": "delighted",
			"behavior_tendency": {"aggression":40,"caution":60,"sociability":50,"independence":50},
			"layer_instructions": {"focus_area":"the ball","response_style":"eager","decision_bias":"chase","special_instructions":""},
			"trait_evolution": {"dominant_trait_shift":0,"secondary_trait_changes":[],"new_trait_emergence":""}
		}`,
		execute: `{
			"behavior_description": "The pet bounds after the ball.",
			"dialogue": "",
			"stat_changes": {"hp":18,"attack":18,"defense":18,"speed":18,"bond":18,"experience":18},
			"special_effects": [],
			"mood_display": "elated"
		}`,
	}
	repo := newMemRepo()
	orch, cfg := newTestOrchestrator(completer, repo)

	for i := 0; i < 6; i++ {
		r := orch.ProcessReaction(context.Background(), "p1", "a red ball", "throw it", nil)
		require.True(t, r.Success)
		assertWithin(t, r.Reaction.StatChanges, cfg.Pet.StatChangeLimit)
	}

	st, err := repo.GetPet("p1")
	require.NoError(t, err)
	for name, v := range map[string]int{
		"happiness": st.Stats.Happiness, "energy": st.Stats.Energy,
		"trust": st.Stats.Trust, "curiosity": st.Stats.Curiosity,
		"hp": st.Stats.HP, "attack": st.Stats.Attack,
		"defense": st.Stats.Defense, "speed": st.Stats.Speed,
		"bond": st.Stats.Bond, "experience": st.Stats.Experience,
	} {
		assert.GreaterOrEqual(t, v, cfg.Pet.StatMin, name)
		assert.LessOrEqual(t, v, cfg.Pet.StatMax, name)
	}
}

func assertWithin(t *testing.T, d StatChanges, limit int) {
	t.Helper()
	for _, v := range []int{d.HP, d.Attack, d.Defense, d.Speed, d.Bond, d.Experience} {
		assert.GreaterOrEqual(t, v, -limit)
		assert.LessOrEqual(t, v, limit)
	}
}

func TestProcessReactionMemoryCap(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	orch, cfg := newTestOrchestrator(completer, repo)
	cfg.Pet.MemoryCapacity = 3

	for i := 0; i < 5; i++ {
		orch.ProcessReaction(context.Background(), "p1", fmt.Sprintf("situation %d", i), "wait", nil)
	}

	st, err := repo.GetPet("p1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(st.Memories), 3)
	assert.NotEmpty(t, st.Memories)
}

func TestProcessReactionRepositoryReadFailure(t *testing.T) {
	// A broken read degrades to a fresh default pet; the caller still
	// gets a reaction.
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	repo.failGet = true
	orch, _ := newTestOrchestrator(completer, repo)

	r := orch.ProcessReaction(context.Background(), "p1", "anything", "anything", nil)

	require.NotNil(t, r)
	assert.True(t, r.Success)
	assert.NotEmpty(t, r.Reaction.BehaviorDescription)
}

func TestProcessReactionRecoversFromPanic(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	repo.panicSave = true
	orch, _ := newTestOrchestrator(completer, repo)

	r := orch.ProcessReaction(context.Background(), "p1", "anything", "anything", nil)

	require.NotNil(t, r)
	assert.False(t, r.Success)
	assert.True(t, r.Fallback)
	assert.NotEmpty(t, r.Error)
	assert.NotEmpty(t, r.Reaction.BehaviorDescription)
	assert.Equal(t, llm.SourceFallback, r.Reaction.Source)
}

func TestProcessReactionAppendsBehaviorRecord(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	orch, _ := newTestOrchestrator(completer, repo)

	orch.ProcessReaction(context.Background(), "p1", "explore a cave", "go in", nil)

	require.Len(t, repo.behaviors, 1)
	rec := repo.behaviors[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "p1", rec.PetID)
	assert.Equal(t, "go in", rec.ActionType)
	assert.Equal(t, "explore a cave", rec.ActionTarget)
	assert.Equal(t, []string{"unknown"}, rec.KeywordsAdded)
}

func TestProcessReactionConcurrentRunsSerialized(t *testing.T) {
	completer := &scriptedCompleter{failEvery: true}
	repo := newMemRepo()
	orch, cfg := newTestOrchestrator(completer, repo)
	cfg.Pet.MemoryCapacity = 100

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := orch.ProcessReaction(context.Background(), "p1", "a noise", "listen", nil)
			assert.True(t, r.Success)
		}()
	}
	wg.Wait()

	// Every run merged: 8 memories, 8 bond points over the baseline.
	st, err := repo.GetPet("p1")
	require.NoError(t, err)
	assert.Len(t, st.Memories, 8)
	assert.Equal(t, pet.NewState("p1").Stats.Bond+8, st.Stats.Bond)
}

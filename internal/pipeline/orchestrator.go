package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
)

// secondaryTraitCap bounds how many secondary trait labels a pet carries;
// oldest are dropped first.
const secondaryTraitCap = 8

// Reaction is the public result of a pipeline run. It is always populated:
// a run that faults still carries a canned fallback reaction, so callers
// never need their own error path for this subsystem.
type Reaction struct {
	Success          bool              `json:"success"`
	Reaction         ExecutionResult   `json:"reaction"`
	LayerResults     *LayerResults     `json:"layer_results,omitempty"`
	AlgorithmResults *AlgorithmResults `json:"algorithm_results,omitempty"`
	Error            string            `json:"error,omitempty"`
	Fallback         bool              `json:"fallback,omitempty"`
}

// Orchestrator sequences perception → core → execution → merge and owns
// the pet state for the duration of a run. Runs for the same pet id are
// serialized on a per-pet lock, so concurrent triggers cannot race the
// final merge.
type Orchestrator struct {
	repo pet.Repository
	pipe *Pipeline
	cfg  *config.Config

	locks sync.Map // pet id → *sync.Mutex
}

// NewOrchestrator creates an orchestrator over a repository and pipeline.
func NewOrchestrator(repo pet.Repository, pipe *Pipeline, cfg *config.Config) *Orchestrator {
	return &Orchestrator{repo: repo, pipe: pipe, cfg: cfg}
}

func (o *Orchestrator) lockFor(petID string) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(petID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessReaction is the pipeline's only public entry point. It never
// panics and never returns nil: every input, including a generator that
// always fails, produces a populated reaction.
func (o *Orchestrator) ProcessReaction(ctx context.Context, petID, situation, playerChoice string, environment map[string]string) (reaction *Reaction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline fault", "pet", petID, "panic", r)
			reaction = FallbackReaction(fmt.Sprintf("pipeline fault: %v", r))
		}
	}()

	mu := o.lockFor(petID)
	mu.Lock()
	defer mu.Unlock()

	st, err := o.repo.GetPet(petID)
	if err != nil || st == nil {
		if err != nil {
			slog.Warn("pet load failed, starting fresh", "pet", petID, "error", err)
		}
		st = pet.NewState(petID)
	}

	slog.Debug("pipeline run", "pet", petID, "phase", "perception")
	perception := o.pipe.RunPerception(ctx, st, situation, playerChoice, environment)

	slog.Debug("pipeline run", "pet", petID, "phase", "core")
	core := o.pipe.RunCore(ctx, st, perception)

	slog.Debug("pipeline run", "pet", petID, "phase", "execution")
	execution := o.pipe.RunExecution(ctx, st, core)

	slog.Debug("pipeline run", "pet", petID, "phase", "merging")
	o.merge(st, perception, core, execution)

	if err := o.repo.SavePet(st); err != nil {
		slog.Warn("pet save failed", "pet", petID, "error", err)
	}
	record := pet.BehaviorRecord{
		ID:            uuid.NewString(),
		PetID:         petID,
		ActionType:    playerChoice,
		ActionTarget:  situation,
		KeywordsAdded: perception.KeyElements,
		Timestamp:     time.Now(),
	}
	if err := o.repo.AppendBehavior(record); err != nil {
		slog.Warn("behavior record append failed", "pet", petID, "error", err)
	}

	return &Reaction{
		Success:  true,
		Reaction: execution,
		LayerResults: &LayerResults{
			Perception: perception,
			Core:       core,
			Execution:  execution,
		},
		AlgorithmResults: &AlgorithmResults{
			EmotionalWeight:   perception.EmotionalWeight,
			AdaptabilityScore: perception.AdaptabilityScore,
			TraitStability:    core.TraitStability,
			EmotionalImpact:   execution.EmotionalImpact,
		},
	}
}

// merge applies the run's final deltas to pet state: stat changes under
// the configured bounds, core trait updates, one memory entry, and the
// update timestamp. Exactly one repository write follows per run.
func (o *Orchestrator) merge(st *pet.State, perception PerceptionResult, core CoreResult, execution ExecutionResult) {
	now := time.Now()

	d := execution.StatChanges
	st.Stats.HP += d.HP
	st.Stats.Attack += d.Attack
	st.Stats.Defense += d.Defense
	st.Stats.Speed += d.Speed
	st.Stats.Bond += d.Bond
	st.Stats.Experience += d.Experience
	st.Stats.Happiness += execution.EmotionalImpact
	st.Stats.ClampStats(o.cfg.Pet.StatMin, o.cfg.Pet.StatMax)

	te := core.TraitEvolution
	if te.NewTraitEmergence != "" {
		if st.CoreTraits.Dominant == "" {
			st.CoreTraits.Dominant = te.NewTraitEmergence
		} else {
			st.CoreTraits.Secondary = appendTraitLabel(st.CoreTraits.Secondary, te.NewTraitEmergence)
		}
	}
	for _, change := range te.SecondaryTraitChanges {
		st.CoreTraits.Secondary = appendTraitLabel(st.CoreTraits.Secondary, change)
	}
	st.CoreTraits.AdaptabilityLevel = pet.Clamp(
		st.CoreTraits.AdaptabilityLevel+te.DominantTraitShift, 0, 100)

	if execution.MemoryToAdd != "" {
		st.AddMemory(pet.MemoryEntry{
			Event:           execution.MemoryToAdd,
			Timestamp:       now,
			EmotionalImpact: execution.EmotionalImpact,
		}, o.cfg.Pet.MemoryCapacity)
	}

	st.LastUpdate = now
}

// appendTraitLabel adds a label to the secondary trait list, skipping
// duplicates and evicting the oldest label past the cap.
func appendTraitLabel(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	labels = append(labels, label)
	if over := len(labels) - secondaryTraitCap; over > 0 {
		labels = append(labels[:0:0], labels[over:]...)
	}
	return labels
}

// FallbackReaction is the canned, always-available reaction returned when
// the pipeline itself faults.
func FallbackReaction(errMsg string) *Reaction {
	payload := defaultExecutionPayload()
	exec := ExecutionResult{
		BehaviorDescription: payload.BehaviorDescription,
		StatChanges:         payload.StatChanges,
		MoodDisplay:         payload.MoodDisplay,
		MemoryToAdd:         payload.BehaviorDescription,
		Source:              llm.SourceFallback,
	}
	return &Reaction{
		Success:  false,
		Reaction: exec,
		Error:    errMsg,
		Fallback: true,
	}
}

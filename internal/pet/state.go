package pet

import (
	"strings"
	"time"
)

// NewState creates a pet with default attributes. Pets are constructed
// lazily on first interaction.
func NewState(id string) *State {
	return &State{
		ID: id,
		Stats: Stats{
			Happiness:  50,
			Energy:     50,
			Trust:      30,
			Curiosity:  60,
			HP:         50,
			Attack:     10,
			Defense:    10,
			Speed:      10,
			Bond:       10,
			Experience: 0,
		},
		CoreTraits: CoreTraits{
			Dominant:          "curious",
			Secondary:         []string{"playful"},
			AdaptabilityLevel: 50,
		},
		LastUpdate: time.Now(),
	}
}

// AddMemory appends an entry to the pet's memory stream, evicting the
// oldest entry when the stream is at capacity. Entries stay in
// oldest-first order.
func (s *State) AddMemory(e MemoryEntry, capacity int) {
	if capacity <= 0 {
		return
	}
	s.Memories = append(s.Memories, e)
	if over := len(s.Memories) - capacity; over > 0 {
		s.Memories = append(s.Memories[:0:0], s.Memories[over:]...)
	}
}

// RecentMemories returns up to count of the most recent entries,
// newest first.
func (s *State) RecentMemories(count int) []MemoryEntry {
	if count <= 0 || len(s.Memories) == 0 {
		return nil
	}
	if count > len(s.Memories) {
		count = len(s.Memories)
	}
	out := make([]MemoryEntry, 0, count)
	for i := len(s.Memories) - 1; i >= len(s.Memories)-count; i-- {
		out = append(out, s.Memories[i])
	}
	return out
}

// RemembersElement reports whether any of the last n memory entries
// mentions the given element. Matching is plain substring containment,
// case-insensitive.
func (s *State) RemembersElement(element string, n int) bool {
	if element == "" {
		return false
	}
	needle := strings.ToLower(element)
	for _, m := range s.RecentMemories(n) {
		if strings.Contains(strings.ToLower(m.Event), needle) {
			return true
		}
	}
	return false
}

// ActiveTraitCount returns the number of active traits of the given type.
func (s *State) ActiveTraitCount(t TraitType) int {
	n := 0
	for _, tr := range s.Traits {
		if tr.IsActive && tr.Type == t {
			n++
		}
	}
	return n
}

// Reset clears all derived state while keeping the pet's identity.
func (s *State) Reset() {
	id := s.ID
	*s = *NewState(id)
}

package pet

import "golang.org/x/exp/constraints"

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampStats bounds every scalar attribute to [lo, hi] in place.
func (s *Stats) ClampStats(lo, hi int) {
	s.Happiness = Clamp(s.Happiness, lo, hi)
	s.Energy = Clamp(s.Energy, lo, hi)
	s.Trust = Clamp(s.Trust, lo, hi)
	s.Curiosity = Clamp(s.Curiosity, lo, hi)
	s.HP = Clamp(s.HP, lo, hi)
	s.Attack = Clamp(s.Attack, lo, hi)
	s.Defense = Clamp(s.Defense, lo, hi)
	s.Speed = Clamp(s.Speed, lo, hi)
	s.Bond = Clamp(s.Bond, lo, hi)
	s.Experience = Clamp(s.Experience, lo, hi)
}

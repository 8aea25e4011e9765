package progression

import "quizcoach-backend/internal/apperr"

// State is the mutable part of a user's proficiency record.
type State struct {
	Level            int  `json:"level"`
	Streak           int  `json:"streak"`
	PendingPromotion bool `json:"pending_promotion"`
	OfferedLevel     int  `json:"offered_level,omitempty"`
}

// Change describes what one transition did to a State.
type Change struct {
	From           int  `json:"from_level"`
	To             int  `json:"to_level"`
	PromotionOffer bool `json:"promotion_offered"`
}

func (c Change) LevelChanged() bool { return c.From != c.To }

// NewState returns the state of a user seen for the first time.
func (p Policy) NewState() State {
	return State{Level: p.DefaultLevel}
}

// RecordOutcome applies one graded answer. While a promotion offer is pending
// the level and streak stay frozen.
func (s *State) RecordOutcome(p Policy, correct bool, signal Signal) Change {
	s.Level = p.Clamp(s.Level)
	ch := Change{From: s.Level, To: s.Level}
	if s.PendingPromotion {
		return ch
	}

	if p.Mode == ModeStreak {
		if !correct {
			s.Streak = 0
			if signal == SignalHard {
				s.Level = p.Clamp(s.Level - 1)
			}
			ch.To = s.Level
			return ch
		}
		s.Streak++
		if s.Streak >= p.StreakThreshold && s.Level < p.MaxLevel {
			s.PendingPromotion = true
			s.OfferedLevel = s.Level + 1
			ch.PromotionOffer = true
		}
		return ch
	}

	if correct {
		s.Streak++
	} else {
		s.Streak = 0
	}
	s.Level = p.ApplyOutcome(s.Level, correct, signal)
	if s.Level != ch.From {
		s.Streak = 0
	}
	ch.To = s.Level
	return ch
}

// ApplyFeedback applies an explicit difficulty signal outside of grading.
func (s *State) ApplyFeedback(p Policy, signal Signal) (Change, error) {
	s.Level = p.Clamp(s.Level)
	ch := Change{From: s.Level, To: s.Level}
	if s.PendingPromotion {
		return ch, apperr.Validation("a promotion to level %d is pending; accept or decline it first", s.OfferedLevel)
	}
	s.Level = p.ApplyFeedback(s.Level, signal)
	if s.Level != ch.From {
		s.Streak = 0
	}
	ch.To = s.Level
	return ch, nil
}

// ResolvePromotion accepts or declines the pending offer. Either way the
// streak starts over.
func (s *State) ResolvePromotion(p Policy, accept bool) (Change, error) {
	ch := Change{From: s.Level, To: s.Level}
	if !s.PendingPromotion {
		return ch, apperr.Validation("no promotion offer is pending")
	}
	if accept {
		s.Level = p.Clamp(s.OfferedLevel)
	}
	s.Streak = 0
	s.PendingPromotion = false
	s.OfferedLevel = 0
	ch.To = s.Level
	return ch, nil
}

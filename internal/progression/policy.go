// Package progression moves a user's proficiency level up and down from graded
// outcomes and explicit difficulty feedback.
package progression

import (
	"strings"

	"quizcoach-backend/internal/apperr"
)

type Signal string

const (
	SignalNone    Signal = ""
	SignalHard    Signal = "hard"
	SignalEasy    Signal = "easy"
	SignalNeutral Signal = "neutral"
)

// ParseSignal accepts hard, easy, neutral or an empty string, case-insensitively.
func ParseSignal(raw string) (Signal, error) {
	switch s := Signal(strings.ToLower(strings.TrimSpace(raw))); s {
	case SignalNone, SignalHard, SignalEasy, SignalNeutral:
		return s, nil
	default:
		return SignalNone, apperr.Validation("unknown difficulty signal %q", raw)
	}
}

type Mode string

const (
	// ModeImmediate promotes on every correct answer.
	ModeImmediate Mode = "immediate"
	// ModeStreak offers a promotion after StreakThreshold consecutive correct answers.
	ModeStreak Mode = "streak"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeImmediate, nil
	case ModeImmediate, ModeStreak:
		return m, nil
	default:
		return "", apperr.Validation("unknown promotion mode %q", raw)
	}
}

type Policy struct {
	MinLevel        int
	MaxLevel        int
	DefaultLevel    int
	StreakThreshold int
	Mode            Mode
}

func DefaultPolicy() Policy {
	return Policy{
		MinLevel:        1,
		MaxLevel:        10,
		DefaultLevel:    3,
		StreakThreshold: 5,
		Mode:            ModeImmediate,
	}
}

// Normalize fills zero fields from DefaultPolicy and repairs inverted bounds.
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.MinLevel <= 0 {
		p.MinLevel = d.MinLevel
	}
	if p.MaxLevel <= 0 {
		p.MaxLevel = d.MaxLevel
	}
	if p.MaxLevel < p.MinLevel {
		p.MaxLevel = p.MinLevel
	}
	if p.DefaultLevel == 0 {
		p.DefaultLevel = d.DefaultLevel
	}
	p.DefaultLevel = p.Clamp(p.DefaultLevel)
	if p.StreakThreshold <= 0 {
		p.StreakThreshold = d.StreakThreshold
	}
	if p.Mode == "" {
		p.Mode = d.Mode
	}
	return p
}

func (p Policy) Clamp(level int) int {
	if level < p.MinLevel {
		return p.MinLevel
	}
	if level > p.MaxLevel {
		return p.MaxLevel
	}
	return level
}

// ValidLevel reports whether level lies inside [MinLevel, MaxLevel].
func (p Policy) ValidLevel(level int) bool {
	return level >= p.MinLevel && level <= p.MaxLevel
}

// ApplyOutcome is the grading-outcome rule. A wrong answer only demotes when
// the user explicitly flagged the question as hard.
func (p Policy) ApplyOutcome(level int, correct bool, signal Signal) int {
	switch {
	case correct:
		return p.Clamp(level + 1)
	case signal == SignalHard:
		return p.Clamp(level - 1)
	default:
		return p.Clamp(level)
	}
}

// ApplyFeedback adjusts a level from an explicit difficulty signal. Repeated
// calls keep moving the level until it hits a bound.
func (p Policy) ApplyFeedback(level int, signal Signal) int {
	switch signal {
	case SignalEasy:
		return p.Clamp(level + 1)
	case SignalHard:
		return p.Clamp(level - 1)
	default:
		return p.Clamp(level)
	}
}

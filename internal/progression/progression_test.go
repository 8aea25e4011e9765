package progression

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quizcoach-backend/internal/apperr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseSignal(t *testing.T) {
	for raw, want := range map[string]Signal{
		"":        SignalNone,
		"hard":    SignalHard,
		" EASY ":  SignalEasy,
		"Neutral": SignalNeutral,
	} {
		got, err := ParseSignal(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseSignal("impossible")
	assert.True(t, apperr.IsValidation(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeImmediate, m)

	m, err = ParseMode("Streak")
	require.NoError(t, err)
	assert.Equal(t, ModeStreak, m)

	_, err = ParseMode("random")
	assert.Error(t, err)
}

func TestApplyOutcomeStaysInBounds(t *testing.T) {
	p := DefaultPolicy()
	signals := []Signal{SignalNone, SignalHard, SignalEasy, SignalNeutral}
	for level := -3; level <= 14; level++ {
		for _, correct := range []bool{true, false} {
			for _, sig := range signals {
				got := p.ApplyOutcome(level, correct, sig)
				assert.GreaterOrEqual(t, got, 1)
				assert.LessOrEqual(t, got, 10)
			}
		}
	}
}

func TestWrongAnswerWithoutHardNeverDemotes(t *testing.T) {
	p := DefaultPolicy()
	for level := 1; level <= 10; level++ {
		assert.Equal(t, level, p.ApplyOutcome(level, false, SignalNone))
		assert.Equal(t, level, p.ApplyOutcome(level, false, SignalEasy))
		assert.Equal(t, level, p.ApplyOutcome(level, false, SignalNeutral))
	}
}

func TestHardSignalDemotesOnlyWrongAnswers(t *testing.T) {
	p := DefaultPolicy()
	level := p.ApplyOutcome(5, false, SignalNone)
	assert.Equal(t, 5, level)
	level = p.ApplyOutcome(level, false, SignalHard)
	assert.Equal(t, 4, level)
}

func TestApplyOutcomeClampsAtEdges(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 10, p.ApplyOutcome(10, true, SignalNone))
	assert.Equal(t, 1, p.ApplyOutcome(1, false, SignalHard))
	// The signal is ignored on correct answers.
	assert.Equal(t, 6, p.ApplyOutcome(5, true, SignalHard))
}

func TestApplyFeedbackIsRepeatable(t *testing.T) {
	p := DefaultPolicy()
	level := 8
	for i := 0; i < 5; i++ {
		level = p.ApplyFeedback(level, SignalEasy)
	}
	assert.Equal(t, 10, level)
	assert.Equal(t, 9, p.ApplyFeedback(level, SignalHard))
	assert.Equal(t, 10, p.ApplyFeedback(level, SignalNeutral))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, DefaultPolicy(), Policy{}.Normalize())

	p := Policy{MinLevel: 4, MaxLevel: 2, DefaultLevel: 9}.Normalize()
	assert.Equal(t, 4, p.MaxLevel)
	assert.Equal(t, 4, p.DefaultLevel)
	assert.True(t, p.ValidLevel(4))
	assert.False(t, p.ValidLevel(5))
}

func TestImmediateModePromotesEveryCorrectAnswer(t *testing.T) {
	p := DefaultPolicy()
	s := p.NewState()
	for i := 0; i < 5; i++ {
		ch := s.RecordOutcome(p, true, SignalNone)
		assert.True(t, ch.LevelChanged())
		assert.False(t, ch.PromotionOffer)
	}
	assert.Equal(t, State{Level: 8}, s)
}

func TestImmediateModeStreakAtMaxLevel(t *testing.T) {
	p := DefaultPolicy()
	s := State{Level: 10}
	s.RecordOutcome(p, true, SignalNone)
	s.RecordOutcome(p, true, SignalNone)
	assert.Equal(t, 2, s.Streak)
	s.RecordOutcome(p, false, SignalNone)
	assert.Equal(t, State{Level: 10}, s)
}

func TestStreakOfferDeclined(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	s := State{Level: 4}

	for i := 0; i < 4; i++ {
		ch := s.RecordOutcome(p, true, SignalNone)
		require.False(t, ch.PromotionOffer, "offer raised early at answer %d", i+1)
	}
	ch := s.RecordOutcome(p, true, SignalNone)
	assert.True(t, ch.PromotionOffer)
	assert.False(t, ch.LevelChanged())

	want := State{Level: 4, Streak: 5, PendingPromotion: true, OfferedLevel: 5}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("state after offer (-want +got):\n%s", diff)
	}

	ch, err := s.ResolvePromotion(p, false)
	require.NoError(t, err)
	assert.False(t, ch.LevelChanged())
	assert.Equal(t, State{Level: 4}, s)
}

func TestStreakModeAccept(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	p.StreakThreshold = 2
	s := State{Level: 6}

	s.RecordOutcome(p, true, SignalNone)
	s.RecordOutcome(p, true, SignalNone)
	require.True(t, s.PendingPromotion)

	ch, err := s.ResolvePromotion(p, true)
	require.NoError(t, err)
	assert.Equal(t, Change{From: 6, To: 7}, ch)
	assert.Equal(t, State{Level: 7}, s)
}

func TestPendingOfferFreezesLevel(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	s := State{Level: 4, Streak: 5, PendingPromotion: true, OfferedLevel: 5}
	before := s

	ch := s.RecordOutcome(p, false, SignalHard)
	assert.False(t, ch.LevelChanged())
	assert.Equal(t, before, s)

	_, err := s.ApplyFeedback(p, SignalEasy)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, before, s)
}

func TestStreakModeIncorrectResetsStreak(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	s := State{Level: 4, Streak: 3}

	s.RecordOutcome(p, false, SignalNone)
	assert.Equal(t, State{Level: 4}, s)

	s.Streak = 2
	ch := s.RecordOutcome(p, false, SignalHard)
	assert.Equal(t, Change{From: 4, To: 3}, ch)
	assert.Equal(t, State{Level: 3}, s)
}

func TestStreakModeNoOfferAtMaxLevel(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	s := State{Level: 10, Streak: 4}
	ch := s.RecordOutcome(p, true, SignalNone)
	assert.False(t, ch.PromotionOffer)
	assert.False(t, s.PendingPromotion)
}

func TestResolveWithoutOffer(t *testing.T) {
	p := DefaultPolicy()
	s := State{Level: 3}
	_, err := s.ResolvePromotion(p, true)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, State{Level: 3}, s)
}

func TestFeedbackResetsStreakOnLevelChange(t *testing.T) {
	p := DefaultPolicy()
	p.Mode = ModeStreak
	s := State{Level: 3, Streak: 2}

	ch, err := s.ApplyFeedback(p, SignalNeutral)
	require.NoError(t, err)
	assert.False(t, ch.LevelChanged())
	assert.Equal(t, 2, s.Streak)

	_, err = s.ApplyFeedback(p, SignalEasy)
	require.NoError(t, err)
	assert.Equal(t, State{Level: 4}, s)
}

// Package service holds the quiz core operations: practice grading,
// proficiency updates, assessment sessions and progress reports.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/progression"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/utilities"
)

const maxVersionRetries = 3

var tracer = otel.Tracer("quizcoach-backend/internal/service")

// Settings are the learning knobs shared by the services.
type Settings struct {
	Policy               progression.Policy
	DefaultTopic         model.Topic
	AssessmentLength     int
	RecentExclude        int
	PracticeTTL          time.Duration
	AssessmentIdleExpiry time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Policy:           progression.DefaultPolicy(),
		DefaultTopic:     model.TopicVocabulary,
		AssessmentLength: 5,
		RecentExclude:    10,
		PracticeTTL:      time.Hour,
	}
}

// SettingsFromConfig validates the LEARNING and SESSION sections.
func SettingsFromConfig(lc config.LearningConfig, sc config.SessionConfig) (Settings, error) {
	mode, err := progression.ParseMode(lc.PromotionMode)
	if err != nil {
		return Settings{}, err
	}
	topic, err := model.ParseTopic(lc.DefaultTopic)
	if err != nil {
		return Settings{}, err
	}
	policy := progression.Policy{
		MinLevel:        lc.MinLevel,
		MaxLevel:        lc.MaxLevel,
		DefaultLevel:    lc.DefaultLevel,
		StreakThreshold: lc.StreakThreshold,
		Mode:            mode,
	}.Normalize()
	s := Settings{
		Policy:               policy,
		DefaultTopic:         topic,
		AssessmentLength:     lc.AssessmentLength,
		RecentExclude:        lc.RecentExclude,
		PracticeTTL:          time.Duration(sc.TTL) * time.Minute,
		AssessmentIdleExpiry: time.Duration(lc.AssessmentIdleExpiry) * time.Minute,
	}
	if s.AssessmentLength <= 0 {
		s.AssessmentLength = 5
	}
	return s, nil
}

// Deps wires the services to their collaborators.
type Deps struct {
	Questions   repository.QuestionRepository
	Progress    repository.ProgressRepository
	Attempts    repository.AttemptRepository
	Assessments repository.AssessmentRepository
	Sessions    repository.SessionStore
	Exec        *db.QueryExecutor
	Locker      Locker
	Bus         *utilities.EventBus
	Log         *utilities.Logger
	Settings    Settings
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Log == nil {
		d.Log = utilities.NopLogger()
	}
	if d.Bus == nil {
		d.Bus = utilities.GlobalEventBus
	}
	if d.Settings.AssessmentLength == 0 {
		d.Settings = DefaultSettings()
	}
	return d
}

// QuestionView is a question as shown to a learner: no answer key, no
// explanation.
type QuestionView struct {
	ID       string      `json:"id"`
	Topic    model.Topic `json:"topic"`
	Level    int         `json:"level"`
	Prompt   string      `json:"prompt"`
	Choices  []string    `json:"choices"`
	MediaURL string      `json:"media_url,omitempty"`
}

func viewOf(q *model.Question) *QuestionView {
	if q == nil {
		return nil
	}
	choices := []string(q.Choices)
	if choices == nil {
		choices = []string{}
	}
	return &QuestionView{
		ID:       q.ID,
		Topic:    q.Topic,
		Level:    q.Level,
		Prompt:   q.Prompt,
		Choices:  choices,
		MediaURL: q.MediaURL,
	}
}

func requireUser(userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", apperr.Validation("user id is required")
	}
	return id, nil
}

func requireAnswer(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperr.Validation("answer is empty")
	}
	return nil
}

func (s Settings) checkLevel(level int) error {
	if !s.Policy.ValidLevel(level) {
		return apperr.Validation("level %d outside [%d, %d]", level, s.Policy.MinLevel, s.Policy.MaxLevel)
	}
	return nil
}

func (s Settings) defaultProgress(userID string) model.UserProgress {
	return model.UserProgress{
		UserID: userID,
		Level:  s.Policy.DefaultLevel,
		Topic:  s.DefaultTopic,
	}
}

func stateOf(p *model.UserProgress) progression.State {
	return progression.State{
		Level:            p.Level,
		Streak:           p.Streak,
		PendingPromotion: p.PendingPromotion,
		OfferedLevel:     p.OfferedLevel,
	}
}

func applyState(p *model.UserProgress, st progression.State) {
	p.Level = st.Level
	p.Streak = st.Streak
	p.PendingPromotion = st.PendingPromotion
	p.OfferedLevel = st.OfferedLevel
}

// retryOnConflict reruns fn while it loses optimistic version races.
func retryOnConflict(fn func() error) error {
	var err error
	for i := 0; i < maxVersionRetries; i++ {
		if err = fn(); !errors.Is(err, db.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}

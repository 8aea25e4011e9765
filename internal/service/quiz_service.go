package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/grading"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/progression"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/utilities"
)

// UserState is the read-only view of a proficiency record.
type UserState struct {
	UserID              string      `json:"user_id"`
	Level               int         `json:"level"`
	Topic               model.Topic `json:"topic"`
	AssessmentCompleted bool        `json:"assessment_completed"`
	Streak              int         `json:"streak"`
	PendingPromotion    bool        `json:"pending_promotion"`
	OfferedLevel        int         `json:"offered_level,omitempty"`
}

func userStateOf(p *model.UserProgress) UserState {
	return UserState{
		UserID:              p.UserID,
		Level:               p.Level,
		Topic:               p.Topic,
		AssessmentCompleted: p.AssessmentCompleted,
		Streak:              p.Streak,
		PendingPromotion:    p.PendingPromotion,
		OfferedLevel:        p.OfferedLevel,
	}
}

type SubmitAnswerInput struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer"`
	Signal     string `json:"signal,omitempty"`
}

type SubmitAnswerResult struct {
	QuestionID       string         `json:"question_id"`
	Verdict          grading.Result `json:"verdict"`
	Explanation      string         `json:"explanation,omitempty"`
	PreviousLevel    int            `json:"previous_level"`
	UpdatedLevel     int            `json:"updated_level"`
	Streak           int            `json:"streak"`
	PromotionOffered bool           `json:"promotion_offered"`
	OfferedLevel     int            `json:"offered_level,omitempty"`
}

type NextQuestionResult struct {
	Question         *QuestionView `json:"question"`
	Level            int           `json:"level"`
	Topic            model.Topic   `json:"topic"`
	PendingPromotion bool          `json:"pending_promotion"`
}

// LevelStatus compares the active pool at one level with what the user has
// already attempted there.
type LevelStatus struct {
	Topic     model.Topic `json:"topic"`
	Level     int         `json:"level"`
	Total     int64       `json:"total"`
	Attempted int64       `json:"attempted"`
	Cleared   bool        `json:"cleared"`
}

// LevelChangedEvent is published on utilities.EventLevelChanged.
type LevelChangedEvent struct {
	UserID string `json:"user_id"`
	From   int    `json:"from"`
	To     int    `json:"to"`
	Cause  string `json:"cause"`
}

// PromotionOfferedEvent is published on utilities.EventPromotionOffered.
type PromotionOfferedEvent struct {
	UserID       string `json:"user_id"`
	OfferedLevel int    `json:"offered_level"`
}

// practiceState is what the session store remembers between NextQuestion and
// SubmitAnswer.
type practiceState struct {
	QuestionID string      `json:"question_id"`
	Topic      model.Topic `json:"topic"`
	Level      int         `json:"level"`
	IssuedAt   time.Time   `json:"issued_at"`
}

func practiceKey(userID string) string { return "practice:" + userID }

type QuizService interface {
	GetQuestion(ctx context.Context, topic string, level int) (*QuestionView, error)
	GetQuestionByID(ctx context.Context, id string) (*QuestionView, error)
	ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]QuestionView, error)
	NextQuestion(ctx context.Context, userID, topic string) (*NextQuestionResult, error)
	SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*SubmitAnswerResult, error)
	GiveFeedback(ctx context.Context, userID, signal string) (*UserState, error)
	RespondPromotion(ctx context.Context, userID string, accept bool) (*UserState, error)
	GetUserState(ctx context.Context, userID string) (*UserState, error)
	LevelStatus(ctx context.Context, userID, topic string, level int) (*LevelStatus, error)
}

type quizService struct {
	d   Deps
	log *utilities.Logger
}

func NewQuizService(d Deps) QuizService {
	d = d.withDefaults()
	return &quizService{d: d, log: d.Log.With("service", "QuizService")}
}

func (s *quizService) GetQuestion(ctx context.Context, topicRaw string, level int) (*QuestionView, error) {
	topic, err := model.ParseTopic(topicRaw)
	if err != nil {
		return nil, err
	}
	if err := s.d.Settings.checkLevel(level); err != nil {
		return nil, err
	}
	q, err := s.d.Questions.PickQuestion(ctx, topic, level, nil)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, apperr.Exhausted("no active %s question at level %d", topic, level)
	}
	return viewOf(q), nil
}

func (s *quizService) GetQuestionByID(ctx context.Context, id string) (*QuestionView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("question id is required")
	}
	q, err := s.d.Questions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(q), nil
}

func (s *quizService) ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]QuestionView, error) {
	if filter.Level != 0 {
		if err := s.d.Settings.checkLevel(filter.Level); err != nil {
			return nil, err
		}
	}
	rows, err := s.d.Questions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]QuestionView, 0, len(rows))
	for i := range rows {
		out = append(out, *viewOf(&rows[i]))
	}
	return out, nil
}

func (s *quizService) NextQuestion(ctx context.Context, userIDRaw, topicRaw string) (res *NextQuestionResult, err error) {
	ctx, span := startSpan(ctx, "QuizService.NextQuestion")
	defer func() { endSpan(span, err) }()

	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	progress, err := s.d.Progress.GetOrCreate(ctx, nil, s.d.Settings.defaultProgress(userID))
	if err != nil {
		return nil, err
	}
	topic := progress.Topic
	if strings.TrimSpace(topicRaw) != "" {
		if topic, err = model.ParseTopic(topicRaw); err != nil {
			return nil, err
		}
	}
	if !topic.Valid() {
		topic = s.d.Settings.DefaultTopic
	}
	level := s.d.Settings.Policy.Clamp(progress.Level)
	span.SetAttributes(attribute.String("topic", string(topic)), attribute.Int("level", level))

	recent, err := s.d.Attempts.RecentQuestionIDs(ctx, userID, s.d.Settings.RecentExclude)
	if err != nil {
		s.log.Warn("recent attempts unavailable, picking without exclusion", "user_id", userID, "error", err)
		recent = nil
	}
	q, err := s.d.Questions.PickQuestion(ctx, topic, level, recent)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, apperr.Exhausted("no active %s question at level %d", topic, level)
	}

	st := practiceState{QuestionID: q.ID, Topic: q.Topic, Level: q.Level, IssuedAt: time.Now().UTC()}
	if err := s.d.Sessions.Put(ctx, practiceKey(userID), st, s.d.Settings.PracticeTTL); err != nil {
		return nil, err
	}
	return &NextQuestionResult{
		Question:         viewOf(q),
		Level:            level,
		Topic:            topic,
		PendingPromotion: progress.PendingPromotion,
	}, nil
}

func (s *quizService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (res *SubmitAnswerResult, err error) {
	ctx, span := startSpan(ctx, "QuizService.SubmitAnswer")
	defer func() { endSpan(span, err) }()

	userID, err := requireUser(in.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireAnswer(in.Answer); err != nil {
		return nil, err
	}
	signal, err := progression.ParseSignal(in.Signal)
	if err != nil {
		return nil, err
	}

	// The pending question is read and cleared under the lock so it is graded once.
	unlock, err := s.d.Locker.Lock(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	questionID := strings.TrimSpace(in.QuestionID)
	if questionID == "" {
		var pending practiceState
		found, err := s.d.Sessions.Get(ctx, practiceKey(userID), &pending)
		if err != nil {
			return nil, err
		}
		if !found || pending.QuestionID == "" {
			return nil, apperr.NotFound("no question is pending for user %s", userID)
		}
		questionID = pending.QuestionID
	}
	q, err := s.d.Questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("question_id", q.ID))

	verdict := grading.Grade(q.Choices, q.AnswerKey, in.Answer)

	attempt := &model.Attempt{
		UserID:          userID,
		QuestionID:      q.ID,
		Topic:           q.Topic,
		Level:           q.Level,
		IsCorrect:       verdict.IsCorrect,
		CanonicalAnswer: verdict.CanonicalUserChoice,
		RawAnswer:       in.Answer,
		Signal:          string(signal),
		Source:          model.SourcePractice,
	}
	s.appendAttempt(ctx, attempt)

	var (
		change   progression.Change
		progress *model.UserProgress
	)
	err = retryOnConflict(func() error {
		p, err := s.d.Progress.GetOrCreate(ctx, nil, s.d.Settings.defaultProgress(userID))
		if err != nil {
			return err
		}
		st := stateOf(p)
		change = st.RecordOutcome(s.d.Settings.Policy, verdict.IsCorrect, signal)
		applyState(p, st)
		p.Topic = q.Topic
		if err := s.d.Progress.Update(ctx, nil, p); err != nil {
			return err
		}
		progress = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.d.Sessions.Delete(ctx, practiceKey(userID)); err != nil {
		s.log.Warn("pending question not cleared", "user_id", userID, "error", err)
	}
	s.publishChange(userID, change, "answer")

	return &SubmitAnswerResult{
		QuestionID:       q.ID,
		Verdict:          verdict,
		Explanation:      q.Explanation,
		PreviousLevel:    change.From,
		UpdatedLevel:     progress.Level,
		Streak:           progress.Streak,
		PromotionOffered: progress.PendingPromotion,
		OfferedLevel:     progress.OfferedLevel,
	}, nil
}

func (s *quizService) GiveFeedback(ctx context.Context, userIDRaw, signalRaw string) (*UserState, error) {
	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	signal, err := progression.ParseSignal(signalRaw)
	if err != nil {
		return nil, err
	}
	if signal == progression.SignalNone {
		return nil, apperr.Validation("signal must be one of hard, easy, neutral")
	}
	return s.mutateState(ctx, userID, "feedback", func(st *progression.State) (progression.Change, error) {
		return st.ApplyFeedback(s.d.Settings.Policy, signal)
	})
}

func (s *quizService) RespondPromotion(ctx context.Context, userIDRaw string, accept bool) (*UserState, error) {
	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	cause := "promotion_declined"
	if accept {
		cause = "promotion_accepted"
	}
	return s.mutateState(ctx, userID, cause, func(st *progression.State) (progression.Change, error) {
		return st.ResolvePromotion(s.d.Settings.Policy, accept)
	})
}

// mutateState runs fn against the user's record under the user lock and
// writes the result back with a version check.
func (s *quizService) mutateState(ctx context.Context, userID, cause string, fn func(*progression.State) (progression.Change, error)) (*UserState, error) {
	unlock, err := s.d.Locker.Lock(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		change progression.Change
		out    UserState
	)
	err = retryOnConflict(func() error {
		p, err := s.d.Progress.GetOrCreate(ctx, nil, s.d.Settings.defaultProgress(userID))
		if err != nil {
			return err
		}
		st := stateOf(p)
		if change, err = fn(&st); err != nil {
			return err
		}
		applyState(p, st)
		if err := s.d.Progress.Update(ctx, nil, p); err != nil {
			return err
		}
		out = userStateOf(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishChange(userID, change, cause)
	return &out, nil
}

// GetUserState never writes: an unknown user gets the defaults.
func (s *quizService) GetUserState(ctx context.Context, userIDRaw string) (*UserState, error) {
	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	p, err := s.d.Progress.Get(ctx, nil, userID)
	if apperr.IsNotFound(err) {
		def := s.d.Settings.defaultProgress(userID)
		p, err = &def, nil
	}
	if err != nil {
		return nil, err
	}
	st := userStateOf(p)
	return &st, nil
}

func (s *quizService) LevelStatus(ctx context.Context, userIDRaw, topicRaw string, level int) (*LevelStatus, error) {
	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	state, err := s.GetUserState(ctx, userID)
	if err != nil {
		return nil, err
	}
	topic := state.Topic
	if strings.TrimSpace(topicRaw) != "" {
		if topic, err = model.ParseTopic(topicRaw); err != nil {
			return nil, err
		}
	}
	if level == 0 {
		level = state.Level
	}
	if err := s.d.Settings.checkLevel(level); err != nil {
		return nil, err
	}

	total, err := s.d.Questions.CountActive(ctx, topic, level)
	if err != nil {
		return nil, err
	}
	attempted, err := s.d.Attempts.DistinctAttempted(ctx, userID, topic, level)
	if err != nil {
		return nil, err
	}
	return &LevelStatus{
		Topic:     topic,
		Level:     level,
		Total:     total,
		Attempted: attempted,
		Cleared:   total > 0 && attempted >= total,
	}, nil
}

// appendAttempt logs and swallows write failures: a lost audit row must not
// block the verdict.
func (s *quizService) appendAttempt(ctx context.Context, a *model.Attempt) {
	if err := s.d.Attempts.Append(ctx, nil, a); err != nil {
		s.log.Error("attempt not recorded", "user_id", a.UserID, "question_id", a.QuestionID, "error", err)
		return
	}
	s.d.Bus.Publish(utilities.EventAttemptRecorded, *a)
}

func (s *quizService) publishChange(userID string, ch progression.Change, cause string) {
	if ch.LevelChanged() {
		s.log.Info("level changed", "user_id", userID, "from", ch.From, "to", ch.To, "cause", cause)
		s.d.Bus.Publish(utilities.EventLevelChanged, LevelChangedEvent{UserID: userID, From: ch.From, To: ch.To, Cause: cause})
	}
	if ch.PromotionOffer {
		s.d.Bus.Publish(utilities.EventPromotionOffered, PromotionOfferedEvent{UserID: userID, OfferedLevel: ch.To + 1})
	}
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/grading"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/progression"
	"quizcoach-backend/utilities"
)

type StartAssessmentResult struct {
	SessionID     string        `json:"session_id"`
	Topic         model.Topic   `json:"topic"`
	WorkingLevel  int           `json:"working_level"`
	TargetCount   int           `json:"target_count"`
	FirstQuestion *QuestionView `json:"first_question"`
}

type SubmitAssessmentInput struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	Signal     string `json:"signal,omitempty"`
	// UserID is needed only when the session has to be materialized.
	UserID string `json:"user_id,omitempty"`
}

// AssessmentSummary is returned once, with the answer that finishes a session.
type AssessmentSummary struct {
	Topic      model.Topic `json:"topic"`
	Asked      int         `json:"asked"`
	Correct    int         `json:"correct"`
	StartLevel int         `json:"start_level"`
	FinalLevel int         `json:"final_level"`
}

type SubmitAssessmentResult struct {
	SessionID    string             `json:"session_id"`
	Verdict      grading.Result     `json:"verdict"`
	Explanation  string             `json:"explanation,omitempty"`
	Asked        int                `json:"asked"`
	Correct      int                `json:"correct"`
	WorkingLevel int                `json:"working_level"`
	Finished     bool               `json:"finished"`
	NextQuestion *QuestionView      `json:"next_question,omitempty"`
	FinalLevel   int                `json:"final_level,omitempty"`
	Summary      *AssessmentSummary `json:"summary,omitempty"`
}

// AssessmentFinishedEvent is published on utilities.EventAssessmentFinished.
type AssessmentFinishedEvent struct {
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Summary   AssessmentSummary `json:"summary"`
}

type AssessmentService interface {
	Start(ctx context.Context, userID, topic string) (*StartAssessmentResult, error)
	Submit(ctx context.Context, in SubmitAssessmentInput) (*SubmitAssessmentResult, error)
	Get(ctx context.Context, sessionID string) (*model.AssessmentSession, error)
}

type assessmentService struct {
	d   Deps
	log *utilities.Logger
	now func() time.Time
}

func NewAssessmentService(d Deps) AssessmentService {
	d = d.withDefaults()
	return &assessmentService{d: d, log: d.Log.With("service", "AssessmentService"), now: time.Now}
}

func (s *assessmentService) Start(ctx context.Context, userIDRaw, topicRaw string) (res *StartAssessmentResult, err error) {
	ctx, span := startSpan(ctx, "AssessmentService.Start")
	defer func() { endSpan(span, err) }()

	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	topic, err := model.ParseTopicOr(topicRaw, s.d.Settings.DefaultTopic)
	if err != nil {
		return nil, err
	}

	unlock, err := s.d.Locker.Lock(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	progress, err := s.d.Progress.GetOrCreate(ctx, nil, s.d.Settings.defaultProgress(userID))
	if err != nil {
		return nil, err
	}
	level := s.d.Settings.Policy.Clamp(progress.Level)

	q, err := s.pickNearest(ctx, topic, level, nil)
	if err != nil {
		return nil, err
	}

	sess := &model.AssessmentSession{
		ID:               uuid.NewString(),
		UserID:           userID,
		Topic:            topic,
		StartLevel:       level,
		WorkingLevel:     level,
		LastQuestionID:   q.ID,
		AskedQuestionIDs: []string{},
		Status:           model.SessionActive,
	}
	if err := s.d.Assessments.Create(ctx, nil, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", sess.ID))
	s.log.Info("assessment started", "user_id", userID, "session_id", sess.ID, "topic", topic, "level", level)

	return &StartAssessmentResult{
		SessionID:     sess.ID,
		Topic:         topic,
		WorkingLevel:  level,
		TargetCount:   s.d.Settings.AssessmentLength,
		FirstQuestion: viewOf(q),
	}, nil
}

func (s *assessmentService) Get(ctx context.Context, sessionID string) (*model.AssessmentSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation("session id is required")
	}
	return s.d.Assessments.Get(ctx, nil, sessionID)
}

func (s *assessmentService) Submit(ctx context.Context, in SubmitAssessmentInput) (res *SubmitAssessmentResult, err error) {
	ctx, span := startSpan(ctx, "AssessmentService.Submit")
	defer func() { endSpan(span, err) }()

	if err := requireAnswer(in.Answer); err != nil {
		return nil, err
	}
	signal, err := progression.ParseSignal(in.Signal)
	if err != nil {
		return nil, err
	}
	questionID := strings.TrimSpace(in.QuestionID)
	if questionID == "" {
		return nil, apperr.Validation("question id is required")
	}
	sessionID := strings.TrimSpace(in.SessionID)
	userID := strings.TrimSpace(in.UserID)
	if sessionID == "" && userID == "" {
		return nil, apperr.Validation("session id or user id is required")
	}

	q, err := s.d.Questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	owner, err := s.ownerOf(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.d.Locker.Lock(ctx, userKey(owner))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, created, err := s.loadOrMaterialize(ctx, sessionID, owner, q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", sess.ID), attribute.Int("asked", sess.Asked))
	if sess.Finished() {
		return nil, apperr.AlreadyCompleted("assessment %s is already finished", sess.ID)
	}

	verdict := grading.Grade(q.Choices, q.AnswerKey, in.Answer)
	sess.Asked++
	if verdict.IsCorrect {
		sess.Correct++
	}
	sess.WorkingLevel = s.d.Settings.Policy.ApplyOutcome(sess.WorkingLevel, verdict.IsCorrect, signal)
	sess.AskedQuestionIDs = append(sess.AskedQuestionIDs, q.ID)
	finished := sess.Asked >= s.d.Settings.AssessmentLength

	// The next question is chosen before anything is written so an empty
	// pool leaves the session untouched.
	var next *model.Question
	if !finished {
		next, err = s.pickNearest(ctx, sess.Topic, sess.WorkingLevel, sess.AskedQuestionIDs)
		if err != nil {
			return nil, err
		}
		sess.LastQuestionID = next.ID
	} else {
		now := s.now().UTC()
		sess.Status = model.SessionFinished
		sess.FinishedAt = &now
	}

	attempt := &model.Attempt{
		UserID:          sess.UserID,
		QuestionID:      q.ID,
		Topic:           q.Topic,
		Level:           q.Level,
		IsCorrect:       verdict.IsCorrect,
		CanonicalAnswer: verdict.CanonicalUserChoice,
		RawAnswer:       in.Answer,
		Signal:          string(signal),
		Source:          model.SourceAssessment,
		SessionID:       sess.ID,
	}
	if err := s.d.Attempts.Append(ctx, nil, attempt); err != nil {
		s.log.Error("attempt not recorded", "user_id", sess.UserID, "session_id", sess.ID, "error", err)
	} else {
		s.d.Bus.Publish(utilities.EventAttemptRecorded, *attempt)
	}

	previousLevel, err := s.commit(ctx, sess, created, finished)
	if err != nil {
		return nil, err
	}

	res = &SubmitAssessmentResult{
		SessionID:    sess.ID,
		Verdict:      verdict,
		Explanation:  q.Explanation,
		Asked:        sess.Asked,
		Correct:      sess.Correct,
		WorkingLevel: sess.WorkingLevel,
		Finished:     finished,
	}
	if !finished {
		res.NextQuestion = viewOf(next)
		return res, nil
	}

	summary := AssessmentSummary{
		Topic:      sess.Topic,
		Asked:      sess.Asked,
		Correct:    sess.Correct,
		StartLevel: sess.StartLevel,
		FinalLevel: sess.WorkingLevel,
	}
	res.FinalLevel = sess.WorkingLevel
	res.Summary = &summary

	s.log.Info("assessment finished", "user_id", sess.UserID, "session_id", sess.ID,
		"correct", sess.Correct, "asked", sess.Asked, "final_level", sess.WorkingLevel)
	s.d.Bus.Publish(utilities.EventAssessmentFinished, AssessmentFinishedEvent{UserID: sess.UserID, SessionID: sess.ID, Summary: summary})
	if previousLevel != sess.WorkingLevel {
		s.d.Bus.Publish(utilities.EventLevelChanged, LevelChangedEvent{
			UserID: sess.UserID, From: previousLevel, To: sess.WorkingLevel, Cause: "assessment",
		})
	}
	return res, nil
}

// ownerOf resolves whose lock guards the submission.
func (s *assessmentService) ownerOf(ctx context.Context, sessionID, userID string) (string, error) {
	if sessionID == "" {
		return userID, nil
	}
	sess, err := s.d.Assessments.Get(ctx, nil, sessionID)
	switch {
	case err == nil:
		if userID != "" && userID != sess.UserID {
			return "", apperr.Validation("session %s belongs to another user", sessionID)
		}
		return sess.UserID, nil
	case apperr.IsNotFound(err) && userID != "":
		return userID, nil
	default:
		return "", err
	}
}

// loadOrMaterialize returns the session to advance. A missing or idle-expired
// session is replaced by a fresh one seeded from the submitted question; the
// bool reports whether the returned session still has to be inserted.
func (s *assessmentService) loadOrMaterialize(ctx context.Context, sessionID, owner string, q *model.Question) (*model.AssessmentSession, bool, error) {
	if sessionID != "" {
		sess, err := s.d.Assessments.Get(ctx, nil, sessionID)
		if err == nil && !s.idleExpired(sess) {
			return sess, false, nil
		}
		if err != nil && !apperr.IsNotFound(err) {
			return nil, false, err
		}
		if err == nil {
			s.log.Info("assessment idle-expired, starting over", "session_id", sess.ID, "user_id", owner)
			sessionID = ""
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	level := s.d.Settings.Policy.Clamp(q.Level)
	s.log.Info("assessment materialized from submission", "session_id", sessionID, "user_id", owner, "question_id", q.ID)
	return &model.AssessmentSession{
		ID:               sessionID,
		UserID:           owner,
		Topic:            q.Topic,
		StartLevel:       level,
		WorkingLevel:     level,
		LastQuestionID:   q.ID,
		AskedQuestionIDs: []string{},
		Status:           model.SessionActive,
	}, true, nil
}

// pickNearest picks from level, or from the closest level in the policy range
// that has an active question, trying the easier neighbour first. The working
// level itself is not moved. It fails with Exhausted only when the topic is
// empty.
func (s *assessmentService) pickNearest(ctx context.Context, topic model.Topic, level int, exclude []string) (*model.Question, error) {
	p := s.d.Settings.Policy
	for _, l := range nearestLevels(level, p.MinLevel, p.MaxLevel) {
		q, err := s.d.Questions.PickQuestion(ctx, topic, l, exclude)
		if err != nil {
			return nil, err
		}
		if q != nil {
			if l != level {
				s.log.Debug("no question at working level, using neighbour", "topic", topic, "working_level", level, "level", l)
			}
			return q, nil
		}
	}
	return nil, apperr.Exhausted("no active %s question left near level %d", topic, level)
}

// nearestLevels lists [lo, hi] ordered by distance from level, lower first on
// ties.
func nearestLevels(level, lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	if level >= lo && level <= hi {
		out = append(out, level)
	}
	for d := 1; level-d >= lo || level+d <= hi; d++ {
		if l := level - d; l >= lo && l <= hi {
			out = append(out, l)
		}
		if l := level + d; l >= lo && l <= hi {
			out = append(out, l)
		}
	}
	return out
}

func (s *assessmentService) idleExpired(sess *model.AssessmentSession) bool {
	ttl := s.d.Settings.AssessmentIdleExpiry
	if ttl <= 0 || sess.Finished() {
		return false
	}
	return s.now().Sub(sess.UpdatedAt) > ttl
}

// commit writes the session and, on finish, the proficiency record in one
// transaction. It returns the record's level from before the write.
func (s *assessmentService) commit(ctx context.Context, sess *model.AssessmentSession, created, finished bool) (int, error) {
	version := sess.Version
	previous := 0
	err := retryOnConflict(func() error {
		sess.Version = version
		return s.d.Exec.Transaction(ctx, func(tx *gorm.DB) error {
			if created {
				if err := s.d.Assessments.Create(ctx, tx, sess); err != nil {
					return err
				}
			} else if err := s.d.Assessments.Update(ctx, tx, sess); err != nil {
				if apperr.IsConflict(err) {
					return apperr.New(apperr.KindConflict, "assessment %s was advanced concurrently", sess.ID)
				}
				return err
			}
			if !finished {
				return nil
			}
			p, err := s.d.Progress.GetOrCreate(ctx, tx, s.d.Settings.defaultProgress(sess.UserID))
			if err != nil {
				return err
			}
			previous = p.Level
			p.Level = sess.WorkingLevel
			p.Topic = sess.Topic
			p.AssessmentCompleted = true
			p.Streak = 0
			p.PendingPromotion = false
			p.OfferedLevel = 0
			return s.d.Progress.Update(ctx, tx, p)
		})
	})
	return previous, err
}

package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/utilities"
)

// ProgressReport aggregates everything known about one learner.
type ProgressReport struct {
	State       UserState                 `json:"state"`
	Topics      []TopicReport             `json:"topics"`
	Assessments []model.AssessmentSession `json:"assessments"`
	Recent      []model.Attempt           `json:"recent_attempts"`
	// LevelStreak counts the newest consecutive correct attempts at the
	// current level.
	LevelStreak int       `json:"level_streak"`
	GeneratedAt time.Time `json:"generated_at"`
}

type TopicReport struct {
	Topic    model.Topic `json:"topic"`
	Attempts int64       `json:"attempts"`
	Correct  int64       `json:"correct"`
	Accuracy float64     `json:"accuracy"`
	MaxLevel int         `json:"max_level"`
}

// HistoryQuery narrows a user's attempt log. Zero fields do not filter.
type HistoryQuery struct {
	Topic  string
	Source string
	Since  time.Time
	Until  time.Time
	Limit  int
}

type ProgressService interface {
	Report(ctx context.Context, userID string) (*ProgressReport, error)
	History(ctx context.Context, userID string, q HistoryQuery) ([]model.Attempt, error)
	RenderPDF(report *ProgressReport, w io.Writer) error
}

type progressService struct {
	d   Deps
	log *utilities.Logger
}

func NewProgressService(d Deps) ProgressService {
	d = d.withDefaults()
	return &progressService{d: d, log: d.Log.With("service", "ProgressService")}
}

const reportHistoryLimit = 20

func (s *progressService) Report(ctx context.Context, userIDRaw string) (rep *ProgressReport, err error) {
	ctx, span := startSpan(ctx, "ProgressService.Report")
	defer func() { endSpan(span, err) }()

	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	quiz := &quizService{d: s.d, log: s.log}
	state, err := quiz.GetUserState(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.d.Attempts.TopicStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	topics := make([]TopicReport, 0, len(stats))
	for _, st := range stats {
		topics = append(topics, TopicReport{
			Topic:    st.Topic,
			Attempts: st.Attempts,
			Correct:  st.Correct,
			Accuracy: st.Accuracy(),
			MaxLevel: st.MaxLevel,
		})
	}

	assessments, err := s.d.Assessments.ListByUser(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	recent, err := s.d.Attempts.History(ctx, repository.HistoryFilter{UserID: userID, Limit: reportHistoryLimit})
	if err != nil {
		return nil, err
	}
	streak, err := s.d.Attempts.CurrentStreak(ctx, userID, state.Level)
	if err != nil {
		return nil, err
	}

	if assessments == nil {
		assessments = []model.AssessmentSession{}
	}
	if recent == nil {
		recent = []model.Attempt{}
	}
	return &ProgressReport{
		State:       *state,
		Topics:      topics,
		Assessments: assessments,
		Recent:      recent,
		LevelStreak: streak,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// History returns the user's attempts, newest first, inside the open window
// (Since, Until).
func (s *progressService) History(ctx context.Context, userIDRaw string, q HistoryQuery) (rows []model.Attempt, err error) {
	ctx, span := startSpan(ctx, "ProgressService.History")
	defer func() { endSpan(span, err) }()

	userID, err := requireUser(userIDRaw)
	if err != nil {
		return nil, err
	}
	topic, err := model.ParseTopicOr(q.Topic, "")
	if err != nil {
		return nil, err
	}
	switch q.Source {
	case "", model.SourcePractice, model.SourceAssessment:
	default:
		return nil, apperr.Validation("unknown attempt source %q", q.Source)
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && !q.Since.Before(q.Until) {
		return nil, apperr.Validation("since must be before until")
	}

	rows, err = s.d.Attempts.History(ctx, repository.HistoryFilter{
		UserID: userID,
		Topic:  topic,
		Source: q.Source,
		Since:  q.Since,
		Until:  q.Until,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Attempt{}
	}
	return rows, nil
}

// RenderPDF writes a one-document summary of report to w.
func (s *progressService) RenderPDF(report *ProgressReport, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Progress report", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Progress report: %s", report.State.UserID))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Level %d, topic %s, assessment completed: %t",
		report.State.Level, report.State.Topic, report.State.AssessmentCompleted))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Current streak: %d", report.LevelStreak))
	pdf.Ln(7)
	if report.State.PendingPromotion {
		pdf.Cell(0, 7, fmt.Sprintf("Promotion to level %d is waiting for an answer", report.State.OfferedLevel))
		pdf.Ln(7)
	}
	pdf.Cell(0, 7, "Generated "+report.GeneratedAt.Format(time.RFC1123))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	for _, h := range []struct {
		label string
		width float64
	}{{"Topic", 50}, {"Attempts", 30}, {"Correct", 30}, {"Accuracy", 30}, {"Max level", 30}} {
		pdf.CellFormat(h.width, 8, h.label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 11)
	for _, t := range report.Topics {
		pdf.CellFormat(50, 7, string(t.Topic), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprint(t.Attempts), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprint(t.Correct), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.0f%%", t.Accuracy*100), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprint(t.MaxLevel), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.Assessments) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Assessments")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 11)
		for _, a := range report.Assessments {
			line := fmt.Sprintf("%s  %s  %d/%d correct, level %d -> %d (%s)",
				a.CreatedAt.Format("2006-01-02"), a.Topic, a.Correct, a.Asked, a.StartLevel, a.WorkingLevel, a.Status)
			pdf.MultiCell(0, 6, line, "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		s.log.Error("pdf render failed", "user_id", report.State.UserID, "error", err)
		return fmt.Errorf("render progress pdf: %w", err)
	}
	return nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

type AssessmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.AssessmentSession) error
	Get(ctx context.Context, tx *gorm.DB, sessionID string) (*model.AssessmentSession, error)
	Update(ctx context.Context, tx *gorm.DB, s *model.AssessmentSession) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.AssessmentSession, error)
}

type assessmentRepository struct {
	db  *gorm.DB
	log *utilities.Logger
}

func NewAssessmentRepository(conn *gorm.DB, baseLog *utilities.Logger) AssessmentRepository {
	return &assessmentRepository{db: conn, log: baseLog.With("repo", "AssessmentRepository")}
}

func (r *assessmentRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *assessmentRepository) Create(ctx context.Context, tx *gorm.DB, s *model.AssessmentSession) error {
	return db.Wrap(r.conn(tx).WithContext(ctx).Create(s).Error, "create assessment")
}

func (r *assessmentRepository) Get(ctx context.Context, tx *gorm.DB, sessionID string) (*model.AssessmentSession, error) {
	var s model.AssessmentSession
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", sessionID).First(&s).Error; err != nil {
		return nil, db.Wrap(err, "get assessment "+sessionID)
	}
	return &s, nil
}

// Update writes s if nobody else advanced it since it was read and it has not
// finished yet. A finished session row is never written again.
func (r *assessmentRepository) Update(ctx context.Context, tx *gorm.DB, s *model.AssessmentSession) error {
	res := r.conn(tx).WithContext(ctx).
		Model(&model.AssessmentSession{}).
		Where("id = ? AND version = ? AND status = ?", s.ID, s.Version, model.SessionActive).
		Updates(map[string]interface{}{
			"asked":              s.Asked,
			"correct":            s.Correct,
			"working_level":      s.WorkingLevel,
			"last_question_id":   s.LastQuestionID,
			"asked_question_ids": s.AskedQuestionIDs,
			"status":             s.Status,
			"finished_at":        s.FinishedAt,
			"version":            s.Version + 1,
		})
	if res.Error != nil {
		return db.Wrap(res.Error, "update assessment")
	}
	if res.RowsAffected == 0 {
		return db.ErrVersionConflict
	}
	s.Version++
	return nil
}

func (r *assessmentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.AssessmentSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []model.AssessmentSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, db.Wrap(err, "list assessments")
	}
	return rows, nil
}

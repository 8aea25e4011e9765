package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/db/query"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

// TopicStat aggregates a user's attempts on one topic.
type TopicStat struct {
	Topic    model.Topic `json:"topic"`
	Attempts int64       `json:"attempts"`
	Correct  int64       `json:"correct"`
	MaxLevel int         `json:"max_level"`
}

func (s TopicStat) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

type HistoryFilter struct {
	UserID string
	Topic  model.Topic
	Source string
	// Since and Until are exclusive bounds on created_at.
	Since time.Time
	Until time.Time
	Limit int
}

// AttemptRepository is append-only: there is no update or delete.
type AttemptRepository interface {
	Append(ctx context.Context, tx *gorm.DB, a *model.Attempt) error
	RecentQuestionIDs(ctx context.Context, userID string, limit int) ([]string, error)
	CurrentStreak(ctx context.Context, userID string, level int) (int, error)
	DistinctAttempted(ctx context.Context, userID string, topic model.Topic, level int) (int64, error)
	TopicStats(ctx context.Context, userID string) ([]TopicStat, error)
	History(ctx context.Context, filter HistoryFilter) ([]model.Attempt, error)
}

type attemptRepository struct {
	db  *gorm.DB
	qe  *db.QueryExecutor
	log *utilities.Logger
}

func NewAttemptRepository(conn *gorm.DB, baseLog *utilities.Logger) AttemptRepository {
	return &attemptRepository{
		db:  conn,
		qe:  db.NewQueryExecutor(conn),
		log: baseLog.With("repo", "AttemptRepository"),
	}
}

func (r *attemptRepository) Append(ctx context.Context, tx *gorm.DB, a *model.Attempt) error {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	a.ID = 0
	return db.Wrap(conn.WithContext(ctx).Create(a).Error, "append attempt")
}

// RecentQuestionIDs returns the ids of the user's last limit attempts, newest
// first, duplicates removed.
func (r *attemptRepository) RecentQuestionIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Attempt{}).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, db.Wrap(err, "recent attempts")
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// CurrentStreak counts consecutive correct attempts at level, walking back
// from the newest attempt until a wrong answer or a different level.
func (r *attemptRepository) CurrentStreak(ctx context.Context, userID string, level int) (int, error) {
	const window = 50
	var rows []model.Attempt
	err := r.db.WithContext(ctx).
		Select("is_correct", "level").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(window).
		Find(&rows).Error
	if err != nil {
		return 0, db.Wrap(err, "attempt streak")
	}
	streak := 0
	for _, a := range rows {
		if !a.IsCorrect || a.Level != level {
			break
		}
		streak++
	}
	return streak, nil
}

func (r *attemptRepository) DistinctAttempted(ctx context.Context, userID string, topic model.Topic, level int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Attempt{}).
		Where("user_id = ? AND topic = ? AND level = ?", userID, topic, level).
		Distinct("question_id").
		Count(&n).Error
	if err != nil {
		return 0, db.Wrap(err, "distinct attempted")
	}
	return n, nil
}

func (r *attemptRepository) TopicStats(ctx context.Context, userID string) ([]TopicStat, error) {
	qb := query.NewQueryBuilder().
		Select(
			"topic",
			"COUNT(*) AS attempts",
			"SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) AS correct",
			"MAX(level) AS max_level",
		).
		From("attempts").
		WherePredicate(query.NewFilterPredicate().Equal("user_id", userID)).
		GroupBy("topic").
		OrderBy("topic")

	var stats []TopicStat
	if err := r.qe.Select(ctx, nil, qb, &stats); err != nil {
		return nil, db.Wrap(err, "topic stats")
	}
	return stats, nil
}

func (r *attemptRepository) History(ctx context.Context, filter HistoryFilter) ([]model.Attempt, error) {
	fp := query.NewFilterPredicate().Equal("user_id", filter.UserID)
	if filter.Topic != "" {
		fp.And().Equal("topic", filter.Topic)
	}
	if filter.Source != "" {
		fp.And().Equal("source", filter.Source)
	}
	if !filter.Since.IsZero() {
		fp.And().GreaterThan("created_at", filter.Since)
	}
	if !filter.Until.IsZero() {
		fp.And().LessThan("created_at", filter.Until)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	qb := query.NewQueryBuilder().
		From("attempts").
		WherePredicate(fp).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit)

	var rows []model.Attempt
	if err := r.qe.Select(ctx, nil, qb, &rows); err != nil {
		return nil, db.Wrap(err, "attempt history")
	}
	return rows, nil
}

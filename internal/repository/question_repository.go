package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/db/query"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/utilities"
)

// QuestionFilter narrows List. Zero values mean "any".
type QuestionFilter struct {
	Topic      model.Topic
	Level      int
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// QuestionRepository is read-only to the quiz core; Upsert exists for the
// seed command.
type QuestionRepository interface {
	GetByID(ctx context.Context, id string) (*model.Question, error)
	PickQuestion(ctx context.Context, topic model.Topic, level int, exclude []string) (*model.Question, error)
	CountActive(ctx context.Context, topic model.Topic, level int) (int64, error)
	List(ctx context.Context, filter QuestionFilter) ([]model.Question, error)
	Upsert(ctx context.Context, questions []*model.Question) error
}

type questionRepository struct {
	db  *gorm.DB
	qe  *db.QueryExecutor
	log *utilities.Logger
}

func NewQuestionRepository(conn *gorm.DB, baseLog *utilities.Logger) QuestionRepository {
	return &questionRepository{
		db:  conn,
		qe:  db.NewQueryExecutor(conn),
		log: baseLog.With("repo", "QuestionRepository"),
	}
}

func (r *questionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	var question model.Question
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		return nil, db.Wrap(err, "get question "+id)
	}
	return &question, nil
}

// PickQuestion draws uniformly among the active questions of topic and level,
// skipping exclude when that still leaves a candidate. It returns nil, nil only
// when the topic/level pool is empty.
func (r *questionRepository) PickQuestion(ctx context.Context, topic model.Topic, level int, exclude []string) (*model.Question, error) {
	if len(exclude) > 0 {
		q, err := r.pick(ctx, topic, level, exclude)
		if err != nil || q != nil {
			return q, err
		}
		r.log.Debug("novel pool exhausted, repeating", "topic", topic, "level", level, "excluded", len(exclude))
	}
	return r.pick(ctx, topic, level, nil)
}

func (r *questionRepository) pick(ctx context.Context, topic model.Topic, level int, exclude []string) (*model.Question, error) {
	fp := query.NewFilterPredicate().
		Equal("topic", topic).And().
		Equal("level", level).And().
		Equal("active", true)
	if len(exclude) > 0 {
		fp.And().Not().In("id", exclude)
	}
	expr, args, err := fp.Build()
	if err != nil {
		return nil, err
	}
	var rows []model.Question
	if err := r.db.WithContext(ctx).Where(expr, args...).Order("RANDOM()").Limit(1).Find(&rows).Error; err != nil {
		return nil, db.Wrap(err, "pick question")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *questionRepository) CountActive(ctx context.Context, topic model.Topic, level int) (int64, error) {
	fp := query.NewFilterPredicate().
		Equal("topic", topic).And().
		Equal("level", level).And().
		Equal("active", true)
	n, err := r.qe.Count(ctx, nil, "questions", fp)
	if err != nil {
		return 0, db.Wrap(err, "count questions")
	}
	return n, nil
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]model.Question, error) {
	fp := query.NewFilterPredicate()
	and := func() {
		if !fp.Empty() {
			fp.And()
		}
	}
	if filter.Topic != "" {
		and()
		fp.Equal("topic", filter.Topic)
	}
	if filter.Level > 0 {
		and()
		fp.Equal("level", filter.Level)
	}
	if filter.ActiveOnly {
		and()
		fp.Equal("active", true)
	}
	if filter.Search != "" {
		and()
		fp.Like("prompt", filter.Search)
	}

	q := r.db.WithContext(ctx).Model(&model.Question{})
	if !fp.Empty() {
		expr, args, err := fp.Build()
		if err != nil {
			return nil, err
		}
		q = q.Where(expr, args...)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var questions []model.Question
	if err := q.Order("topic, level, id").Find(&questions).Error; err != nil {
		return nil, db.Wrap(err, "list questions")
	}
	return questions, nil
}

func (r *questionRepository) Upsert(ctx context.Context, questions []*model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"topic", "level", "prompt", "choices", "answer_key", "explanation", "media_url", "active", "updated_at",
		}),
	}).Create(&questions).Error
	return db.Wrap(err, "upsert questions")
}

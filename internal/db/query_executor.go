package db

import (
	"context"

	"gorm.io/gorm"

	"quizcoach-backend/internal/db/query"
)

// QueryExecutor runs builder-made queries and transactions against gorm.
type QueryExecutor struct {
	DB *gorm.DB
}

// NewQueryExecutor creates a new instance of QueryExecutor.
func NewQueryExecutor(db *gorm.DB) *QueryExecutor {
	return &QueryExecutor{DB: db}
}

func (qe *QueryExecutor) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return qe.DB
}

// Select runs qb and scans every row into dest, a pointer to a slice.
func (qe *QueryExecutor) Select(ctx context.Context, tx *gorm.DB, qb *query.QueryBuilder, dest interface{}) error {
	sql, args, err := qb.Build()
	if err != nil {
		return err
	}
	return qe.conn(tx).WithContext(ctx).Raw(sql, args...).Scan(dest).Error
}

// Count returns the number of rows of table matching fp.
func (qe *QueryExecutor) Count(ctx context.Context, tx *gorm.DB, table string, fp *query.FilterPredicate) (int64, error) {
	q := qe.conn(tx).WithContext(ctx).Table(table)
	if fp != nil && !fp.Empty() {
		expr, args, err := fp.Build()
		if err != nil {
			return 0, err
		}
		q = q.Where(expr, args...)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// Transaction executes fn within a database transaction.
func (qe *QueryExecutor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return qe.DB.WithContext(ctx).Transaction(fn)
}

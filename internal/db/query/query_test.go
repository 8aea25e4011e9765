package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPredicateKeepsValuesOutOfSQL(t *testing.T) {
	fp := NewFilterPredicate().
		Equal("user_id", "x' OR '1'='1").
		And().Open().Equal("source", "practice").Or().Equal("source", "assessment").Close().
		And().Not().Equal("is_correct", true)

	sql, args, err := fp.Build()
	require.NoError(t, err)
	assert.Equal(t, "user_id = ? AND (source = ? OR source = ?) AND NOT is_correct = ?", sql)
	assert.Equal(t, []interface{}{"x' OR '1'='1", "practice", "assessment", true}, args)
}

func TestFilterPredicateRejectsBadColumn(t *testing.T) {
	_, _, err := NewFilterPredicate().Equal("id; DROP TABLE attempts", 1).Build()
	assert.Error(t, err)
}

func TestFilterPredicateLikeEscapes(t *testing.T) {
	sql, args, err := NewFilterPredicate().Like("prompt", "100%_done").Build()
	require.NoError(t, err)
	assert.Equal(t, `prompt LIKE ? ESCAPE '\'`, sql)
	assert.Equal(t, []interface{}{`%100\%\_done%`}, args)
}

func TestQueryBuilderSelect(t *testing.T) {
	fp := NewFilterPredicate().Equal("user_id", "u1").And().In("topic", []string{"grammar", "reading"})
	sql, args, err := NewQueryBuilder().
		Select("topic", "COUNT(*) AS attempts").
		From("attempts").
		WherePredicate(fp).
		Where("level BETWEEN ? AND ?", 1, 5).
		GroupBy("topic").
		OrderBy("topic ASC").
		Limit(10).
		Build()

	require.NoError(t, err)
	assert.Equal(t,
		"SELECT topic, COUNT(*) AS attempts FROM attempts WHERE (user_id = ? AND topic IN ?) AND level BETWEEN ? AND ? GROUP BY topic ORDER BY topic ASC LIMIT 10",
		sql)
	assert.Equal(t, []interface{}{"u1", []string{"grammar", "reading"}, 1, 5}, args)
}

func TestQueryBuilderErrors(t *testing.T) {
	_, _, err := NewQueryBuilder().Build()
	assert.Error(t, err)

	_, _, err = NewQueryBuilder().From("attempts").OrderBy("created_at; --").Build()
	assert.Error(t, err)

	_, _, err = NewQueryBuilder().From("attempts").OrderBy("created_at sideways").Build()
	assert.Error(t, err)

	_, _, err = NewQueryBuilder().From("attempts a").Build()
	assert.Error(t, err)
}

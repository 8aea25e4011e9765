package query

import (
	"fmt"
	"strings"
)

// QueryBuilder assembles read-only SELECT statements for reporting queries.
type QueryBuilder struct {
	table      string
	columns    []string
	conditions []string
	values     []interface{}
	groupBy    []string
	orderBy    []string
	limit      int
	err        error
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Select takes column expressions verbatim, aggregates included.
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	qb.columns = append(qb.columns, columns...)
	return qb
}

func (qb *QueryBuilder) From(table string) *QueryBuilder {
	if !identPattern.MatchString(table) {
		qb.fail(fmt.Errorf("invalid table name %q", table))
	}
	qb.table = table
	return qb
}

func (qb *QueryBuilder) Where(condition string, args ...interface{}) *QueryBuilder {
	qb.conditions = append(qb.conditions, condition)
	qb.values = append(qb.values, args...)
	return qb
}

// WherePredicate ANDs a FilterPredicate into the statement.
func (qb *QueryBuilder) WherePredicate(fp *FilterPredicate) *QueryBuilder {
	if fp == nil || fp.Empty() {
		return qb
	}
	expr, args, err := fp.Build()
	if err != nil {
		qb.fail(err)
		return qb
	}
	return qb.Where("("+expr+")", args...)
}

func (qb *QueryBuilder) GroupBy(columns ...string) *QueryBuilder {
	for _, c := range columns {
		if !identPattern.MatchString(c) {
			qb.fail(fmt.Errorf("invalid group column %q", c))
			return qb
		}
	}
	qb.groupBy = append(qb.groupBy, columns...)
	return qb
}

// OrderBy accepts "column" or "column ASC|DESC".
func (qb *QueryBuilder) OrderBy(terms ...string) *QueryBuilder {
	for _, term := range terms {
		parts := strings.Fields(term)
		ok := len(parts) >= 1 && len(parts) <= 2 && identPattern.MatchString(parts[0])
		if ok && len(parts) == 2 {
			dir := strings.ToUpper(parts[1])
			ok = dir == "ASC" || dir == "DESC"
		}
		if !ok {
			qb.fail(fmt.Errorf("invalid order term %q", term))
			return qb
		}
		qb.orderBy = append(qb.orderBy, term)
	}
	return qb
}

func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = n
	return qb
}

func (qb *QueryBuilder) Build() (string, []interface{}, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	if qb.table == "" {
		return "", nil, fmt.Errorf("query has no table")
	}

	var sb strings.Builder
	if len(qb.columns) > 0 {
		sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(qb.columns, ", "), qb.table))
	} else {
		sb.WriteString(fmt.Sprintf("SELECT * FROM %s", qb.table))
	}
	if len(qb.conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(qb.conditions, " AND "))
	}
	if len(qb.groupBy) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(qb.groupBy, ", "))
	}
	if len(qb.orderBy) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(qb.orderBy, ", "))
	}
	if qb.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", qb.limit))
	}
	return sb.String(), qb.values, nil
}

func (qb *QueryBuilder) fail(err error) {
	if qb.err == nil {
		qb.err = err
	}
}

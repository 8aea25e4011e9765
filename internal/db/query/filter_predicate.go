package query

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// FilterPredicate builds a WHERE expression with positional "?" placeholders.
// Values never end up in the SQL text.
type FilterPredicate struct {
	predicate strings.Builder
	args      []interface{}
	err       error
}

func NewFilterPredicate() *FilterPredicate {
	return &FilterPredicate{}
}

func (fp *FilterPredicate) Open() *FilterPredicate {
	fp.predicate.WriteString("(")
	return fp
}

func (fp *FilterPredicate) Close() *FilterPredicate {
	fp.predicate.WriteString(")")
	return fp
}

func (fp *FilterPredicate) And() *FilterPredicate {
	fp.predicate.WriteString(" AND ")
	return fp
}

func (fp *FilterPredicate) Or() *FilterPredicate {
	fp.predicate.WriteString(" OR ")
	return fp
}

func (fp *FilterPredicate) Not() *FilterPredicate {
	fp.predicate.WriteString("NOT ")
	return fp
}

func (fp *FilterPredicate) Equal(column string, value interface{}) *FilterPredicate {
	return fp.compare(column, "=", value)
}

func (fp *FilterPredicate) GreaterThan(column string, value interface{}) *FilterPredicate {
	return fp.compare(column, ">", value)
}

func (fp *FilterPredicate) LessThan(column string, value interface{}) *FilterPredicate {
	return fp.compare(column, "<", value)
}

// In expects a slice value; gorm expands it into a parenthesised list.
func (fp *FilterPredicate) In(column string, values interface{}) *FilterPredicate {
	if !fp.column(column) {
		return fp
	}
	fp.predicate.WriteString(column + " IN ?")
	fp.args = append(fp.args, values)
	return fp
}

// Like matches pattern anywhere in the column; % and _ in pattern are literal.
func (fp *FilterPredicate) Like(column, pattern string) *FilterPredicate {
	if !fp.column(column) {
		return fp
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)
	fp.predicate.WriteString(column + ` LIKE ? ESCAPE '\'`)
	fp.args = append(fp.args, "%"+escaped+"%")
	return fp
}

func (fp *FilterPredicate) Empty() bool {
	return fp.predicate.Len() == 0
}

// Build returns the expression, its arguments and the first invalid column
// name seen, if any.
func (fp *FilterPredicate) Build() (string, []interface{}, error) {
	return fp.predicate.String(), fp.args, fp.err
}

func (fp *FilterPredicate) compare(column, op string, value interface{}) *FilterPredicate {
	if !fp.column(column) {
		return fp
	}
	fp.predicate.WriteString(column + " " + op + " ?")
	fp.args = append(fp.args, value)
	return fp
}

func (fp *FilterPredicate) column(name string) bool {
	if identPattern.MatchString(name) {
		return true
	}
	if fp.err == nil {
		fp.err = fmt.Errorf("invalid column name %q", name)
	}
	return false
}

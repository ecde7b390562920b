package queryp

import (
	"strconv"
	"strings"
)

// SelectQuery is a bare minimum SELECT builder.
// It's a glorified string builder: clauses are raw SQL fragments, and the only thing it takes
// care of is ordering them and turning `?` markers into the configured placeholder style.
type SelectQuery struct {
	columns       []string
	from          string
	joins         []string
	wheres        []clause
	orderBys      []string
	limit         int
	suffix        string
	placeholderer Placeholderer
}

// clause is a raw SQL fragment with `?` markers and the values that fill them.
type clause struct {
	sql  string
	args []any
}

func Select(columns ...string) *SelectQuery {
	return &SelectQuery{columns: columns}
}

// WithPlaceholderer sets how `?` markers are rendered (defaults to Sqlite style '?').
func (s *SelectQuery) WithPlaceholderer(p Placeholderer) *SelectQuery {
	s.placeholderer = p
	return s
}

func (s *SelectQuery) Columns(columns ...string) *SelectQuery {
	s.columns = append(s.columns, columns...)
	return s
}

func (s *SelectQuery) From(from string) *SelectQuery {
	s.from = from
	return s
}

// Join adds a raw join clause, eg. `Join("JOIN pets pet ON pet.parent_id = p.id")`
func (s *SelectQuery) Join(join string) *SelectQuery {
	s.joins = append(s.joins, join)
	return s
}

func (s *SelectQuery) LeftJoin(table, on string) *SelectQuery {
	return s.Join("LEFT JOIN " + table + " ON " + on)
}

func (s *SelectQuery) InnerJoin(table, on string) *SelectQuery {
	return s.Join("INNER JOIN " + table + " ON " + on)
}

// Where adds a condition, ANDed with any others.
// Each `?` in cond is replaced by a placeholder for the next arg.
func (s *SelectQuery) Where(cond string, args ...any) *SelectQuery {
	s.wheres = append(s.wheres, clause{sql: cond, args: args})
	return s
}

func (s *SelectQuery) OrderBy(orderBys ...string) *SelectQuery {
	s.orderBys = append(s.orderBys, orderBys...)
	return s
}

// Limit sets a LIMIT, 0 for none.
func (s *SelectQuery) Limit(limit int) *SelectQuery {
	s.limit = limit
	return s
}

// Suffix appends raw SQL to the very end of the query, eg. `FOR UPDATE`.
func (s *SelectQuery) Suffix(suffix string) *SelectQuery {
	s.suffix = suffix
	return s
}

// String returns the built query.
func (s *SelectQuery) String() string {
	q, _ := s.Execute()
	return q
}

// Execute returns the query and arguments for the select.
func (s *SelectQuery) Execute() (string, []any) {
	args := NewArgs().WithPlaceholderer(s.placeholderer)
	q := strings.Builder{}

	q.WriteString("SELECT ")
	if len(s.columns) == 0 {
		q.WriteString("*")
	} else {
		q.WriteString(strings.Join(s.columns, ", "))
	}
	if s.from != "" {
		q.WriteString(" FROM ")
		q.WriteString(s.from)
	}
	for _, j := range s.joins {
		q.WriteString(" ")
		q.WriteString(j)
	}
	writeWheres(&q, args, s.wheres)
	if len(s.orderBys) > 0 {
		q.WriteString(" ORDER BY ")
		q.WriteString(strings.Join(s.orderBys, ", "))
	}
	if s.limit > 0 {
		q.WriteString(" LIMIT ")
		q.WriteString(strconv.Itoa(s.limit))
	}
	if s.suffix != "" {
		q.WriteString(" ")
		q.WriteString(s.suffix)
	}
	return q.String(), args.Args()
}

////////////////////////////////////////////////////////////////////////////////

func writeWheres(q *strings.Builder, args *Args, wheres []clause) {
	if len(wheres) == 0 {
		return
	}
	q.WriteString(" WHERE ")
	for i, w := range wheres {
		if i > 0 {
			q.WriteString(" AND ")
		}
		if len(wheres) > 1 {
			q.WriteString("(")
			writeClause(q, args, w)
			q.WriteString(")")
		} else {
			writeClause(q, args, w)
		}
	}
}

// writeClause writes the clause, swapping each `?` for the next arg's placeholder.
// A `?` inside a single quoted literal is left alone, and `??` writes a literal `?` (eg. the
// postgres jsonb operator). Extra `?`s beyond the given args are left as is.
func writeClause(q *strings.Builder, args *Args, c clause) {
	next := 0
	quoted := false
	for i := 0; i < len(c.sql); i++ {
		ch := c.sql[i]
		switch {
		case ch == '\'':
			// '' escapes inside a literal toggle twice, so they need no special case
			quoted = !quoted
		case quoted:
		case ch == '?' && i+1 < len(c.sql) && c.sql[i+1] == '?':
			i++
		case ch == '?' && next < len(c.args):
			q.WriteString(args.Add(c.args[next]))
			next++
			continue
		}
		q.WriteByte(ch)
	}
}

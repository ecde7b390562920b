package queryp

import "strings"

// UpdateQuery is a bare minimum UPDATE builder, see SelectQuery.
type UpdateQuery struct {
	table         string
	sets          []clause
	wheres        []clause
	placeholderer Placeholderer
}

func Update(table string) *UpdateQuery {
	return &UpdateQuery{table: table}
}

// WithPlaceholderer sets how `?` markers are rendered (defaults to Sqlite style '?').
func (u *UpdateQuery) WithPlaceholderer(p Placeholderer) *UpdateQuery {
	u.placeholderer = p
	return u
}

// Set assigns a value to a column.
func (u *UpdateQuery) Set(column string, v any) *UpdateQuery {
	u.sets = append(u.sets, clause{sql: column + " = ?", args: []any{v}})
	return u
}

// SetRaw assigns a raw SQL expression, eg. `SetRaw("count = count + ?", 1)`
func (u *UpdateQuery) SetRaw(expr string, args ...any) *UpdateQuery {
	u.sets = append(u.sets, clause{sql: expr, args: args})
	return u
}

// Where adds a condition, ANDed with any others.
func (u *UpdateQuery) Where(cond string, args ...any) *UpdateQuery {
	u.wheres = append(u.wheres, clause{sql: cond, args: args})
	return u
}

func (u *UpdateQuery) String() string {
	q, _ := u.Execute()
	return q
}

// Execute returns the query and its arguments, in the order they appear in the query.
func (u *UpdateQuery) Execute() (string, []any) {
	args := NewArgs().WithPlaceholderer(u.placeholderer)
	q := strings.Builder{}

	q.WriteString("UPDATE ")
	q.WriteString(u.table)
	q.WriteString(" SET ")
	for i, s := range u.sets {
		if i > 0 {
			q.WriteString(", ")
		}
		writeClause(&q, args, s)
	}
	writeWheres(&q, args, u.wheres)
	return q.String(), args.Args()
}

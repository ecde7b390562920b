package sqlp

import "github.com/greghart/powerputty-idgen/queryp"

// Support top level imports without drilling into our separated packages.
// Just a convenience for users, while letting us keep code organized into sub packages.
// The builders returned here default to the dialect's placeholder style.

func (d Dialect) Named(q string) *queryp.NamedQuery {
	return queryp.Named(q).WithPlaceholderer(d.Placeholderer())
}

func (d Dialect) Select(columns ...string) *queryp.SelectQuery {
	return queryp.Select(columns...).WithPlaceholderer(d.Placeholderer())
}

func (d Dialect) Update(table string) *queryp.UpdateQuery {
	return queryp.Update(table).WithPlaceholderer(d.Placeholderer())
}

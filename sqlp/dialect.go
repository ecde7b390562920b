package sqlp

import (
	"fmt"

	"github.com/greghart/powerputty-idgen/queryp"
)

// Dialect is the flavor of SQL to write literal syntax for.
// It covers placeholders and a handful of keywords, nothing more.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a database/sql driver name to its Dialect.
func ParseDialect(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("sqlp: no dialect for driver %q", driverName)
}

// Placeholderer returns the queryp placeholder style of the dialect.
func (d Dialect) Placeholderer() queryp.Placeholderer {
	switch d {
	case Postgres:
		return queryp.PostgresPlaceholderer
	case MySQL:
		return queryp.MySQLPlaceholderer
	}
	return queryp.SqlitePlaceholderer
}

// LockSuffix is the row lock hint to append to a SELECT inside a transaction.
// SQLite locks the whole database on write and has no row hint.
func (d Dialect) LockSuffix() string {
	switch d {
	case Postgres, MySQL:
		return "FOR UPDATE"
	}
	return ""
}

func (d Dialect) String() string {
	return string(d)
}

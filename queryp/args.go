package queryp

import "fmt"

// Args are a way to build placeholder arguments for queries in a composable way.
// Every builder in this package renders through an Args, so the placeholder style is decided in
// exactly one place.
type Args struct {
	placeholderer Placeholderer
	args          []any
}

// Placeholderer returns the placeholder for the i-th (zero based) argument.
type Placeholderer func(i int) string

func NewArgs() *Args {
	return &Args{
		placeholderer: SqlitePlaceholderer, // Default to SQLite placeholder style
	}
}

func (a *Args) WithPlaceholderer(p Placeholderer) *Args {
	if p != nil {
		a.placeholderer = p
	}
	return a
}

// Add adds an argument and returns a placeholder for it.
func (a *Args) Add(arg any) string {
	a.args = append(a.args, arg)
	return a.placeholderer(len(a.args) - 1)
}

func (a *Args) Args() []any {
	return a.args
}

// Len is the number of arguments added so far.
func (a *Args) Len() int {
	return len(a.args)
}

////////////////////////////////////////////////////////////////////////////////

var SqlitePlaceholderer = func(i int) string {
	return "?"
}

var MySQLPlaceholderer = func(i int) string {
	return "?"
}

var PostgresPlaceholderer = func(i int) string {
	return fmt.Sprintf("$%d", i+1) // Postgres placeholders start at $1, so we add 1 to the index
}

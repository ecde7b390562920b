package queryp

import (
	"sort"
	"strings"
)

// NamedQuery represents a SQL query with named parameters (`:name`).
// Building is deferred until `String()`, `Args()` or `Execute()`, since the order params appear
// in the query decides the order of args for drivers with positional placeholders.
type NamedQuery struct {
	query         string
	params        map[string]any
	placeholderer Placeholderer
	builtQuery    string
	builtArgs     *Args
}

func Named(query string) *NamedQuery {
	return &NamedQuery{
		query:  query,
		params: make(map[string]any),
	}
}

// WithPlaceholderer sets the Placeholderer for the NamedQuery.
func (n *NamedQuery) WithPlaceholderer(p Placeholderer) *NamedQuery {
	n.reset()
	n.placeholderer = p
	return n
}

// WithQuery sets the query string for the NamedQuery.
func (n *NamedQuery) WithQuery(q string) *NamedQuery {
	n.reset()
	n.query = q
	return n
}

// Params adds the given map of params to the NamedQuery.
func (n *NamedQuery) Params(m map[string]any) *NamedQuery {
	n.reset()
	for key, value := range m {
		n.params[key] = value
	}
	return n
}

// Param adds a single named parameter to the NamedQuery.
func (n *NamedQuery) Param(key string, v any) *NamedQuery {
	n.reset()
	n.params[key] = v
	return n
}

func (n *NamedQuery) String() string {
	if n.builtArgs == nil {
		n.build()
	}
	return n.builtQuery
}

func (n *NamedQuery) Args() []any {
	if n.builtArgs == nil {
		n.build()
	}
	return n.builtArgs.Args()
}

// Execute returns the query and arguments for the named query.
func (n *NamedQuery) Execute() (string, []any) {
	if n.builtArgs == nil {
		n.build()
	}
	return n.builtQuery, n.builtArgs.Args()
}

////////////////////////////////////////////////////////////////////////////////

func (n *NamedQuery) reset() {
	n.builtArgs = nil
	n.builtQuery = ""
}

func (n *NamedQuery) build() {
	n.builtArgs = NewArgs().WithPlaceholderer(n.placeholderer)

	// Longest keys first, so `:id` never eats the start of `:idx`.
	keys := make([]string, 0, len(n.params))
	for k := range n.params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	q := strings.Builder{}
	for i := 0; i < len(n.query); i++ {
		c := n.query[i]
		if c != ':' {
			q.WriteByte(c)
			continue
		}
		// Postgres casts (`::text`) are never params.
		if i+1 < len(n.query) && n.query[i+1] == ':' {
			q.WriteString("::")
			i++
			continue
		}
		match := ""
		for _, k := range keys {
			if strings.HasPrefix(n.query[i+1:], k) && !isIdentByte(n.query, i+1+len(k)) {
				match = k
				break
			}
		}
		if match == "" {
			q.WriteByte(c)
			continue
		}
		q.WriteString(n.builtArgs.Add(n.params[match]))
		i += len(match)
	}
	n.builtQuery = q.String()
}

// isIdentByte is whether s[i] could continue a param name.
func isIdentByte(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

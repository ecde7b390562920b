package idgenp

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/greghart/powerputty-idgen/sqlp"
)

// Increment is the classic "max + 1" strategy: it reads the highest id in an entity table once,
// then counts up in memory. It's only safe while a single process inserts into the table, and
// supports nothing beyond Strategy.
type Increment struct {
	conn    Conn
	dialect sqlp.Dialect
	table   string
	column  string

	mu      sync.Mutex
	loaded  bool
	current int64
}

func NewIncrement(conn Conn, dialect sqlp.Dialect, table, column string) (*Increment, error) {
	for _, ident := range []string{table, column} {
		if !validIdentifier(ident) {
			return nil, fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidConfig, ident)
		}
	}
	if dialect == "" {
		dialect = sqlp.SQLite
	}
	dialect, err := sqlp.ParseDialect(dialect.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Increment{conn: conn, dialect: dialect, table: table, column: column}, nil
}

func (i *Increment) NextID(ctx context.Context) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.loaded {
		q, args := i.dialect.Select("COALESCE(MAX(" + i.column + "), 0)").From(i.table).Execute()
		if err := i.conn.QueryRow(ctx, q, args...).Scan(&i.current); err != nil {
			return 0, fmt.Errorf("failed to read max %s.%s: %w", i.table, i.column, err)
		}
		i.loaded = true
	}
	if i.current == math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s.%s is at the end of int64", ErrOverflow, i.table, i.column)
	}
	i.current++
	return i.current, nil
}

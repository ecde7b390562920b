package idgenp

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/greghart/powerputty-idgen/sqlp"
)

const (
	DefaultTable       = "id_generator"
	DefaultKeyColumn   = "object_type"
	DefaultValueColumn = "current_id"

	// MaxBlockSize bounds BlockSize, keeping claims far from the end of the int64 range.
	MaxBlockSize = 1 << 30
)

// identifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name).
// Names are concatenated into statements, so nothing else gets through.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// Config configures a sequence. Zero values get defaults, except Key which is required.
type Config struct {
	// Table holding one row per sequence.
	Table string
	// KeyColumn is the primary key column, naming the sequence.
	KeyColumn string
	// ValueColumn holds the next free id.
	ValueColumn string
	// Key names this sequence, typically the entity type or `table.column` it generates ids for.
	Key string
	// BlockSize is how many ids to serve from memory after each claim.
	// Each claim reserves BlockSize+1 ids. 0 means every id goes to the database.
	BlockSize int64
	// Dialect decides placeholder and lock syntax. Defaults to SQLite.
	Dialect sqlp.Dialect
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.KeyColumn == "" {
		c.KeyColumn = DefaultKeyColumn
	}
	if c.ValueColumn == "" {
		c.ValueColumn = DefaultValueColumn
	}
	if c.Dialect == "" {
		c.Dialect = sqlp.SQLite
	}
	// Driver aliases (pgx, sqlite) render as the dialect they stand for.
	if d, err := sqlp.ParseDialect(c.Dialect.String()); err == nil {
		c.Dialect = d
	}
	return c
}

// Validate reports whether the config (with defaults applied) is usable.
func (c Config) Validate() error {
	c = c.withDefaults()
	for _, ident := range []string{c.Table, c.KeyColumn, c.ValueColumn} {
		if !validIdentifier(ident) {
			return fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidConfig, ident)
		}
	}
	if c.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidConfig)
	}
	if c.BlockSize < 0 {
		return fmt.Errorf("%w: block size %d is negative", ErrInvalidConfig, c.BlockSize)
	}
	if c.BlockSize > MaxBlockSize {
		return fmt.Errorf("%w: block size %d is over %d", ErrInvalidConfig, c.BlockSize, MaxBlockSize)
	}
	if _, err := sqlp.ParseDialect(c.Dialect.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func validIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && identifierRe.MatchString(s)
}

// lastClaimable is the highest watermark a block can still be claimed from.
func (c Config) lastClaimable() int64 {
	return math.MaxInt64 - c.BlockSize - 1
}

////////////////////////////////////////////////////////////////////////////////
// Statements

// readQuery selects the sequence's next free id, with a row lock if asked and supported.
func (c Config) readQuery(lock bool) (string, []any) {
	q := c.Dialect.Select(c.ValueColumn).
		From(c.Table).
		Where(c.KeyColumn+" = ?", c.Key)
	if lock {
		q.Suffix(c.Dialect.LockSuffix())
	}
	return q.Execute()
}

// swapQuery moves the sequence from seen to next, only if it's still at seen.
func (c Config) swapQuery(seen, next int64) (string, []any) {
	return c.Dialect.Update(c.Table).
		Set(c.ValueColumn, next).
		Where(c.KeyColumn+" = ? AND "+c.ValueColumn+" = ?", c.Key, seen).
		Execute()
}

////////////////////////////////////////////////////////////////////////////////

// txReporter is implemented by connections that know about ambient transactions, like sqlp.DB.
type txReporter interface {
	InTx(ctx context.Context) bool
}

func inTx(conn Conn, ctx context.Context) bool {
	r, ok := conn.(txReporter)
	return ok && r.InTx(ctx)
}

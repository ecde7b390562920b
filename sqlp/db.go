package sqlp

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"
)

// DB extends the stdlib sql.DB type to add additional behavior.
type DB struct {
	*sql.DB
	dialect Dialect
	log     zerolog.Logger
}

// NewDB builds a new sqlp.DB for when you already have an existing sql.DB.
// Dialect defaults to SQLite, see WithDialect.
func NewDB(db *sql.DB) *DB {
	return &DB{DB: db, dialect: SQLite, log: zerolog.Nop()}
}

// Open opens a database, inferring the dialect from the driver name.
func Open(driverName, dataSourceName string) (*DB, error) {
	dialect, err := ParseDialect(driverName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	return NewDB(db).WithDialect(dialect), nil
}

func (db *DB) WithDialect(d Dialect) *DB {
	db.dialect = d
	return db
}

func (db *DB) WithLogger(l zerolog.Logger) *DB {
	db.log = l
	return db
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

////////////////////////////////////////////////////////////////////////////////
// Standardized APIs

// Exec runs ExecContext.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.queryer(ctx).ExecContext(ctx, query, args...)
}

// Query runs QueryContext.
func (db *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.queryer(ctx).QueryContext(ctx, query, args...)
}

// QueryRow runs QueryRowContext.
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.queryer(ctx).QueryRowContext(ctx, query, args...)
}

////////////////////////////////////////////////////////////////////////////////
// Transactional APIs

type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type contextKeyType string

const (
	ctxKey = contextKeyType("sqlp")
)

// RunInTx runs the callback fxn in a transaction.
// If context already has a transaction, it will use that one, and leave committing to whoever
// started it.
// You can return an error from the callback to trigger the transaction to rollback.
func (db *DB) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if db.txContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			// Rolled back due to error, but errored on rollback.
			db.log.Error().Err(err).Msg("failed to rollback transaction")
		}
	}()

	if err := fn(context.WithValue(ctx, ctxKey, tx)); err != nil {
		return err
	}

	return tx.Commit()
}

// InTx reports whether the context carries a transaction from RunInTx.
func (db *DB) InTx(ctx context.Context) bool {
	return db.txContext(ctx) != nil
}

// queryer returns the proper queryer for context, whether a Tx or normal DB.
func (db *DB) queryer(ctx context.Context) Queryer {
	if tx := db.txContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// txContext returns contexts current transaction if any.
func (db *DB) txContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(ctxKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

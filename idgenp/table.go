package idgenp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/greghart/powerputty-idgen/queryp"
	"github.com/greghart/powerputty-idgen/sqlp"
)

var createTableTemplate = queryp.Must(queryp.NewTemplate(`
CREATE TABLE IF NOT EXISTS {{.Var "table"}} (
	{{.Var "key"}} {{if .Includes "mysql"}}VARCHAR(255){{else}}TEXT{{end}} NOT NULL PRIMARY KEY,
	{{.Var "value"}} BIGINT NOT NULL
)`))

var seedTemplate = queryp.Must(queryp.NewTemplate(
	`INSERT INTO {{.Var "table"}} ({{.Var "key"}}, {{.Var "value"}}) VALUES (:key, :value)`,
))

// CreateTable creates the sequence table if it doesn't exist yet.
// This is a convenience for tests and tooling, not a substitute for migrations.
func CreateTable(ctx context.Context, conn Conn, cfg Config) error {
	cfg, err := checked(cfg)
	if err != nil {
		return err
	}
	q, args, err := tableTemplate(createTableTemplate, cfg).
		Include(cfg.Dialect.String()).
		Execute()
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.Table, err)
	}
	return nil
}

// Seed inserts the sequence's row, with start as the first id to generate.
func Seed(ctx context.Context, conn Conn, cfg Config, start int64) error {
	cfg, err := checked(cfg)
	if err != nil {
		return err
	}
	var existing int64
	q, args := cfg.readQuery(false)
	err = conn.QueryRow(ctx, q, args...).Scan(&existing)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q at %d", ErrAlreadySeeded, cfg.Key, existing)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check %q: %w", cfg.Key, err)
	}

	q, args, err = tableTemplate(seedTemplate, cfg).
		Placeholderer(cfg.Dialect.Placeholderer()).
		Params(map[string]any{"key": cfg.Key, "value": start}).
		Execute()
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, q, args...); err != nil {
		if sqlp.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrAlreadySeeded, cfg.Key)
		}
		return fmt.Errorf("failed to seed %q: %w", cfg.Key, err)
	}
	return nil
}

func checked(cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg.withDefaults(), nil
}

func tableTemplate(t *queryp.Template, cfg Config) *queryp.TemplateBuilder {
	return t.Var("table", cfg.Table).
		Var("key", cfg.KeyColumn).
		Var("value", cfg.ValueColumn)
}

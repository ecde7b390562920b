// Package config loads idgen's settings from the environment.
//
// Variables are prefixed with IDGEN_, and a double underscore separates nested keys:
// IDGEN_DATABASE__DSN sets database.dsn, IDGEN_SEQUENCE__BLOCK_SIZE sets sequence.block_size.
// A `.env` file in the working directory is loaded first if present.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/greghart/powerputty-idgen/idgenp"
	"github.com/greghart/powerputty-idgen/sqlp"
)

const Prefix = "IDGEN_"

type Config struct {
	Database Database `koanf:"database" validate:"required"`
	Sequence Sequence `koanf:"sequence"`
	Log      Log      `koanf:"log"`
}

type Database struct {
	Driver string `koanf:"driver" validate:"required,oneof=sqlite3 postgres mysql"`
	DSN    string `koanf:"dsn" validate:"required"`
	// MaxOpenConns caps the pool, 0 is unlimited.
	MaxOpenConns int `koanf:"max_open_conns" validate:"gte=0"`
}

// Sequence mirrors idgenp.Config, see there for what each field means.
type Sequence struct {
	Table       string `koanf:"table"`
	KeyColumn   string `koanf:"key_column"`
	ValueColumn string `koanf:"value_column"`
	Key         string `koanf:"key"`
	BlockSize   int64  `koanf:"block_size" validate:"gte=0"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Default returns the config used for anything the environment leaves unset.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver: string(sqlp.SQLite),
		},
		Sequence: Sequence{
			Table:       idgenp.DefaultTable,
			KeyColumn:   idgenp.DefaultKeyColumn,
			ValueColumn: idgenp.DefaultValueColumn,
			BlockSize:   100,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the environment over the defaults, then applies overrides (keyed like
// "sequence.block_size"), and validates the result.
func Load(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(Prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, Prefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env: %w", err)
	}
	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("could not override %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Dialect returns the SQL dialect of the configured driver.
func (c *Config) Dialect() sqlp.Dialect {
	d, _ := sqlp.ParseDialect(c.Database.Driver) // validated on load
	return d
}

// IDGen returns the allocator config for the configured sequence.
func (c *Config) IDGen() idgenp.Config {
	return idgenp.Config{
		Table:       c.Sequence.Table,
		KeyColumn:   c.Sequence.KeyColumn,
		ValueColumn: c.Sequence.ValueColumn,
		Key:         c.Sequence.Key,
		BlockSize:   c.Sequence.BlockSize,
		Dialect:     c.Dialect(),
	}
}

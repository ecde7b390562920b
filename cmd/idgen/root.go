package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/greghart/powerputty-idgen/idgenp"
	"github.com/greghart/powerputty-idgen/internal/config"
	"github.com/greghart/powerputty-idgen/internal/logger"
	"github.com/greghart/powerputty-idgen/sqlp"
)

// app is what every subcommand runs against, set up before any of them run.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *sqlp.DB
}

// newAllocator returns a new allocator instance for the configured sequence.
func (a *app) newAllocator() (*idgenp.Allocator, error) {
	alloc, err := idgenp.NewAllocator(a.db, a.cfg.IDGen())
	if err != nil {
		return nil, err
	}
	return alloc.WithLogger(a.log), nil
}

// flagKeys maps persistent flags onto config keys. Flags win over the environment.
var flagKeys = map[string]string{
	"driver":     "database.driver",
	"dsn":        "database.dsn",
	"table":      "sequence.table",
	"key":        "sequence.key",
	"block-size": "sequence.block_size",
	"log-level":  "log.level",
	"pretty":     "log.pretty",
}

// execute runs the command line args, closing the database however the command ends.
func (a *app) execute(args []string, stdout, stderr io.Writer) error {
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close database")
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "idgen",
		Short: "Manage gap minimizing id sequences.",
		Long: `idgen creates, draws from, and reseeds id sequences stored in a database table. ` +
			`Settings come from IDGEN_ prefixed environment variables (or a .env file), ` +
			`overridden by flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("driver", "", "database driver: sqlite3, postgres or mysql")
	flags.String("dsn", "", "database connection string")
	flags.String("table", "", "sequence table name")
	flags.String("key", "", "sequence key, eg. the entity's table name")
	flags.Int64("block-size", 0, "ids served from memory per claim")
	flags.String("log-level", "", "trace, debug, info, warn, error or disabled")
	flags.Bool("pretty", false, "human friendly logs")

	root.AddCommand(
		newInitCmd(a),
		newNextCmd(a),
		newPeekCmd(a),
		newReseedCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	overrides := map[string]any{}
	var flagErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "int64":
			v, err := cmd.Flags().GetInt64(f.Name)
			flagErr = err
			overrides[key] = v
		case "bool":
			v, err := cmd.Flags().GetBool(f.Name)
			flagErr = err
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	})
	if flagErr != nil {
		return flagErr
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Log, cmd.ErrOrStderr())

	db, err := sqlp.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	a.db = db.WithLogger(a.log)
	if err := a.db.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("could not reach %s database: %w", cfg.Database.Driver, err)
	}
	return nil
}

// requireKey fails early with a friendlier message than the allocator's.
func (a *app) requireKey() error {
	if a.cfg.Sequence.Key == "" {
		return fmt.Errorf("no sequence key, set --key or IDGEN_SEQUENCE__KEY")
	}
	return nil
}

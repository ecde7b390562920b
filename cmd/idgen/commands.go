package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/greghart/powerputty-idgen/idgenp"
)

func newInitCmd(a *app) *cobra.Command {
	var start int64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the sequence table if needed, and seed the sequence.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := a.cfg.IDGen()
			if err := idgenp.CreateTable(ctx, a.db, cfg); err != nil {
				return err
			}
			err := idgenp.Seed(ctx, a.db, cfg, start)
			if errors.Is(err, idgenp.ErrAlreadySeeded) {
				a.log.Warn().Err(err).Str("key", cfg.Key).Msg("sequence already seeded, leaving it be")
				return nil
			}
			if err != nil {
				return err
			}
			a.log.Info().Str("key", cfg.Key).Int64("start", start).Msg("seeded sequence")
			return nil
		},
	}
	cmd.Flags().Int64Var(&start, "start", 1, "first id to generate")
	return cmd
}

func newNextCmd(a *app) *cobra.Command {
	var (
		count   int
		workers int
		flush   bool
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Draw ids from the sequence and print them in order.",
		Long: `Draw ids from the sequence and print them in order. ` +
			`Each worker is its own allocator, as separate processes would be.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			if count < 1 || workers < 1 {
				return fmt.Errorf("count and workers must be positive")
			}
			workers = min(workers, count)

			var (
				mu  sync.Mutex
				ids = make([]int64, 0, count)
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			for w := 0; w < workers; w++ {
				n := count / workers
				if w < count%workers {
					n++
				}
				g.Go(func() error {
					alloc, err := a.newAllocator()
					if err != nil {
						return err
					}
					for i := 0; i < n; i++ {
						id, err := alloc.NextID(ctx)
						if err != nil {
							return err
						}
						mu.Lock()
						ids = append(ids, id)
						mu.Unlock()
					}
					if flush {
						return alloc.SaveChangesToID(ctx)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "how many ids to draw")
	cmd.Flags().IntVar(&workers, "workers", 1, "concurrent allocators to draw with")
	cmd.Flags().BoolVar(&flush, "flush", true, "give unused ids back when done")
	return cmd
}

func newPeekCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "peek",
		Short: "Print the next free id, without taking it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			alloc, err := a.newAllocator()
			if err != nil {
				return err
			}
			id, err := alloc.PeekNextID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newReseedCmd(a *app) *cobra.Command {
	var next int64
	cmd := &cobra.Command{
		Use:   "reseed",
		Short: "Set the next free id, eg. after a bulk import.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireKey(); err != nil {
				return err
			}
			alloc, err := a.newAllocator()
			if err != nil {
				return err
			}
			return a.db.RunInTx(cmd.Context(), func(ctx context.Context) error {
				return alloc.Reseed(ctx, next)
			})
		},
	}
	cmd.Flags().Int64Var(&next, "next", 0, "next id to generate")
	_ = cmd.MarkFlagRequired("next")
	return cmd
}

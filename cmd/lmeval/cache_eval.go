package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/cache"
	"github.com/samcharles93/lmeval/internal/eval"
	"github.com/samcharles93/lmeval/internal/logger"
)

func cacheEvalCmd() *cli.Command {
	var (
		cfg        cache.Config
		maxWindows int64
		window     int64
		parallel   int64
	)

	flags := append([]cli.Flag{splitFlag(), outputFlag()}, batchSizeFlag(1))
	flags = append(flags, toyFlags()...)
	flags = append(flags, cacheFlags(&cfg, &maxWindows, &window)...)
	flags = append(flags, &cli.Int64Flag{
		Name:        "parallel",
		Aliases:     []string{"j"},
		Usage:       "splits evaluated at once (0 = all)",
		Value:       2,
		Destination: &parallel,
	})

	return &cli.Command{
		Name:  "cache-eval",
		Usage: "Report continuous-cache perplexity of the toy model on token files",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyBatchConfig(cmd, fileConfig)
			applyCacheConfig(cmd, fileConfig, &cfg, &maxWindows, &window)
			if cfg.Capacity == 0 {
				cfg.Capacity = cfg.Window
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log := logger.FromContext(ctx)

			splits, err := loadSplits(cmd.StringSlice("split"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := newToyModel(splits)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("evaluating with cache",
				"splits", len(splits),
				"batch_size", batchSize,
				"window", window,
				"cache_window", cfg.Window,
				"theta", cfg.Theta,
				"lambda", cfg.Lambda,
				"capacity", cfg.Capacity,
			)

			opts := eval.Options{Window: int(window), MaxChunks: int(maxWindows)}
			results, err := eval.RunSplits(ctx, splits, int(parallel), func(ctx context.Context, s eval.Split) (eval.Result, error) {
				g, err := batch.NewGrid(s.Stream, int(batchSize))
				if err != nil {
					return eval.Result{}, err
				}
				ctx = logger.WithContext(ctx, log.With("split", s.Name))
				return eval.CachePerplexity(ctx, m, g, cfg, opts)
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return renderResults(stdout(cmd), output, results)
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/eval"
	"github.com/samcharles93/lmeval/internal/logger"
	"github.com/samcharles93/lmeval/internal/model"
)

func evalCmd() *cli.Command {
	var (
		maxChunks int64
		parallel  int64
	)

	flags := append([]cli.Flag{splitFlag(), outputFlag()}, batchFlags(20, 35)...)
	flags = append(flags, toyFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "max-chunks",
			Usage:       "stop each split after this many chunks (0 = all)",
			Destination: &maxChunks,
		},
		&cli.Int64Flag{
			Name:        "parallel",
			Aliases:     []string{"j"},
			Usage:       "splits evaluated at once (0 = all)",
			Value:       2,
			Destination: &parallel,
		},
	)

	return &cli.Command{
		Name:  "eval",
		Usage: "Report truncated-BPTT perplexity of the toy model on token files",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			applyBatchConfig(cmd, fileConfig)
			log := logger.FromContext(ctx)

			splits, err := loadSplits(cmd.StringSlice("split"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := newToyModel(splits)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("evaluating", "splits", len(splits), "batch_size", batchSize, "bptt", bpttLen, "vocab", m.Config().Vocab)

			opts := eval.Options{MaxChunks: int(maxChunks)}
			results, err := eval.RunSplits(ctx, splits, int(parallel), func(ctx context.Context, s eval.Split) (eval.Result, error) {
				b, err := batch.NewBPTT(s.Stream, int(bpttLen), int(batchSize))
				if err != nil {
					return eval.Result{}, err
				}
				ctx = logger.WithContext(ctx, log.With("split", s.Name))
				return eval.Perplexity(ctx, m, b, model.CrossEntropy, opts)
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return renderResults(stdout(cmd), output, results)
		},
	}
}

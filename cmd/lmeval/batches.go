package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/logger"
)

func batchesCmd() *cli.Command {
	var (
		limit   int64
		preview int64
	)

	flags := append([]cli.Flag{splitFlag()}, batchFlags(20, 35)...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "chunks to list (0 = all)",
			Value:       10,
			Destination: &limit,
		},
		&cli.Int64Flag{
			Name:        "preview",
			Usage:       "tokens of lane 0 shown per chunk",
			Value:       8,
			Destination: &preview,
		},
	)

	return &cli.Command{
		Name:  "batches",
		Usage: "Show how a token file is cut into BPTT chunks",
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
			for _, s := range splits {
				b, err := batch.NewBPTT(s.Stream, int(bpttLen), int(batchSize))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				discarded := max(len(s.Stream)-b.Tokens()-1, 0)
				if b.Len() == 0 {
					discarded = len(s.Stream)
				}
				log.Info("batchified",
					"split", s.Name,
					"tokens", len(s.Stream),
					"lanes", b.BatchSize(),
					"lane_len", b.LaneLen(),
					"chunks", b.Len(),
					"discarded", discarded,
				)
				printChunks(stdout(cmd), s.Name, b, int(limit), int(preview))
			}
			return nil
		},
	}
}

func printChunks(w io.Writer, name string, b *batch.BPTT, limit, preview int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"SPLIT", "CHUNK", "STEPS", "LANE 0 INPUT", "LANE 0 TARGET"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, c := range b.All() {
		if limit > 0 && i >= limit {
			break
		}
		table.Append([]string{
			name,
			strconv.Itoa(i),
			strconv.Itoa(c.Steps),
			joinIDs(c.InputLane(0), preview),
			joinIDs(c.TargetLane(0), preview),
		})
	}
	table.Render()
}

func joinIDs(ids []int, n int) string {
	var sb strings.Builder
	for i, id := range ids {
		if n > 0 && i == n {
			sb.WriteString(" ...")
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}

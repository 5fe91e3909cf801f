package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/samcharles93/lmeval/internal/eval"
)

func renderResults(w io.Writer, format string, results []eval.Result) error {
	switch format {
	case "json":
		return renderJSON(w, results)
	case "table", "":
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"SPLIT", "MODE", "TOKENS", "CHUNKS", "AVG LOSS", "PPL", "TIME"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		for _, r := range results {
			table.Append([]string{
				r.Split,
				r.Mode,
				strconv.Itoa(r.Tokens),
				strconv.Itoa(r.Chunks),
				strconv.FormatFloat(r.AvgLoss, 'f', 4, 64),
				strconv.FormatFloat(r.Perplexity, 'f', 2, 64),
				r.Elapsed.Round(time.Millisecond).String(),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", format)
	}
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

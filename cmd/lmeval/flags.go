package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/cache"
)

var (
	configFile string
	fileConfig Config

	logLevel  string
	logFormat string
	debug     bool

	batchSize int64
	bpttLen   int64
	output    string

	toyVocab  int64
	toyHidden int64
	toyDecay  float64
	toySeed   int64
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml (default $" + envConfig + " or the user config dir)",
		Destination: &configFile,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func batchSizeFlag(def int64) cli.Flag {
	return &cli.Int64Flag{
		Name:        "batch-size",
		Aliases:     []string{"b"},
		Usage:       "number of parallel lanes",
		Value:       def,
		Destination: &batchSize,
	}
}

func batchFlags(defaultBatch, defaultBPTT int64) []cli.Flag {
	return []cli.Flag{
		batchSizeFlag(defaultBatch),
		&cli.Int64Flag{
			Name:        "bptt",
			Aliases:     []string{"k"},
			Usage:       "steps per chunk",
			Value:       defaultBPTT,
			Destination: &bpttLen,
		},
	}
}

func splitFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "split",
		Aliases: []string{"s"},
		Usage:   "token file to evaluate, as name=path or path (repeatable)",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "output",
		Aliases:     []string{"o"},
		Usage:       "result format (table, json)",
		Value:       "table",
		Destination: &output,
	}
}

func toyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "vocab",
			Usage:       "toy model vocabulary size (0 = largest token id + 1)",
			Destination: &toyVocab,
		},
		&cli.Int64Flag{
			Name:        "hidden",
			Usage:       "toy model hidden size",
			Value:       32,
			Destination: &toyHidden,
		},
		&cli.Float64Flag{
			Name:        "decay",
			Usage:       "toy model hidden state decay in [0,1)",
			Value:       0.5,
			Destination: &toyDecay,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "toy model weight seed",
			Value:       1,
			Destination: &toySeed,
		},
	}
}

func cacheFlags(cfg *cache.Config, maxWindows, window *int64) []cli.Flag {
	def := cache.DefaultConfig()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "window",
			Aliases:     []string{"w"},
			Usage:       "evaluation window length in steps",
			Value:       batch.DefaultWindow,
			Destination: window,
		},
		&cli.IntFlag{
			Name:        "cache-window",
			Usage:       "number of recent cache entries that vote",
			Value:       def.Window,
			Destination: &cfg.Window,
		},
		&cli.Float64Flag{
			Name:        "theta",
			Usage:       "cache similarity temperature (> 0)",
			Value:       def.Theta,
			Destination: &cfg.Theta,
		},
		&cli.Float64Flag{
			Name:        "lambda",
			Usage:       "cache mixing weight in [0,1]",
			Value:       def.Lambda,
			Destination: &cfg.Lambda,
		},
		&cli.IntFlag{
			Name:        "capacity",
			Usage:       "cache history capacity (0 = cache-window)",
			Destination: &cfg.Capacity,
		},
		&cli.Int64Flag{
			Name:        "max-windows",
			Usage:       "stop after this many windows (0 = whole split)",
			Destination: maxWindows,
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/lmeval/internal/cache"
)

const envConfig = "LMEVAL_CONFIG"

// Config mirrors config.yaml. Pointer fields distinguish "not set" from zero.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Output    string `yaml:"output"`

	BatchSize *int64 `yaml:"batch_size"`
	BPTT      *int64 `yaml:"bptt"`

	Toy   ToyConfig   `yaml:"toy"`
	Cache CacheConfig `yaml:"cache"`
}

type ToyConfig struct {
	Vocab  *int64   `yaml:"vocab"`
	Hidden *int64   `yaml:"hidden"`
	Decay  *float64 `yaml:"decay"`
	Seed   *int64   `yaml:"seed"`
}

type CacheConfig struct {
	EvalWindow *int64   `yaml:"eval_window"`
	Window     *int     `yaml:"window"`
	Theta      *float64 `yaml:"theta"`
	Lambda     *float64 `yaml:"lambda"`
	Capacity   *int     `yaml:"capacity"`
	MaxWindows *int64   `yaml:"max_windows"`
}

func configPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(envConfig)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lmeval", "config.yaml")
}

// LoadConfig reads the config file. A missing default file yields a zero
// Config; a missing explicit file or invalid YAML is an error.
func LoadConfig(explicit string) (Config, error) {
	path := configPath(explicit)
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && strings.TrimSpace(explicit) == "" {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyBatchConfig fills batch, output and toy settings from the config file
// where the matching flag was not given.
func applyBatchConfig(c *cli.Command, cfg Config) {
	if cfg.BatchSize != nil && !c.IsSet("batch-size") {
		batchSize = *cfg.BatchSize
	}
	if cfg.BPTT != nil && !c.IsSet("bptt") {
		bpttLen = *cfg.BPTT
	}
	if cfg.Output != "" && !c.IsSet("output") {
		output = cfg.Output
	}
	if cfg.Toy.Vocab != nil && !c.IsSet("vocab") {
		toyVocab = *cfg.Toy.Vocab
	}
	if cfg.Toy.Hidden != nil && !c.IsSet("hidden") {
		toyHidden = *cfg.Toy.Hidden
	}
	if cfg.Toy.Decay != nil && !c.IsSet("decay") {
		toyDecay = *cfg.Toy.Decay
	}
	if cfg.Toy.Seed != nil && !c.IsSet("seed") {
		toySeed = *cfg.Toy.Seed
	}
}

func applyCacheConfig(c *cli.Command, cfg Config, cc *cache.Config, maxWindows, window *int64) {
	if cfg.Cache.EvalWindow != nil && !c.IsSet("window") {
		*window = *cfg.Cache.EvalWindow
	}
	if cfg.Cache.Window != nil && !c.IsSet("cache-window") {
		cc.Window = *cfg.Cache.Window
	}
	if cfg.Cache.Theta != nil && !c.IsSet("theta") {
		cc.Theta = *cfg.Cache.Theta
	}
	if cfg.Cache.Lambda != nil && !c.IsSet("lambda") {
		cc.Lambda = *cfg.Cache.Lambda
	}
	if cfg.Cache.Capacity != nil && !c.IsSet("capacity") {
		cc.Capacity = *cfg.Cache.Capacity
	}
	if cfg.Cache.MaxWindows != nil && !c.IsSet("max-windows") {
		*maxWindows = *cfg.Cache.MaxWindows
	}
}

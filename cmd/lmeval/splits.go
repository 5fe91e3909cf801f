package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samcharles93/lmeval/internal/corpus"
	"github.com/samcharles93/lmeval/internal/eval"
	"github.com/samcharles93/lmeval/internal/toy"
)

// parseSplit accepts "name=path" or a bare path, in which case the name is
// the file name without its extension.
func parseSplit(arg string) (name, path string, err error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", "", fmt.Errorf("empty split")
	}
	if n, p, ok := strings.Cut(arg, "="); ok {
		n, p = strings.TrimSpace(n), strings.TrimSpace(p)
		if n == "" || p == "" {
			return "", "", fmt.Errorf("invalid split %q, want name=path", arg)
		}
		return n, filepath.Clean(p), nil
	}
	base := filepath.Base(arg)
	return strings.TrimSuffix(base, filepath.Ext(base)), filepath.Clean(arg), nil
}

func loadSplits(args []string) ([]eval.Split, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one --split is required")
	}
	splits := make([]eval.Split, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		name, path, err := parseSplit(arg)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate split name %q", name)
		}
		seen[name] = true
		stream, err := corpus.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load split %s: %w", name, err)
		}
		splits = append(splits, eval.Split{Name: name, Stream: stream})
	}
	return splits, nil
}

// vocabFor returns the configured vocabulary or, when zero, the smallest
// vocabulary covering every token of every split.
func vocabFor(configured int64, splits []eval.Split) int {
	if configured > 0 {
		return int(configured)
	}
	maxID := 0
	for _, s := range splits {
		for _, tok := range s.Stream {
			maxID = max(maxID, tok)
		}
	}
	return maxID + 1
}

func newToyModel(splits []eval.Split) (*toy.LM, error) {
	return toy.New(toy.Config{
		Vocab:  vocabFor(toyVocab, splits),
		Hidden: int(toyHidden),
		Decay:  toyDecay,
		Seed:   toySeed,
	})
}

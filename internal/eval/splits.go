package eval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/lmeval/internal/batch"
)

// Split is a named corpus split such as "valid" or "test".
type Split struct {
	Name   string
	Stream batch.Stream
}

// SplitFunc evaluates one split. It must not share mutable state with other
// calls; the model it uses must tolerate concurrent Forward calls.
type SplitFunc func(ctx context.Context, s Split) (Result, error)

// RunSplits evaluates splits concurrently, at most limit at a time (no limit
// when limit <= 0). Results keep the order of splits. The first error
// cancels the remaining work.
func RunSplits(ctx context.Context, splits []Split, limit int, fn SplitFunc) ([]Result, error) {
	results := make([]Result, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range splits {
		g.Go(func() error {
			r, err := fn(gctx, s)
			if err != nil {
				return fmt.Errorf("split %s: %w", s.Name, err)
			}
			r.Split = s.Name
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Package eval drives a model.Model over batched token streams and reports
// loss and perplexity.
package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/cache"
	"github.com/samcharles93/lmeval/internal/logger"
	"github.com/samcharles93/lmeval/internal/model"
)

// ErrTokenRange reports a target token the model has no logit for.
var ErrTokenRange = errors.New("eval: target outside model vocabulary")

// Options bounds an evaluation pass.
type Options struct {
	// MaxChunks stops after this many chunks or windows. Zero means the
	// whole stream.
	MaxChunks int
	// Window is the window length for cache evaluation. Zero means
	// batch.DefaultWindow.
	Window int
}

// Result summarizes one evaluation pass.
type Result struct {
	Split      string        `json:"split,omitempty"`
	Mode       string        `json:"mode"`
	Tokens     int           `json:"tokens"`
	Chunks     int           `json:"chunks"`
	Loss       float64       `json:"loss"`
	AvgLoss    float64       `json:"avg_loss"`
	Perplexity float64       `json:"perplexity"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// finish fills the averages. A pass over no tokens has perplexity 1, the
// same as cache.Scorer before its first step.
func (r *Result) finish(start time.Time) {
	r.Elapsed = time.Since(start)
	r.Perplexity = 1
	if r.Tokens > 0 {
		r.AvgLoss = r.Loss / float64(r.Tokens)
		r.Perplexity = math.Exp(r.AvgLoss)
	}
}

// Perplexity runs m over every chunk of b, carrying the recurrent state
// between chunks and detaching it after each one, and sums loss over every
// (step, lane) target.
func Perplexity(ctx context.Context, m model.Model, b *batch.BPTT, loss model.LossFunc, opts Options) (Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	res := Result{Mode: "bptt"}

	state := m.BeginState(b.BatchSize())
	for i, chunk := range b.All() {
		if opts.MaxChunks > 0 && i >= opts.MaxChunks {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, next, err := m.Forward(ctx, chunk, state)
		if err != nil {
			return res, fmt.Errorf("forward chunk %d: %w", i, err)
		}
		state = next.Detach()

		var chunkLoss float64
		for t := range chunk.Steps {
			for lane := range chunk.Lanes {
				y := chunk.TargetAt(t, lane)
				if y < 0 || y >= out.Vocab {
					return res, fmt.Errorf("%w: chunk %d step %d lane %d: token %d with vocabulary %d", ErrTokenRange, i, t, lane, y, out.Vocab)
				}
				chunkLoss += loss(out.LogitsAt(t, lane), y)
			}
		}
		res.Loss += chunkLoss
		res.Tokens += chunk.Steps * chunk.Lanes
		res.Chunks++
		log.Debug("chunk done", "chunk", i, "of", b.Len(), "loss", chunkLoss/float64(chunk.Steps*chunk.Lanes))
	}

	res.finish(start)
	return res, nil
}

// CachePerplexity evaluates g in consecutive windows, blending the model's
// softmax with a continuous cache. Every lane gets its own scorer, reset at
// the start of the pass, so cache memory never crosses lane boundaries.
func CachePerplexity(ctx context.Context, m model.Model, g *batch.Grid, cfg cache.Config, opts Options) (Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	res := Result{Mode: "cache"}

	scorers := make([]*cache.Scorer, g.BatchSize())
	for i := range scorers {
		s, err := cache.NewScorer(cfg)
		if err != nil {
			return res, err
		}
		scorers[i] = s
	}

	window := opts.Window
	if window <= 0 {
		window = batch.DefaultWindow
	}

	var probs []float64
	state := m.BeginState(g.BatchSize())
	for i, win := range g.Windows(window) {
		if opts.MaxChunks > 0 && res.Chunks >= opts.MaxChunks {
			log.Info("stopping early", "windows", res.Chunks, "max_windows", opts.MaxChunks)
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, next, err := m.Forward(ctx, win, state)
		if err != nil {
			return res, fmt.Errorf("forward window at %d: %w", i, err)
		}
		state = next.Detach()

		if cap(probs) < out.Vocab {
			probs = make([]float64, out.Vocab)
		}
		for t := range win.Steps {
			for lane := range win.Lanes {
				p := model.Softmax(probs[:out.Vocab], out.LogitsAt(t, lane))
				if _, err := scorers[lane].Step(out.HiddenAt(t, lane), p, win.TargetAt(t, lane)); err != nil {
					return res, fmt.Errorf("score step %d lane %d: %w", i+t, lane, err)
				}
			}
		}
		res.Tokens += win.Steps * win.Lanes
		res.Chunks++
		log.Debug("window done", "start", i, "steps", win.Steps)
	}

	for _, s := range scorers {
		res.Loss += s.Loss()
	}
	res.finish(start)
	return res, nil
}

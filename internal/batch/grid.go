package batch

import (
	"fmt"
	"iter"
)

// DefaultWindow is the evaluation window used when none is configured.
const DefaultWindow = 2000

// Grid reshapes a stream into batchSize lanes of len(stream)/batchSize
// tokens for single-pass evaluation. It uses the same lane-major layout as
// BPTT but reserves no trailing target token, so the last step of every lane
// is only ever a target.
type Grid struct {
	stream    Stream
	batchSize int
	laneLen   int
}

func NewGrid(stream Stream, batchSize int) (*Grid, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, batchSize)
	}
	return &Grid{
		stream:    stream,
		batchSize: batchSize,
		laneLen:   len(stream) / batchSize,
	}, nil
}

// Len is the number of steps per lane.
func (g *Grid) Len() int { return g.laneLen }
func (g *Grid) BatchSize() int { return g.batchSize }

// Window returns the data steps [i, i+wEff) and the target steps
// [i+1, i+1+wEff) with wEff = min(w, Len()-1-i).
func (g *Grid) Window(i, w int) (Chunk, error) {
	if w < 1 {
		return Chunk{}, fmt.Errorf("%w: window must be >= 1, got %d", ErrInvalidConfig, w)
	}
	if i < 0 || i >= g.laneLen-1 {
		return Chunk{}, fmt.Errorf("%w: window start %d with lane length %d", ErrOutOfRange, i, g.laneLen)
	}
	steps := min(w, g.laneLen-1-i)
	return Chunk{
		Steps:  steps,
		Lanes:  g.batchSize,
		Input:  gather(g.stream, 0, g.laneLen, g.batchSize, i, steps),
		Target: gather(g.stream, 0, g.laneLen, g.batchSize, i+1, steps),
	}, nil
}

// Windows yields consecutive non-overlapping windows starting at 0, w, 2w...
// until the grid is exhausted. The key is the window start step. A w below 1
// yields nothing; use Window to get ErrInvalidConfig for it.
func (g *Grid) Windows(w int) iter.Seq2[int, Chunk] {
	return func(yield func(int, Chunk) bool) {
		if w < 1 {
			return
		}
		for i := 0; i < g.laneLen-1; i += w {
			c, err := g.Window(i, w)
			if err != nil {
				return
			}
			if !yield(i, c) {
				return
			}
		}
	}
}

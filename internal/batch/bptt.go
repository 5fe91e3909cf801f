package batch

import (
	"fmt"
	"iter"
)

// BPTT slices a stream into fixed-width chunks for truncated
// backpropagation through time.
//
// The stream is cut into batchSize contiguous lanes of laneLen tokens, where
// laneLen = (len(stream)-1)/batchSize. Lane b reads its inputs from
// stream[b*laneLen:(b+1)*laneLen] and its targets from the same range shifted
// by one token, so the final target of a lane is the first input of the next
// lane (or the single reserved trailing token for the last lane). Tokens past
// batchSize*laneLen+1 are discarded.
type BPTT struct {
	stream    Stream
	bpttLen   int
	batchSize int
	laneLen   int
}

// NewBPTT validates the configuration and returns a restartable chunk
// sequence over stream. A stream too short to fill one step per lane yields
// an empty sequence.
func NewBPTT(stream Stream, bpttLen, batchSize int) (*BPTT, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, batchSize)
	}
	if bpttLen < 1 {
		return nil, fmt.Errorf("%w: bptt length must be >= 1, got %d", ErrInvalidConfig, bpttLen)
	}
	laneLen := 0
	if len(stream) > batchSize {
		laneLen = (len(stream) - 1) / batchSize
	}
	return &BPTT{
		stream:    stream,
		bpttLen:   bpttLen,
		batchSize: batchSize,
		laneLen:   laneLen,
	}, nil
}

func (b *BPTT) BPTTLen() int { return b.bpttLen }
func (b *BPTT) BatchSize() int { return b.batchSize }
func (b *BPTT) LaneLen() int { return b.laneLen }

// Tokens is the number of input tokens covered by all chunks.
func (b *BPTT) Tokens() int { return b.batchSize * b.laneLen }

// Len is the number of chunks in one pass.
func (b *BPTT) Len() int {
	return (b.laneLen + b.bpttLen - 1) / b.bpttLen
}

// Chunk builds chunk i. Only the last chunk can have fewer than BPTTLen steps.
func (b *BPTT) Chunk(i int) (Chunk, error) {
	if i < 0 || i >= b.Len() {
		return Chunk{}, fmt.Errorf("%w: chunk %d of %d", ErrOutOfRange, i, b.Len())
	}
	start := i * b.bpttLen
	steps := min(b.bpttLen, b.laneLen-start)
	return Chunk{
		Steps:  steps,
		Lanes:  b.batchSize,
		Input:  gather(b.stream, 0, b.laneLen, b.batchSize, start, steps),
		Target: gather(b.stream, 1, b.laneLen, b.batchSize, start, steps),
	}, nil
}

// All yields every chunk in order. It may be ranged over any number of
// times, e.g. once per epoch.
func (b *BPTT) All() iter.Seq2[int, Chunk] {
	return func(yield func(int, Chunk) bool) {
		for i := range b.Len() {
			c, _ := b.Chunk(i)
			if !yield(i, c) {
				return
			}
		}
	}
}

// Package model defines the contract between the batching and scoring code
// and an external sequence model. Nothing here knows how a model computes
// its outputs.
package model

import (
	"context"

	"github.com/samcharles93/lmeval/internal/batch"
)

// State is a model's opaque recurrent state.
//
// Detach returns a state carrying the same values with any bookkeeping tying
// it to earlier chunks severed. Evaluators call it between chunks so history
// never accumulates across the whole stream.
type State interface {
	Detach() State
}

// States is a nested state container, e.g. one State per layer.
type States []State

func (s States) Detach() State {
	out := make(States, len(s))
	for i, st := range s {
		if st != nil {
			out[i] = st.Detach()
		}
	}
	return out
}

// Output holds per-step results of one Forward call.
// Logits is [Steps, Lanes, Vocab] and HiddenStates is [Steps, Lanes, Hidden],
// both flattened step-major like batch.Chunk.
type Output struct {
	Steps        int
	Lanes        int
	Vocab        int
	Hidden       int
	Logits       []float64
	HiddenStates []float64
}

func (o Output) LogitsAt(t, b int) []float64 {
	off := (t*o.Lanes + b) * o.Vocab
	return o.Logits[off : off+o.Vocab]
}

func (o Output) HiddenAt(t, b int) []float64 {
	off := (t*o.Lanes + b) * o.Hidden
	return o.HiddenStates[off : off+o.Hidden]
}

// Model is a recurrent sequence model consuming chunks of token ids.
type Model interface {
	// BeginState returns the initial state for batchSize lanes.
	BeginState(batchSize int) State
	// Forward runs the input block of chunk starting from state.
	Forward(ctx context.Context, chunk batch.Chunk, state State) (Output, State, error)
}

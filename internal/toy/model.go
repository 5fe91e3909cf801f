// Package toy provides a small, fixed, deterministic sequence model that
// satisfies model.Model. It is never trained; it exists to drive the
// batching and cache scoring code end to end in tests and from the CLI.
package toy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/lmeval/internal/batch"
	"github.com/samcharles93/lmeval/internal/model"
)

var (
	ErrStaleState    = errors.New("toy: state was not detached since the previous forward")
	ErrBatchMismatch = errors.New("toy: state lanes do not match chunk lanes")
	ErrTokenRange    = errors.New("toy: token outside vocabulary")
	ErrInvalidConfig = errors.New("toy: invalid config")
)

// Config describes the toy model's shape.
type Config struct {
	Vocab  int     `yaml:"vocab" json:"vocab"`
	Hidden int     `yaml:"hidden" json:"hidden"`
	Decay  float64 `yaml:"decay" json:"decay"`
	Seed   int64   `yaml:"seed" json:"seed"`
}

// LM keeps, per lane, a decayed running sum of token embeddings as its
// hidden state and projects it onto the vocabulary.
type LM struct {
	cfg  Config
	emb  []float64 // [Vocab x Hidden]
	proj []float64 // [Vocab x Hidden], row v scores token v
	bias []float64 // [Vocab]
}

// New builds a model whose weights depend only on cfg.Seed.
func New(cfg Config) (*LM, error) {
	if cfg.Vocab < 1 || cfg.Hidden < 1 {
		return nil, fmt.Errorf("%w: vocab %d hidden %d", ErrInvalidConfig, cfg.Vocab, cfg.Hidden)
	}
	if cfg.Decay < 0 || cfg.Decay >= 1 {
		return nil, fmt.Errorf("%w: decay must be in [0,1), got %v", ErrInvalidConfig, cfg.Decay)
	}
	m := &LM{
		cfg:  cfg,
		emb:  make([]float64, cfg.Vocab*cfg.Hidden),
		proj: make([]float64, cfg.Vocab*cfg.Hidden),
		bias: make([]float64, cfg.Vocab),
	}
	fillRand(m.emb, cfg.Seed+11)
	fillRand(m.proj, cfg.Seed+23)
	return m, nil
}

func fillRand(dst []float64, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = r.Float64()*2 - 1
	}
}

func (m *LM) Config() Config { return m.cfg }

// State is the per-lane hidden vector. A state returned by Forward is
// attached until Detach is called on it.
type State struct {
	H        [][]float64
	attached bool
}

func (s State) Detach() model.State {
	h := make([][]float64, len(s.H))
	for i, v := range s.H {
		h[i] = append([]float64(nil), v...)
	}
	return State{H: h}
}

// Attached reports whether s still links to the forward pass that made it.
func (s State) Attached() bool { return s.attached }

func (m *LM) BeginState(batchSize int) model.State {
	h := make([][]float64, batchSize)
	for i := range h {
		h[i] = make([]float64, m.cfg.Hidden)
	}
	return State{H: h}
}

// Forward is safe for concurrent use; it only reads the weights.
func (m *LM) Forward(ctx context.Context, chunk batch.Chunk, state model.State) (model.Output, model.State, error) {
	if err := ctx.Err(); err != nil {
		return model.Output{}, nil, err
	}
	st, ok := state.(State)
	if !ok {
		return model.Output{}, nil, fmt.Errorf("toy: unexpected state type %T", state)
	}
	if st.attached {
		return model.Output{}, nil, ErrStaleState
	}
	if len(st.H) != chunk.Lanes {
		return model.Output{}, nil, fmt.Errorf("%w: state %d chunk %d", ErrBatchMismatch, len(st.H), chunk.Lanes)
	}

	vocab, hidden := m.cfg.Vocab, m.cfg.Hidden
	out := model.Output{
		Steps:        chunk.Steps,
		Lanes:        chunk.Lanes,
		Vocab:        vocab,
		Hidden:       hidden,
		Logits:       make([]float64, chunk.Steps*chunk.Lanes*vocab),
		HiddenStates: make([]float64, chunk.Steps*chunk.Lanes*hidden),
	}
	next := st.Detach().(State)
	for t := range chunk.Steps {
		for b := range chunk.Lanes {
			tok := chunk.At(t, b)
			if tok < 0 || tok >= vocab {
				return model.Output{}, nil, fmt.Errorf("%w: %d with vocabulary %d", ErrTokenRange, tok, vocab)
			}
			h := next.H[b]
			floats.Scale(m.cfg.Decay, h)
			floats.Add(h, m.emb[tok*hidden:(tok+1)*hidden])
			copy(out.HiddenAt(t, b), h)

			logits := out.LogitsAt(t, b)
			for v := range vocab {
				logits[v] = floats.Dot(h, m.proj[v*hidden:(v+1)*hidden]) + m.bias[v]
			}
		}
	}
	next.attached = true
	return out, next, nil
}

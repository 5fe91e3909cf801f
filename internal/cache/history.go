package cache

import (
	"fmt"
	"iter"
)

// History is a bounded FIFO of (hidden state, next token) pairs.
//
// Hidden vectors live in one flat arena of capacity*dim floats indexed by
// ring slot; head is the slot of the oldest entry. The dimension is fixed by
// the first Push after construction or Reset.
type History struct {
	arena  []float64
	tokens []int
	dim    int
	head   int
	size   int
}

func NewHistory(capacity int) (*History, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1, got %d", ErrInvalidConfig, capacity)
	}
	return &History{tokens: make([]int, capacity)}, nil
}

func (h *History) Len() int { return h.size }
func (h *History) Cap() int { return len(h.tokens) }
func (h *History) Dim() int { return h.dim }

// Push copies hidden into the ring and records tok as the token observed
// after it. When the ring is full the oldest entry is overwritten.
func (h *History) Push(hidden []float64, tok int) error {
	if h.dim == 0 {
		if len(hidden) == 0 {
			return fmt.Errorf("%w: empty hidden state", ErrDimension)
		}
		h.dim = len(hidden)
		h.arena = make([]float64, len(h.tokens)*h.dim)
	}
	if len(hidden) != h.dim {
		return fmt.Errorf("%w: got %d want %d", ErrDimension, len(hidden), h.dim)
	}

	slot := (h.head + h.size) % len(h.tokens)
	if h.size == len(h.tokens) {
		slot = h.head
		h.head = (h.head + 1) % len(h.tokens)
	} else {
		h.size++
	}
	copy(h.arena[slot*h.dim:(slot+1)*h.dim], hidden)
	h.tokens[slot] = tok
	return nil
}

// Entry returns the i-th entry counting from the oldest. The hidden slice
// aliases the arena and is only valid until the next Push. Entry panics when
// i is outside [0, Len()); callers are expected to stay in range.
func (h *History) Entry(i int) ([]float64, int) {
	if i < 0 || i >= h.size {
		panic(fmt.Sprintf("cache: entry %d out of range [0,%d)", i, h.size))
	}
	slot := (h.head + i) % len(h.tokens)
	return h.arena[slot*h.dim : (slot+1)*h.dim], h.tokens[slot]
}

// Recent yields up to n of the newest entries, oldest first.
func (h *History) Recent(n int) iter.Seq2[[]float64, int] {
	return func(yield func([]float64, int) bool) {
		n = min(n, h.size)
		for i := h.size - n; i < h.size; i++ {
			if !yield(h.Entry(i)) {
				return
			}
		}
	}
}

// Reset drops every entry and forgets the hidden dimension.
func (h *History) Reset() {
	h.head = 0
	h.size = 0
	h.dim = 0
	h.arena = nil
}

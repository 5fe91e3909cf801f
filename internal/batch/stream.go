package batch

import "fmt"

// Stream is an ordered, already numericalized corpus split.
// Batchifiers only read it; callers must not mutate a stream while a
// batchifier built over it is in use.
type Stream []int

// Validate reports the first negative token id, if any.
func (s Stream) Validate() error {
	for i, tok := range s {
		if tok < 0 {
			return fmt.Errorf("%w: %d at position %d", ErrNegativeToken, tok, i)
		}
	}
	return nil
}

// Chunk is a [Steps, Lanes] block of input tokens and the matching
// next-token targets. Storage is step-major: element (t, b) lives at
// index t*Lanes+b.
type Chunk struct {
	Steps  int
	Lanes  int
	Input  []int
	Target []int
}

// At returns the input token at step t of lane b.
func (c Chunk) At(t, b int) int {
	return c.Input[t*c.Lanes+b]
}

// TargetAt returns the target token at step t of lane b.
func (c Chunk) TargetAt(t, b int) int {
	return c.Target[t*c.Lanes+b]
}

// InputLane copies lane b of the input block.
func (c Chunk) InputLane(b int) []int {
	return laneOf(c.Input, c.Steps, c.Lanes, b)
}

// TargetLane copies lane b of the target block.
func (c Chunk) TargetLane(b int) []int {
	return laneOf(c.Target, c.Steps, c.Lanes, b)
}

func laneOf(data []int, steps, lanes, b int) []int {
	out := make([]int, steps)
	for t := range steps {
		out[t] = data[t*lanes+b]
	}
	return out
}

// gather builds a step-major block from a lane-major token layout.
// Lane b occupies tokens[offset+b*laneLen : offset+(b+1)*laneLen] and the
// block covers lane steps [start, start+steps).
func gather(tokens Stream, offset, laneLen, lanes, start, steps int) []int {
	out := make([]int, steps*lanes)
	for t := range steps {
		row := out[t*lanes : (t+1)*lanes]
		for b := range lanes {
			row[b] = tokens[offset+b*laneLen+start+t]
		}
	}
	return out
}

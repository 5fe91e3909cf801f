package batch

import (
	"errors"
	"slices"
	"testing"
)

func seqStream(n int) Stream {
	s := make(Stream, n)
	for i := range s {
		s[i] = i + 1
	}
	return s
}

func TestNewBPTTInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		bpttLen   int
		batchSize int
	}{
		{"zero batch", 2, 0},
		{"negative batch", 2, -1},
		{"zero bptt", 0, 2},
		{"negative bptt", -3, 2},
	}
	for _, tc := range tests {
		if _, err := NewBPTT(seqStream(10), tc.bpttLen, tc.batchSize); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}

func TestBPTTShortStreamIsEmpty(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1, 2, 3} {
		b, err := NewBPTT(seqStream(n), 4, 3)
		if err != nil {
			t.Fatalf("NewBPTT(len=%d): %v", n, err)
		}
		if b.Len() != 0 {
			t.Fatalf("len=%d: expected no chunks, got %d", n, b.Len())
		}
		for range b.All() {
			t.Fatalf("len=%d: All yielded a chunk", n)
		}
	}
}

func TestBPTTConcreteScenario(t *testing.T) {
	t.Parallel()
	b, err := NewBPTT(Stream{1, 2, 3, 4, 5, 6, 7, 8, 9}, 2, 2)
	if err != nil {
		t.Fatalf("NewBPTT: %v", err)
	}
	if b.LaneLen() != 4 {
		t.Fatalf("unexpected lane length: got %d want 4", b.LaneLen())
	}
	if b.Len() != 2 {
		t.Fatalf("unexpected chunk count: got %d want 2", b.Len())
	}

	want := []Chunk{
		{Steps: 2, Lanes: 2, Input: []int{1, 5, 2, 6}, Target: []int{2, 6, 3, 7}},
		{Steps: 2, Lanes: 2, Input: []int{3, 7, 4, 8}, Target: []int{4, 8, 5, 9}},
	}
	for i, got := range b.All() {
		w := want[i]
		if got.Steps != w.Steps || got.Lanes != w.Lanes {
			t.Fatalf("chunk %d: unexpected shape [%d,%d]", i, got.Steps, got.Lanes)
		}
		if !slices.Equal(got.Input, w.Input) {
			t.Fatalf("chunk %d input: got %v want %v", i, got.Input, w.Input)
		}
		if !slices.Equal(got.Target, w.Target) {
			t.Fatalf("chunk %d target: got %v want %v", i, got.Target, w.Target)
		}
	}
}

func TestBPTTRoundTripProperties(t *testing.T) {
	t.Parallel()
	for n := 0; n <= 40; n++ {
		for batchSize := 1; batchSize <= 5; batchSize++ {
			for bpttLen := 1; bpttLen <= 6; bpttLen++ {
				checkBPTT(t, seqStream(n), bpttLen, batchSize)
			}
		}
	}
}

func checkBPTT(t *testing.T, s Stream, bpttLen, batchSize int) {
	t.Helper()
	b, err := NewBPTT(s, bpttLen, batchSize)
	if err != nil {
		t.Fatalf("NewBPTT(%d,%d,%d): %v", len(s), bpttLen, batchSize, err)
	}
	laneLen := 0
	if len(s) > batchSize {
		laneLen = (len(s) - 1) / batchSize
	}
	if b.LaneLen() != laneLen {
		t.Fatalf("L=%d b=%d: lane length got %d want %d", len(s), batchSize, b.LaneLen(), laneLen)
	}

	inputs := make([][]int, batchSize)
	targets := make([][]int, batchSize)
	chunks := 0
	for i, c := range b.All() {
		if i != chunks {
			t.Fatalf("chunk index got %d want %d", i, chunks)
		}
		chunks++
		if c.Steps > bpttLen || c.Steps < 1 {
			t.Fatalf("chunk %d has %d steps with bptt %d", i, c.Steps, bpttLen)
		}
		if c.Steps < bpttLen && i != b.Len()-1 {
			t.Fatalf("short chunk %d is not the last of %d", i, b.Len())
		}
		for lane := range batchSize {
			inputs[lane] = append(inputs[lane], c.InputLane(lane)...)
			targets[lane] = append(targets[lane], c.TargetLane(lane)...)
		}
	}
	if chunks != b.Len() {
		t.Fatalf("All yielded %d chunks, Len is %d", chunks, b.Len())
	}

	var flat []int
	for lane := range batchSize {
		flat = append(flat, inputs[lane]...)
		in, tg := inputs[lane], targets[lane]
		for step := 0; step+1 < len(in); step++ {
			if tg[step] != in[step+1] {
				t.Fatalf("L=%d b=%d k=%d lane %d step %d: target %d != next input %d",
					len(s), batchSize, bpttLen, lane, step, tg[step], in[step+1])
			}
		}
		if len(tg) > 0 {
			next := s[(lane+1)*laneLen]
			if tg[len(tg)-1] != next {
				t.Fatalf("lane %d last target got %d want %d", lane, tg[len(tg)-1], next)
			}
		}
	}
	if want := []int(s[:batchSize*laneLen]); len(want) > 0 && !slices.Equal(flat, want) {
		t.Fatalf("L=%d b=%d k=%d: reconstructed %v want %v", len(s), batchSize, bpttLen, flat, want)
	}
	if len(flat) != b.Tokens() {
		t.Fatalf("reconstructed %d tokens, Tokens() is %d", len(flat), b.Tokens())
	}
}

func TestBPTTRestartable(t *testing.T) {
	t.Parallel()
	b, err := NewBPTT(seqStream(23), 3, 2)
	if err != nil {
		t.Fatalf("NewBPTT: %v", err)
	}
	var first, second []int
	for _, c := range b.All() {
		first = append(first, c.Input...)
	}
	for _, c := range b.All() {
		second = append(second, c.Input...)
	}
	if !slices.Equal(first, second) {
		t.Fatalf("second pass differs: %v vs %v", first, second)
	}
}

func TestBPTTChunkOutOfRange(t *testing.T) {
	t.Parallel()
	b, err := NewBPTT(seqStream(9), 2, 2)
	if err != nil {
		t.Fatalf("NewBPTT: %v", err)
	}
	for _, i := range []int{-1, 2, 10} {
		if _, err := b.Chunk(i); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Chunk(%d): expected ErrOutOfRange, got %v", i, err)
		}
	}
}

func TestBPTTEarlyBreak(t *testing.T) {
	t.Parallel()
	b, err := NewBPTT(seqStream(50), 2, 1)
	if err != nil {
		t.Fatalf("NewBPTT: %v", err)
	}
	seen := 0
	for range b.All() {
		seen++
		if seen == 3 {
			break
		}
	}
	if seen != 3 {
		t.Fatalf("unexpected chunks seen: got %d want 3", seen)
	}
}

func TestStreamValidate(t *testing.T) {
	t.Parallel()
	if err := (Stream{0, 1, 2}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Stream{0, -1, 2}).Validate(); !errors.Is(err, ErrNegativeToken) {
		t.Fatalf("expected ErrNegativeToken, got %v", err)
	}
}

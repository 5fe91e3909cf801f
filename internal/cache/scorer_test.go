package cache

import (
	"errors"
	"math"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"zero window", Config{Window: 0, Theta: 1, Lambda: 0.5, Capacity: 1}, false},
		{"zero theta", Config{Window: 1, Theta: 0, Lambda: 0.5, Capacity: 1}, false},
		{"negative theta", Config{Window: 1, Theta: -1, Lambda: 0.5, Capacity: 1}, false},
		{"nan theta", Config{Window: 1, Theta: math.NaN(), Lambda: 0.5, Capacity: 1}, false},
		{"lambda above one", Config{Window: 1, Theta: 1, Lambda: 1.01, Capacity: 1}, false},
		{"negative lambda", Config{Window: 1, Theta: 1, Lambda: -0.1, Capacity: 1}, false},
		{"nan lambda", Config{Window: 1, Theta: 1, Lambda: math.NaN(), Capacity: 1}, false},
		{"capacity below window", Config{Window: 3, Theta: 1, Lambda: 0.5, Capacity: 2}, false},
		{"lambda bounds", Config{Window: 1, Theta: 1, Lambda: 1, Capacity: 5}, true},
	}
	for _, tc := range tests {
		err := tc.cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
		if _, err := NewScorer(tc.cfg); (err == nil) != tc.ok {
			t.Errorf("%s: NewScorer error = %v", tc.name, err)
		}
	}
}

func TestBlendEmptyHistory(t *testing.T) {
	t.Parallel()
	cfg := Config{Window: 2, Theta: 0.5, Lambda: 0.3, Capacity: 4}
	s, err := NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	probs := []float64{0.1, 0.2, 0.3, 0.4}
	for y, p := range probs {
		got, err := s.Blend([]float64{1, 2}, probs, y)
		if err != nil {
			t.Fatalf("Blend: %v", err)
		}
		if want := (1 - cfg.Lambda) * p; math.Abs(got-want) > 1e-15 {
			t.Fatalf("token %d: got %v want %v", y, got, want)
		}
	}
}

func TestBlendKnownValue(t *testing.T) {
	t.Parallel()
	s, err := NewScorer(Config{Window: 2, Theta: 1, Lambda: 0.5, Capacity: 2})
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	probs := []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0, 0}
	if _, err := s.Step([]float64{1, 0}, probs, 3); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := s.Step([]float64{0, 1}, probs, 5); err != nil {
		t.Fatalf("Step: %v", err)
	}

	e := math.E
	got, err := s.Blend([]float64{1, 0}, probs, 3)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	if want := 0.5*0.2 + 0.5*e/(e+1); math.Abs(got-want) > 1e-12 {
		t.Fatalf("token 3: got %v want %v", got, want)
	}
	got, _ = s.Blend([]float64{1, 0}, probs, 5)
	if want := 0.5 * 1 / (e + 1); math.Abs(got-want) > 1e-12 {
		t.Fatalf("token 5: got %v want %v", got, want)
	}
	got, _ = s.Blend([]float64{1, 0}, probs, 6)
	if got != 0 {
		t.Fatalf("uncached zero-probability token: got %v want 0", got)
	}
}

func TestWindowLimitsVoters(t *testing.T) {
	t.Parallel()
	s, err := NewScorer(Config{Window: 1, Theta: 1, Lambda: 1, Capacity: 3})
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	probs := make([]float64, 4)
	for i, tok := range []int{0, 1, 2} {
		if _, err := s.Step([]float64{float64(i)}, probs, tok); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if s.History().Len() != 3 {
		t.Fatalf("unexpected history length: got %d want 3", s.History().Len())
	}
	p, _ := s.CacheProbability([]float64{1}, 2)
	if p != 1 {
		t.Fatalf("only the newest entry should vote: got %v want 1", p)
	}
	p, _ = s.CacheProbability([]float64{1}, 0)
	if p != 0 {
		t.Fatalf("older entries must not vote: got %v", p)
	}
}

func TestDistributionSumsToOne(t *testing.T) {
	t.Parallel()
	s, _ := NewScorer(Config{Window: 3, Theta: 0.7, Lambda: 0.4, Capacity: 3})
	probs := []float64{0.1, 0.2, 0.3, 0.4}
	hiddens := [][]float64{{1, -1}, {0.5, 2}, {-3, 0.25}, {2, 2}}
	for i, h := range hiddens {
		if _, err := s.Step(h, probs, i%len(probs)); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	dst := make([]float64, len(probs))
	if err := s.Distribution(dst, []float64{0.3, -0.2}, probs); err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	var sum float64
	for y, p := range dst {
		sum += p
		b, _ := s.Blend([]float64{0.3, -0.2}, probs, y)
		if math.Abs(b-p) > 1e-12 {
			t.Fatalf("token %d: Distribution %v Blend %v", y, p, b)
		}
		if p <= 0 || p >= 1 {
			t.Fatalf("token %d: probability %v outside (0,1)", y, p)
		}
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("distribution sums to %v", sum)
	}
}

func TestStepAccumulatesLoss(t *testing.T) {
	t.Parallel()
	s, _ := NewScorer(Config{Window: 2, Theta: 1, Lambda: 0.25, Capacity: 2})
	probs := []float64{0.5, 0.25, 0.25}
	var want float64
	prev := 0.0
	for i, tok := range []int{0, 1, 0, 2, 0} {
		h := []float64{float64(i), 1}
		p, err := s.Step(h, probs, tok)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if p <= 0 || p >= 1 {
			t.Fatalf("step %d: probability %v outside (0,1)", i, p)
		}
		want -= math.Log(p)
		if s.Loss() < prev {
			t.Fatalf("loss decreased at step %d", i)
		}
		prev = s.Loss()
	}
	if math.Abs(s.Loss()-want) > 1e-12 {
		t.Fatalf("unexpected loss: got %v want %v", s.Loss(), want)
	}
	if s.Steps() != 5 {
		t.Fatalf("unexpected steps: got %d want 5", s.Steps())
	}
	if ppl := s.Perplexity(); math.Abs(ppl-math.Exp(want/5)) > 1e-9 {
		t.Fatalf("unexpected perplexity: %v", ppl)
	}

	s.Reset()
	if s.Loss() != 0 || s.Steps() != 0 || s.History().Len() != 0 || s.Perplexity() != 1 {
		t.Fatalf("Reset did not clear the scorer")
	}
}

func TestScorerDeterministic(t *testing.T) {
	t.Parallel()
	run := func() []float64 {
		s, _ := NewScorer(Config{Window: 3, Theta: 0.662, Lambda: 0.1279, Capacity: 5})
		probs := []float64{0.05, 0.15, 0.3, 0.5}
		var out []float64
		for i := range 20 {
			h := []float64{math.Sin(float64(i)), math.Cos(float64(i) * 0.7), float64(i%3) - 1}
			p, err := s.Step(h, probs, (i*7)%4)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			out = append(out, p)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("step %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStepZeroProbabilityStaysFinite(t *testing.T) {
	t.Parallel()
	s, _ := NewScorer(Config{Window: 1, Theta: 1, Lambda: 0, Capacity: 1})
	if _, err := s.Step([]float64{1}, []float64{1, 0}, 1); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if math.IsInf(s.Loss(), 0) || math.IsNaN(s.Loss()) {
		t.Fatalf("loss is not finite: %v", s.Loss())
	}
}

func TestBlendErrors(t *testing.T) {
	t.Parallel()
	s, _ := NewScorer(DefaultConfig())
	if _, err := s.Blend([]float64{1}, []float64{0.5, 0.5}, 2); !errors.Is(err, ErrTokenRange) {
		t.Fatalf("expected ErrTokenRange, got %v", err)
	}
	if _, err := s.Step([]float64{1, 1}, []float64{0.5, 0.5}, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if _, err := s.Blend([]float64{1}, []float64{0.5, 0.5}, 0); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}

package cache

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinProbability floors blended probabilities before taking logs, so a
// zero model probability on an uncached token costs a large finite loss.
const MinProbability = 1e-12

// Config holds the continuous cache hyperparameters.
type Config struct {
	// Window is the number of most recent entries that vote.
	Window int `yaml:"window" json:"window"`
	// Theta scales dot-product similarity before the softmax.
	Theta float64 `yaml:"theta" json:"theta"`
	// Lambda is the weight of the cache distribution in the blend.
	Lambda float64 `yaml:"lambda" json:"lambda"`
	// Capacity bounds the history; it must be at least Window.
	Capacity int `yaml:"capacity" json:"capacity"`
}

// DefaultConfig returns the hyperparameters tuned for a 2-entry cache over
// an AWD-LSTM on WikiText-2.
func DefaultConfig() Config {
	return Config{
		Window:   2,
		Theta:    0.662,
		Lambda:   0.1279,
		Capacity: 2,
	}
}

func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("%w: window must be >= 1, got %d", ErrInvalidConfig, c.Window)
	}
	if !(c.Theta > 0) || math.IsInf(c.Theta, 0) {
		return fmt.Errorf("%w: theta must be > 0, got %v", ErrInvalidConfig, c.Theta)
	}
	if !(c.Lambda >= 0 && c.Lambda <= 1) {
		return fmt.Errorf("%w: lambda must be in [0,1], got %v", ErrInvalidConfig, c.Lambda)
	}
	if c.Capacity < c.Window {
		return fmt.Errorf("%w: capacity %d smaller than window %d", ErrInvalidConfig, c.Capacity, c.Window)
	}
	return nil
}

// Scorer blends a model's next-token distribution with a kernel-weighted
// vote over recent hidden states and keeps the running loss of one
// evaluation pass. A Scorer is not safe for concurrent use.
type Scorer struct {
	cfg     Config
	history *History
	scores  []float64
	loss    float64
	steps   int
}

func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	history, err := NewHistory(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:     cfg,
		history: history,
		scores:  make([]float64, 0, cfg.Window),
	}, nil
}

func (s *Scorer) Config() Config { return s.cfg }
func (s *Scorer) History() *History { return s.history }
func (s *Scorer) Loss() float64 { return s.loss }
func (s *Scorer) Steps() int { return s.steps }

// Perplexity is exp of the mean loss, or 1 before any step.
func (s *Scorer) Perplexity() float64 {
	if s.steps == 0 {
		return 1
	}
	return math.Exp(s.loss / float64(s.steps))
}

// Reset clears the history and the accumulated loss for a new pass.
func (s *Scorer) Reset() {
	s.history.Reset()
	s.loss = 0
	s.steps = 0
}

// weights fills s.scores with the normalized kernel weights of the voting
// window and returns the window size. It returns 0 for an empty history.
func (s *Scorer) weights(hidden []float64) (int, error) {
	n := min(s.cfg.Window, s.history.Len())
	if n == 0 {
		return 0, nil
	}
	if len(hidden) != s.history.Dim() {
		return 0, fmt.Errorf("%w: got %d want %d", ErrDimension, len(hidden), s.history.Dim())
	}
	s.scores = s.scores[:0]
	for h := range s.history.Recent(n) {
		s.scores = append(s.scores, s.cfg.Theta*floats.Dot(hidden, h))
	}
	lse := floats.LogSumExp(s.scores)
	for i, v := range s.scores {
		s.scores[i] = math.Exp(v - lse)
	}
	return n, nil
}

// CacheProbability is the cache's probability of tok given hidden: the
// summed weight of every voting entry whose next token was tok.
func (s *Scorer) CacheProbability(hidden []float64, tok int) (float64, error) {
	n, err := s.weights(hidden)
	if err != nil || n == 0 {
		return 0, err
	}
	var p float64
	i := 0
	for _, t := range s.history.Recent(n) {
		if t == tok {
			p += s.scores[i]
		}
		i++
	}
	return p, nil
}

// Blend returns (1-lambda)*probs[tok] + lambda*p_cache(tok) without touching
// the history or the loss.
func (s *Scorer) Blend(hidden, probs []float64, tok int) (float64, error) {
	if tok < 0 || tok >= len(probs) {
		return 0, fmt.Errorf("%w: token %d with vocabulary %d", ErrTokenRange, tok, len(probs))
	}
	pc, err := s.CacheProbability(hidden, tok)
	if err != nil {
		return 0, err
	}
	return (1-s.cfg.Lambda)*probs[tok] + s.cfg.Lambda*pc, nil
}

// Distribution writes the full blended distribution into dst, which must be
// as long as probs. Cached tokens outside the vocabulary are ignored.
func (s *Scorer) Distribution(dst, hidden, probs []float64) error {
	if len(dst) != len(probs) {
		return fmt.Errorf("%w: dst %d probs %d", ErrTokenRange, len(dst), len(probs))
	}
	n, err := s.weights(hidden)
	if err != nil {
		return err
	}
	for i, p := range probs {
		dst[i] = (1 - s.cfg.Lambda) * p
	}
	i := 0
	for _, t := range s.history.Recent(n) {
		if t >= 0 && t < len(dst) {
			dst[t] += s.cfg.Lambda * s.scores[i]
		}
		i++
	}
	return nil
}

// Step scores the observed next token tok, adds its negative log blended
// probability to the running loss, then caches (hidden, tok).
func (s *Scorer) Step(hidden, probs []float64, tok int) (float64, error) {
	p, err := s.Blend(hidden, probs, tok)
	if err != nil {
		return 0, err
	}
	if err := s.history.Push(hidden, tok); err != nil {
		return 0, err
	}
	s.loss -= math.Log(max(p, MinProbability))
	s.steps++
	return p, nil
}

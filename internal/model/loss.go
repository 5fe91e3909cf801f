package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LossFunc returns the loss of predicting target from logits.
type LossFunc func(logits []float64, target int) float64

// CrossEntropy is the negative log-softmax of the target logit.
func CrossEntropy(logits []float64, target int) float64 {
	return floats.LogSumExp(logits) - logits[target]
}

// Softmax writes the softmax of logits into dst and returns dst.
func Softmax(dst, logits []float64) []float64 {
	if len(logits) == 0 {
		return dst[:0]
	}
	lse := floats.LogSumExp(logits)
	for i, v := range logits {
		dst[i] = math.Exp(v - lse)
	}
	return dst[:len(logits)]
}

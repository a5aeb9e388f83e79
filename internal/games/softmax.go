package games

import "math"

// MaskedSoftmax computes a softmax over logits restricted to legalActions,
// zeroing every illegal action's probability. Falls back to a uniform
// distribution over legalActions if every legal logit underflows to zero.
func MaskedSoftmax(logits []float64, legalActions []int, actionSize int) []float64 {
	probs := make([]float64, actionSize)
	if len(legalActions) == 0 {
		return probs
	}

	legalLogits := make([]float64, len(legalActions))
	maxLogit := math.Inf(-1)
	for i, a := range legalActions {
		legalLogits[i] = logits[a]
		if legalLogits[i] > maxLogit {
			maxLogit = legalLogits[i]
		}
	}

	exp := make([]float64, len(legalActions))
	var denom float64
	for i, v := range legalLogits {
		exp[i] = math.Exp(v - maxLogit)
		denom += exp[i]
	}

	if denom <= 0 {
		uniform := 1.0 / float64(len(legalActions))
		for _, a := range legalActions {
			probs[a] = uniform
		}
		return probs
	}

	for i, a := range legalActions {
		probs[a] = exp[i] / denom
	}
	return probs
}

// NormalizeProbs rescales p to sum to 1, returning an all-zero vector if p
// sums to zero or less.
func NormalizeProbs(p []float64) []float64 {
	var total float64
	for _, v := range p {
		total += v
	}
	out := make([]float64, len(p))
	if total <= 0 {
		return out
	}
	for i, v := range p {
		out[i] = v / total
	}
	return out
}

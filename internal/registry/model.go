// Package registry holds the trainable game evaluator behind a per-game
// mutex-guarded slot, mirroring how the teacher guards its shared observer
// state: small, serialized critical sections around otherwise-expensive work.
//
// There is no autograd engine here — each Model is a single linear
// policy/value/latent head over flattened state planes, with hand-derived
// gradients for its one fixed loss. That keeps training a closed-form,
// allocation-cheap update (the same spirit as internal/forecaster's ridge
// solve) rather than building a general-purpose differentiable graph.
package registry

import (
	"math"
	"math/rand"

	"github.com/arrowlake/numerion/internal/encoding"
	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/replay"
)

// Model is a linear evaluator: logits = PolicyW·x + PolicyB, value =
// sigmoid(ValueW·x + ValueB), latent = LatentW·x.
type Model struct {
	GameID     string
	FeatureDim int
	ActionSize int
	LatentDim  int

	PolicyW [][]float64 // ActionSize x FeatureDim
	PolicyB []float64   // ActionSize
	ValueW  []float64   // FeatureDim
	ValueB  float64
	LatentW [][]float64 // LatentDim x FeatureDim
}

// TrainMetrics reports the loss components of one gradient step.
type TrainMetrics struct {
	LossTotal  float64
	LossPolicy float64
	LossValue  float64
}

const defaultLatentDim = 16

// NewModel builds a freshly (small-randomly) initialized model sized for
// spec, seeded from rng for reproducibility.
func NewModel(spec games.Spec, rng *rand.Rand) *Model {
	featureDim := 5 * spec.Rows * spec.Cols
	m := &Model{
		GameID:     spec.GameID,
		FeatureDim: featureDim,
		ActionSize: spec.ActionSize,
		LatentDim:  defaultLatentDim,
		PolicyW:    make([][]float64, spec.ActionSize),
		PolicyB:    make([]float64, spec.ActionSize),
		ValueW:     make([]float64, featureDim),
		LatentW:    make([][]float64, defaultLatentDim),
	}
	for a := range m.PolicyW {
		m.PolicyW[a] = randomSmallVector(rng, featureDim)
	}
	for i := range m.ValueW {
		m.ValueW[i] = rng.NormFloat64() * 0.01
	}
	for l := range m.LatentW {
		m.LatentW[l] = randomSmallVector(rng, featureDim)
	}
	return m
}

func randomSmallVector(rng *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * 0.01
	}
	return v
}

func flattenPlanes(planes [][][]float64) []float64 {
	var out []float64
	for _, plane := range planes {
		for _, row := range plane {
			out = append(out, row...)
		}
	}
	return out
}

// Evaluate runs the forward pass for one feature vector.
func (m *Model) Evaluate(features []float64) (logits []float64, value float64, latent []float64) {
	logits = make([]float64, m.ActionSize)
	for a := range logits {
		logits[a] = dot(m.PolicyW[a], features) + m.PolicyB[a]
	}
	value = sigmoid(dot(m.ValueW, features) + m.ValueB)
	latent = make([]float64, m.LatentDim)
	for l := range latent {
		latent[l] = dot(m.LatentW[l], features)
	}
	return logits, value, latent
}

// EvaluateState adapts Evaluate to the mcts.EvaluateFn shape by encoding
// state into planes first.
func (m *Model) EvaluateState(game games.Game, state games.State) ([]float64, float64, []float64) {
	planes := flattenPlanes(encoding.EncodeState(game, state))
	return m.Evaluate(planes)
}

// TrainStep runs one SGD update over a batch of samples against a combined
// policy cross-entropy + value MSE loss, with gradients derived directly
// from this model's fixed linear-head shape.
func (m *Model) TrainStep(batch []replay.ReplaySample, lr float64) TrainMetrics {
	if len(batch) == 0 {
		return TrainMetrics{}
	}
	n := float64(len(batch))

	policyGrad := make([][]float64, m.ActionSize)
	for a := range policyGrad {
		policyGrad[a] = make([]float64, m.FeatureDim)
	}
	policyBiasGrad := make([]float64, m.ActionSize)
	valueGrad := make([]float64, m.FeatureDim)
	var valueBiasGrad float64
	var lossPolicy, lossValue float64

	for _, sample := range batch {
		features := flattenPlanes(sample.StatePlanes)
		logits, value, _ := m.Evaluate(features)
		probs := softmax(logits)

		for a := range logits {
			lossPolicy -= safeTarget(sample.TargetPi, a) * math.Log(clampProb(probs[a]))
			grad := probs[a] - safeTarget(sample.TargetPi, a)
			policyBiasGrad[a] += grad
			for i, x := range features {
				policyGrad[a][i] += grad * x
			}
		}

		diff := value - sample.TargetZ
		lossValue += diff * diff
		valueDeriv := 2 * diff * value * (1 - value) // d(sigmoid)/dz chain rule folded in
		valueBiasGrad += valueDeriv
		for i, x := range features {
			valueGrad[i] += valueDeriv * x
		}
	}

	for a := range m.PolicyW {
		m.PolicyB[a] -= lr * policyBiasGrad[a] / n
		for i := range m.PolicyW[a] {
			m.PolicyW[a][i] -= lr * policyGrad[a][i] / n
		}
	}
	m.ValueB -= lr * valueBiasGrad / n
	for i := range m.ValueW {
		m.ValueW[i] -= lr * valueGrad[i] / n
	}

	lossPolicy /= n
	lossValue /= n
	return TrainMetrics{LossTotal: lossPolicy + lossValue, LossPolicy: lossPolicy, LossValue: lossValue}
}

// Clone deep-copies a model's weights.
func (m *Model) Clone() *Model {
	out := &Model{
		GameID:     m.GameID,
		FeatureDim: m.FeatureDim,
		ActionSize: m.ActionSize,
		LatentDim:  m.LatentDim,
		PolicyW:    make([][]float64, len(m.PolicyW)),
		PolicyB:    append([]float64(nil), m.PolicyB...),
		ValueW:     append([]float64(nil), m.ValueW...),
		ValueB:     m.ValueB,
		LatentW:    make([][]float64, len(m.LatentW)),
	}
	for i, row := range m.PolicyW {
		out.PolicyW[i] = append([]float64(nil), row...)
	}
	for i, row := range m.LatentW {
		out.LatentW[i] = append([]float64(nil), row...)
	}
	return out
}

func dot(w, x []float64) float64 {
	var sum float64
	for i, v := range w {
		sum += v * x[i]
	}
	return sum
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var denom float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		denom += out[i]
	}
	if denom <= 0 {
		return out
	}
	for i := range out {
		out[i] /= denom
	}
	return out
}

func safeTarget(pi []float64, action int) float64 {
	if action < 0 || action >= len(pi) {
		return 0
	}
	return pi[action]
}

func clampProb(p float64) float64 {
	const eps = 1e-9
	if p < eps {
		return eps
	}
	return p
}

package forecaster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRidgeFitsExactLinearRelation(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}}
	y := []float64{3, 5, 7, 9, 11} // y = 1 + 2x
	r := NewRidge(1e-6)
	require.NoError(t, r.Fit(x, y))
	pred := r.Predict(x)
	assert.InDelta(t, 0.0, RMSE(y, pred), 0.05)
}

func TestRidgePredictPanicsBeforeFit(t *testing.T) {
	r := NewRidge(1.0)
	assert.Panics(t, func() { r.Predict([][]float64{{1}}) })
}

func TestRidgeSingularGramFallsBackToPseudoInverse(t *testing.T) {
	// Duplicate columns with zero alpha make the Gram matrix singular; Fit
	// falls back to the pseudo-inverse solve instead of returning an error.
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}}
	y := []float64{1, 2, 3}
	r := NewRidge(0)
	require.NoError(t, r.Fit(x, y))
	assert.InDelta(t, 0.0, RMSE(y, r.Predict(x)), 1e-6)
}

func TestRMSEAndMAEZeroWhenPerfect(t *testing.T) {
	y := []float64{1, 2, 3}
	assert.Equal(t, 0.0, RMSE(y, y))
	assert.Equal(t, 0.0, MAE(y, y))
}

package evaluator

import (
	"math"
	"testing"

	"github.com/arrowlake/numerion/internal/cv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticClose(n int) []float64 {
	close := make([]float64, n)
	price := 100.0
	for i := range close {
		price += 0.05
		close[i] = price
	}
	return close
}

func TestMakeTargetShiftsForward(t *testing.T) {
	close := []float64{1, 2, 3, 4, 5}
	y := MakeTarget(close, 2)
	assert.Equal(t, 3.0, y[0])
	assert.Equal(t, 4.0, y[1])
	assert.Equal(t, 5.0, y[2])
	assert.True(t, math.IsNaN(y[3]))
	assert.True(t, math.IsNaN(y[4]))
}

func TestMakeTargetHorizonBeyondLengthIsAllNaN(t *testing.T) {
	y := MakeTarget([]float64{1, 2, 3}, 10)
	for _, v := range y {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRollingStdFastNonNegative(t *testing.T) {
	out := RollingStdFast([]float64{1, -2, 3, -4, 5, -6}, 3)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestBuildBaselineMatrixHasThreeColumns(t *testing.T) {
	close := syntheticClose(100)
	m := BuildBaselineMatrix(close)
	require.Len(t, m, 100)
	assert.Len(t, m[50], 3)
	for _, v := range m[0] {
		assert.False(t, math.IsNaN(v))
	}
}

func TestEvaluateCandidateHorizonsReturnsBestAcrossSweep(t *testing.T) {
	close := syntheticClose(2000)
	folds, err := cv.BuildPurgedWalkForwardFolds(2000, 4, 20, 5, 5)
	require.NoError(t, err)

	feature := make([][]float64, len(close))
	for i, c := range close {
		feature[i] = []float64{c}
	}

	cache := NewCache()
	result := EvaluateCandidateHorizons("const-feature", feature, close, folds, 1, 20, 5, 3, cache, 0, 0)
	assert.Contains(t, result.AllScores, result.BestHorizon)
	assert.GreaterOrEqual(t, result.BestScore.CompositeError, 0.0)
}

func TestEvaluateCandidateHorizonsCachesRepeatedCalls(t *testing.T) {
	close := syntheticClose(2000)
	folds, err := cv.BuildPurgedWalkForwardFolds(2000, 4, 20, 5, 5)
	require.NoError(t, err)
	feature := make([][]float64, len(close))
	for i, c := range close {
		feature[i] = []float64{c}
	}
	cache := NewCache()
	first := EvaluateCandidateHorizons("k", feature, close, folds, 1, 10, 5, 2, cache, 0, 0)
	second := EvaluateCandidateHorizons("k", feature, close, folds, 1, 10, 5, 2, cache, 0, 0)
	assert.Equal(t, first.BestScore.CompositeError, second.BestScore.CompositeError)
}

func TestEvaluateFeatureComboInsufficientDataReturnsDegenerate(t *testing.T) {
	close := syntheticClose(50)
	folds := []cv.Fold{{TrainIdx: []int{0, 1}, ValIdx: []int{2, 3}}}
	feature := make([][]float64, len(close))
	for i, c := range close {
		feature[i] = []float64{c}
	}
	score := EvaluateFeatureCombo("combo", feature, close, folds, 5)
	assert.Equal(t, degenerateScore, score.CompositeError)
}

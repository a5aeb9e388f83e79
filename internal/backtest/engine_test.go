package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunFromForecastsEmptyYieldsZeroResult(t *testing.T) {
	result := RunFromForecasts(nil, nil, nil, 7, 5, 0.001)
	assert.Equal(t, 0.0, result.PnLTotal)
	assert.Equal(t, 0.0, result.MaxDrawdown)
	assert.Equal(t, 0.0, result.Turnover)
	assert.Empty(t, result.EquityCurve)
}

func TestRunFromForecastsFirstBarHasNoPosition(t *testing.T) {
	yTrue := []float64{101, 102, 103}
	yPred := []float64{105, 106, 107}
	closeRef := []float64{100, 101, 102}
	result := RunFromForecasts(yTrue, yPred, closeRef, 0, 0, 0.001)
	// position_shifted[0] is always 0, so the first bar earns no strategy return
	// beyond the cost of entering its own position.
	assert.InDelta(t, 1.0, result.EquityCurve[0], 1e-9)
}

func TestRunFromForecastsZeroCostLongBiasIsProfitable(t *testing.T) {
	yTrue := []float64{101, 102.5, 104, 105.5, 107}
	yPred := []float64{103, 104, 105, 106, 107}
	closeRef := []float64{100, 101, 102.5, 104, 105.5}
	result := RunFromForecasts(yTrue, yPred, closeRef, 0, 0, 0.001)
	assert.Greater(t, result.PnLTotal, 0.0)
}

func TestRunFromForecastsHighCostErodesReturn(t *testing.T) {
	yTrue := []float64{101, 99, 102, 98, 103}
	yPred := []float64{103, 97, 104, 96, 105}
	closeRef := []float64{100, 101, 99, 102, 98}
	cheap := RunFromForecasts(yTrue, yPred, closeRef, 0, 0, 0.001)
	expensive := RunFromForecasts(yTrue, yPred, closeRef, 500, 500, 0.001)
	assert.Less(t, expensive.PnLTotal, cheap.PnLTotal)
}

func TestRunFromForecastsMaxDrawdownIsNonPositive(t *testing.T) {
	yTrue := []float64{101, 95, 104, 90, 103}
	yPred := []float64{103, 93, 106, 88, 105}
	closeRef := []float64{100, 101, 95, 104, 90}
	result := RunFromForecasts(yTrue, yPred, closeRef, 7, 5, 0.001)
	assert.LessOrEqual(t, result.MaxDrawdown, 0.0)
}

package search

import (
	"testing"
	"time"

	"github.com/arrowlake/numerion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price += 0.05
		bars[i] = domain.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     price - 0.02,
			High:     price + 0.05,
			Low:      price - 0.05,
			Close:    price,
			Volume:   1000 + float64(i%50),
		}
	}
	return bars
}

func testConfig() domain.RunConfig {
	return domain.RunConfig{
		TopNSymbols:    1,
		Symbols:        []string{"BTCUSDT"},
		Timeframes:     []string{"1h"},
		HistoryWindows: []int{700},
		Horizon:        domain.HorizonConfig{Min: 3, Max: 40, CoarseStep: 8, RefineRadius: 4},
		CV:             domain.CVConfig{Folds: 3, PurgeBars: 5, EmbargoBars: 5},
		Search: domain.SearchConfig{
			CandidatePoolSize:          12,
			StageAKeep:                 8,
			StageBKeep:                 4,
			TuningTrials:               2,
			MaxComboSize:               2,
			NoveltySimilarityThreshold: 0.82,
			CollinearityThreshold:      0.94,
		},
		Backtest:      domain.BacktestConfig{FeeBps: 7, SlippageBps: 5, SignalThreshold: 0.001},
		BudgetMinutes: 30,
		RandomSeed:    42,
	}
}

func TestRunProducesSurvivorsAndCombo(t *testing.T) {
	bars := syntheticBars(700)
	outcome, err := Run(bars, "BTCUSDT", "1h", testConfig(), nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.BestCandidates)
	assert.NotEmpty(t, outcome.BestCombo)
	assert.LessOrEqual(t, len(outcome.BestCombo), testConfig().Search.MaxComboSize)
	assert.GreaterOrEqual(t, outcome.ComboScore.CompositeError, 0.0)
}

func TestRunIsDeterministicForSameSeed(t *testing.T) {
	bars := syntheticBars(700)
	a, err := Run(bars, "ETHUSDT", "1h", testConfig(), nil, "")
	require.NoError(t, err)
	b, err := Run(bars, "ETHUSDT", "1h", testConfig(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, a.BestCombo[0].Expression(), b.BestCombo[0].Expression())
	assert.Equal(t, a.ComboScore.CompositeError, b.ComboScore.CompositeError)
}

func TestRunRejectsInsufficientHistory(t *testing.T) {
	bars := syntheticBars(50)
	_, err := Run(bars, "BTCUSDT", "1h", testConfig(), nil, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientData))
}

func TestGreedyComboGateRejectsLowHitRate(t *testing.T) {
	bars := syntheticBars(700)
	gate := NewGreedyComboGate()
	outcome, err := Run(bars, "BTCUSDT", "1h", testConfig(), gate, "directional_hit_rate > 1.0")
	require.NoError(t, err)
	// an impossible gate leaves the combo at its single seed candidate.
	assert.Len(t, outcome.BestCombo, 1)
}

func TestStableSeedSuffixIsDeterministicAndBounded(t *testing.T) {
	a := stableSeedSuffix("BTCUSDT", "1h")
	b := stableSeedSuffix("BTCUSDT", "1h")
	c := stableSeedSuffix("ETHUSDT", "1h")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 10000)
}

package ranking

import (
	"testing"

	"github.com/arrowlake/numerion/internal/backtest"
	"github.com/arrowlake/numerion/internal/evaluator"
	"github.com/arrowlake/numerion/internal/exprdsl"
	"github.com/arrowlake/numerion/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateResult(id string, err float64) search.CandidateResult {
	cand := exprdsl.Candidate{IndicatorID: id, Expr: exprdsl.Field{Name: "close"}}
	return search.CandidateResult{
		Candidate:  cand,
		Evaluation: evaluator.CandidateEvaluation{BestHorizon: 10, BestScore: evaluator.HorizonScore{CompositeError: err}},
	}
}

func outcomeFor(symbol, timeframe string, comboExpr string, compositeError float64) search.Outcome {
	combo := []exprdsl.Candidate{{IndicatorID: "c1", Expr: exprdsl.Field{Name: comboExpr}}}
	return search.Outcome{
		Symbol:    symbol,
		Timeframe: timeframe,
		BestCandidates: []search.CandidateResult{
			candidateResult("a", compositeError),
			candidateResult("b", compositeError+0.01),
		},
		BestCombo:  combo,
		ComboScore: evaluator.HorizonScore{Horizon: 10, CompositeError: compositeError, DirectionalHitRate: 0.55},
	}
}

// "close" scores 0.31 + 0.05/2 = 0.335 and "volume" scores 0.10 + 0.05/1 = 0.15
// (every horizon is 10, so the spread penalty is 0): the lower score wins.
func TestBuildResultSummaryPicksLowestPenalizedCombo(t *testing.T) {
	outcomes := []search.Outcome{
		outcomeFor("BTCUSDT", "1h", "close", 0.30),
		outcomeFor("ETHUSDT", "1h", "close", 0.32),
		outcomeFor("SOLUSDT", "1h", "volume", 0.10),
	}
	bts := map[AssetKey]backtest.Result{
		{Symbol: "BTCUSDT", Timeframe: "1h"}: {PnLTotal: 0.1},
		{Symbol: "ETHUSDT", Timeframe: "1h"}: {PnLTotal: 0.08},
		{Symbol: "SOLUSDT", Timeframe: "1h"}: {PnLTotal: 0.2},
	}
	summary, err := BuildResultSummary("run-1", outcomes, bts)
	require.NoError(t, err)
	assert.Equal(t, "UNIVERSAL", summary.UniversalRecommendation.Symbol)
	assert.Equal(t, "volume", summary.UniversalRecommendation.IndicatorCombo[0].Expression)
	assert.Len(t, summary.PerAssetRecommendations, 3)
}

func TestBuildResultSummarySortsPerAssetByCompositeError(t *testing.T) {
	outcomes := []search.Outcome{
		outcomeFor("BTCUSDT", "1h", "close", 0.5),
		outcomeFor("ETHUSDT", "1h", "close", 0.1),
	}
	summary, err := BuildResultSummary("run-2", outcomes, nil)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", summary.PerAssetRecommendations[0].Symbol)
	assert.Equal(t, "BTCUSDT", summary.PerAssetRecommendations[1].Symbol)
}

func TestBuildResultSummaryEmptyOutcomesErrors(t *testing.T) {
	_, err := BuildResultSummary("run-3", nil, nil)
	assert.Error(t, err)
}

func TestStabilityFromOutcomeZeroWithFewerThanTwoCandidates(t *testing.T) {
	outcome := search.Outcome{BestCandidates: []search.CandidateResult{candidateResult("solo", 0.2)}}
	assert.Equal(t, 0.0, stabilityFromOutcome(outcome))
}

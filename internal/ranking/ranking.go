// Package ranking merges per-asset search and backtest outcomes into a
// ResultSummary, choosing a single universal recommendation across assets
// that converged on the same indicator combination.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arrowlake/numerion/internal/backtest"
	"github.com/arrowlake/numerion/internal/domain"
	"github.com/arrowlake/numerion/internal/search"
)

// AssetKey identifies a backtest result by the symbol/timeframe pair it was
// run against.
type AssetKey struct {
	Symbol    string
	Timeframe string
}

// BuildResultSummary combines each symbol/timeframe's search outcome with its
// backtest result into a per-asset ScoreCard, then derives the universal
// recommendation: per-asset results are grouped by indicator combo, and the
// combo with the lowest mean composite error, penalized for low coverage and
// horizon instability (see universalRank), is chosen.
func BuildResultSummary(runID string, outcomes []search.Outcome, backtests map[AssetKey]backtest.Result) (domain.ResultSummary, error) {
	perAsset := make([]domain.AssetRecommendation, 0, len(outcomes))

	for _, outcome := range outcomes {
		bt := backtests[AssetKey{Symbol: outcome.Symbol, Timeframe: outcome.Timeframe}]
		combo := make([]domain.IndicatorSpec, len(outcome.BestCombo))
		for i, c := range outcome.BestCombo {
			combo[i] = c.Spec()
		}
		score := domain.ScoreCard{
			NormalizedRMSE:     outcome.ComboScore.NormalizedRMSE,
			NormalizedMAE:      outcome.ComboScore.NormalizedMAE,
			CompositeError:     outcome.ComboScore.CompositeError,
			DirectionalHitRate: outcome.ComboScore.DirectionalHitRate,
			PnLTotal:           bt.PnLTotal,
			MaxDrawdown:        bt.MaxDrawdown,
			Turnover:           bt.Turnover,
			StabilityScore:     stabilityFromOutcome(outcome),
		}
		perAsset = append(perAsset, domain.AssetRecommendation{
			Symbol:         outcome.Symbol,
			Timeframe:      outcome.Timeframe,
			BestHorizon:    outcome.ComboScore.Horizon,
			IndicatorCombo: combo,
			Score:          score,
		})
	}

	universal, err := buildUniversalRecommendation(perAsset)
	if err != nil {
		return domain.ResultSummary{}, err
	}

	sorted := make([]domain.AssetRecommendation, len(perAsset))
	copy(sorted, perAsset)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Score.CompositeError < sorted[j].Score.CompositeError
	})

	return domain.ResultSummary{
		RunID:                   runID,
		UniversalRecommendation: universal,
		PerAssetRecommendations: sorted,
		GeneratedAt:             time.Now().UTC(),
	}, nil
}

// stabilityFromOutcome is 1/(std(top-5 composite errors)+1e-6); an outcome
// with fewer than two scored candidates has no meaningful spread and reports 0.
func stabilityFromOutcome(outcome search.Outcome) float64 {
	n := len(outcome.BestCandidates)
	if n > 5 {
		n = 5
	}
	if n < 2 {
		return 0.0
	}
	errors := make([]float64, n)
	for i := 0; i < n; i++ {
		errors[i] = outcome.BestCandidates[i].Evaluation.BestScore.CompositeError
	}
	return 1.0 / (stddev(errors) + 1e-6)
}

// comboStats accumulates every per-asset recommendation that settled on the
// same indicator combo, keyed by its joined expression text.
type comboStats struct {
	combo     []domain.IndicatorSpec
	errors    []float64
	horizons  []int
	rmse      []float64
	mae       []float64
	hit       []float64
	pnl       []float64
	dd        []float64
	turnover  []float64
	stability []float64
	count     int
}

type rankTuple struct {
	score    float64
	avgErr   float64
	negCount int
}

func buildUniversalRecommendation(perAsset []domain.AssetRecommendation) (domain.AssetRecommendation, error) {
	if len(perAsset) == 0 {
		return domain.AssetRecommendation{}, domain.NewRunError("", "", domain.KindEvaluationDegenerate,
			"no per-asset recommendations available", nil)
	}

	byKey := make(map[string]*comboStats)
	var order []string
	for _, rec := range perAsset {
		key := comboKey(rec.IndicatorCombo)
		stats, ok := byKey[key]
		if !ok {
			stats = &comboStats{combo: rec.IndicatorCombo}
			byKey[key] = stats
			order = append(order, key)
		}
		stats.count++
		stats.errors = append(stats.errors, rec.Score.CompositeError)
		stats.horizons = append(stats.horizons, rec.BestHorizon)
		stats.rmse = append(stats.rmse, rec.Score.NormalizedRMSE)
		stats.mae = append(stats.mae, rec.Score.NormalizedMAE)
		stats.hit = append(stats.hit, rec.Score.DirectionalHitRate)
		stats.pnl = append(stats.pnl, rec.Score.PnLTotal)
		stats.dd = append(stats.dd, rec.Score.MaxDrawdown)
		stats.turnover = append(stats.turnover, rec.Score.Turnover)
		stats.stability = append(stats.stability, rec.Score.StabilityScore)
	}

	bestKey := order[0]
	bestRank := universalRank(byKey[bestKey])
	for _, key := range order[1:] {
		rank := universalRank(byKey[key])
		if rankLess(rank, bestRank) {
			bestKey = key
			bestRank = rank
		}
	}

	stats := byKey[bestKey]
	score := domain.ScoreCard{
		NormalizedRMSE:     meanOf(stats.rmse),
		NormalizedMAE:      meanOf(stats.mae),
		CompositeError:     meanOf(stats.errors),
		DirectionalHitRate: meanOf(stats.hit),
		PnLTotal:           meanOf(stats.pnl),
		MaxDrawdown:        meanOf(stats.dd),
		Turnover:           meanOf(stats.turnover),
		StabilityScore:     meanOf(stats.stability),
	}

	return domain.AssetRecommendation{
		Symbol:         "UNIVERSAL",
		Timeframe:      "5m|1h|4h",
		BestHorizon:    int(math.Round(meanOf(intsToFloats(stats.horizons)))),
		IndicatorCombo: stats.combo,
		Score:          score,
	}, nil
}

// universalRank is (avg_err + 0.05/coverage + 0.001*std(horizons), avg_err,
// -coverage): ties on the penalized score break toward lower raw error, then
// toward broader asset coverage.
func universalRank(s *comboStats) rankTuple {
	avgErr := meanOf(s.errors)
	coveragePenalty := 1.0 / float64(s.count)
	horizonVar := stddev(intsToFloats(s.horizons))
	return rankTuple{
		score:    avgErr + 0.05*coveragePenalty + 0.001*horizonVar,
		avgErr:   avgErr,
		negCount: -s.count,
	}
}

func rankLess(a, b rankTuple) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.avgErr != b.avgErr {
		return a.avgErr < b.avgErr
	}
	return a.negCount < b.negCount
}

func comboKey(combo []domain.IndicatorSpec) string {
	exprs := make([]string, len(combo))
	for i, spec := range combo {
		exprs[i] = spec.Expression
	}
	return strings.Join(exprs, "|")
}

func meanOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := meanOf(x)
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(x)))
}

func intsToFloats(x []int) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

// Package evaluator scores indicator candidates across forecast horizons using
// purged walk-forward folds and a ridge forecaster, memoizing work across the
// coarse/refine horizon sweep and across candidates sharing a baseline matrix.
package evaluator

import (
	"fmt"
	"math"
	"sync"

	"github.com/arrowlake/numerion/internal/cv"
	"github.com/arrowlake/numerion/internal/domain"
	"github.com/arrowlake/numerion/internal/exprdsl"
	"github.com/arrowlake/numerion/internal/forecaster"
	"github.com/puzpuzpuz/xsync/v3"
)

// HorizonScore is the evaluation outcome of one candidate at one horizon,
// carrying the realized prediction vectors alongside the summary metrics so a
// caller (backtest, ranking) can recompute downstream statistics without
// re-scoring.
type HorizonScore struct {
	Horizon            int
	NormalizedRMSE     float64
	NormalizedMAE      float64
	CompositeError     float64
	DirectionalHitRate float64
	YTrue              []float64
	YPred              []float64
	CloseRef           []float64
}

func (s HorizonScore) toDomain() domain.HorizonScore {
	return domain.HorizonScore{
		Horizon:            s.Horizon,
		NormalizedRMSE:     s.NormalizedRMSE,
		NormalizedMAE:      s.NormalizedMAE,
		CompositeError:     s.CompositeError,
		DirectionalHitRate: s.DirectionalHitRate,
	}
}

// ToDomain exposes the summary-metric projection of a HorizonScore.
func (s HorizonScore) ToDomain() domain.HorizonScore { return s.toDomain() }

// CandidateEvaluation is the best-horizon result of scoring a candidate across
// a coarse-then-refine horizon sweep.
type CandidateEvaluation struct {
	BestHorizon int
	BestScore   HorizonScore
	AllScores   map[int]HorizonScore
}

const degenerateScore = 9999.0

// Cache memoizes per-(key,horizon) scores, per-horizon targets, and per-key
// augmented design matrices across an entire search run. Its maps are backed
// by xsync so concurrent Stage A/B scoring goroutines can share it safely.
type Cache struct {
	horizonScores   *xsync.MapOf[string, HorizonScore]
	targets         *xsync.MapOf[int, []float64]
	augmentedFeature *xsync.MapOf[string, [][]float64]

	baselineMu   sync.Mutex
	baseline     [][]float64
	baselineLen  int
}

// NewCache constructs an empty, concurrency-safe evaluation cache.
func NewCache() *Cache {
	return &Cache{
		horizonScores:    xsync.NewMapOf[string, HorizonScore](),
		targets:          xsync.NewMapOf[int, []float64](),
		augmentedFeature: xsync.NewMapOf[string, [][]float64](),
	}
}

func cacheKey(key string, horizon int) string {
	return fmt.Sprintf("%s|%d", key, horizon)
}

// BuildContext derives every named input series the expression DSL can
// reference from a bar's OHLCV columns.
func BuildContext(open, high, low, close, volume []float64) exprdsl.Context {
	n := len(close)
	logret := make([]float64, n)
	hlc3 := make([]float64, n)
	ohlc4 := make([]float64, n)
	rng := make([]float64, n)
	for i := 0; i < n; i++ {
		hlc3[i] = (high[i] + low[i] + close[i]) / 3.0
		ohlc4[i] = (open[i] + high[i] + low[i] + close[i]) / 4.0
		rng[i] = high[i] - low[i]
		if i > 0 {
			logret[i] = math.Log((close[i] + 1e-9) / (close[i-1] + 1e-9))
		}
	}
	return exprdsl.Context{
		"open": open, "high": high, "low": low, "close": close, "volume": volume,
		"hlc3": hlc3, "ohlc4": ohlc4, "logret": logret, "range": rng,
	}
}

// BuildBaselineMatrix derives the three always-present baseline features
// (1-bar return, 5-bar momentum, 10-bar rolling volatility) every candidate's
// design matrix is augmented with.
func BuildBaselineMatrix(close []float64) [][]float64 {
	n := len(close)
	ret1 := make([]float64, n)
	for i := 1; i < n; i++ {
		ret1[i] = (close[i] - close[i-1]) / (close[i-1] + 1e-9)
	}
	mom5 := make([]float64, n)
	if n > 5 {
		for i := 5; i < n; i++ {
			mom5[i] = (close[i] - close[i-5]) / (close[i-5] + 1e-9)
		}
	}
	vol10 := RollingStdFast(ret1, 10)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := []float64{ret1[i], mom5[i], vol10[i]}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = 0.0
			}
		}
		out[i] = row
	}
	return out
}

// RollingStdFast computes a trailing-window standard deviation from prefix
// sums of values and squares built in one pass, matching the original's fast variant
// used for the always-present baseline volatility feature. Unlike the DSL's
// exact RollingStd, the window fills progressively rather than leaving NaN.
func RollingStdFast(x []float64, window int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if window <= 1 || n == 0 {
		return out
	}
	c1 := make([]float64, n+1)
	c2 := make([]float64, n+1)
	for i, v := range x {
		c1[i+1] = c1[i] + v
		c2[i+1] = c2[i] + v*v
	}
	for i := 0; i < n; i++ {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		count := float64(i - lo + 1)
		sum := c1[i+1] - c1[lo]
		sum2 := c2[i+1] - c2[lo]
		mean := sum / count
		variance := sum2/count - mean*mean
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

// MakeTarget shifts close forward by horizon bars, leaving the final horizon
// entries as NaN (no future bar exists to supply them).
func MakeTarget(close []float64, horizon int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}
	if horizon >= len(close) {
		return out
	}
	for i := 0; i < len(close)-horizon; i++ {
		out[i] = close[i+horizon]
	}
	return out
}

// EvaluateCandidateHorizons sweeps horizon_min..horizon_max at coarseStep,
// seeds a finer local sweep around the best coarse horizons, and returns the
// single best-scoring horizon along with every horizon scored.
func EvaluateCandidateHorizons(
	key string,
	feature [][]float64,
	close []float64,
	folds []cv.Fold,
	horizonMin, horizonMax, coarseStep, refineRadius int,
	cache *Cache,
	focusHorizon, focusSpan int,
) CandidateEvaluation {
	searchMin, searchMax := horizonMin, horizonMax
	if focusSpan > 0 {
		if v := focusHorizon - focusSpan; v > searchMin {
			searchMin = v
		}
		if v := focusHorizon + focusSpan; v < searchMax {
			searchMax = v
		}
	}

	coarseHorizons := coarseSweep(searchMin, searchMax, coarseStep)
	coarseScores := make(map[int]HorizonScore, len(coarseHorizons))
	for _, h := range coarseHorizons {
		coarseScores[h] = scoreHorizon(key, feature, close, folds, h, cache)
	}

	ranked := rankByComposite(coarseScores)
	bestCoarse := degenerateScore
	if len(ranked) > 0 {
		bestCoarse = ranked[0].CompositeError
	}
	seedCount := 4
	if bestCoarse <= 0.35 {
		seedCount = 7
	}
	if seedCount > len(ranked) {
		seedCount = len(ranked)
	}
	localRadius := refineRadius / 2
	if localRadius < 1 {
		localRadius = 1
	}
	if bestCoarse <= 0.35 {
		localRadius = refineRadius
	}

	fineHorizons := make(map[int]struct{}, len(coarseHorizons))
	for _, h := range coarseHorizons {
		fineHorizons[h] = struct{}{}
	}
	for _, s := range ranked[:seedCount] {
		for delta := -localRadius; delta <= localRadius; delta++ {
			cand := s.Horizon + delta
			if cand >= searchMin && cand <= searchMax {
				fineHorizons[cand] = struct{}{}
			}
		}
	}

	allScores := make(map[int]HorizonScore, len(fineHorizons))
	for h, s := range coarseScores {
		allScores[h] = s
	}
	for _, h := range sortedKeys(fineHorizons) {
		if _, ok := allScores[h]; !ok {
			allScores[h] = scoreHorizon(key, feature, close, folds, h, cache)
		}
	}

	best := bestOf(allScores)
	return CandidateEvaluation{BestHorizon: best.Horizon, BestScore: best, AllScores: allScores}
}

// EvaluateFeatureCombo scores a (possibly multi-column) feature matrix at a
// single fixed horizon, bypassing the cache since combo IDs are one-shot.
func EvaluateFeatureCombo(comboID string, features [][]float64, close []float64, folds []cv.Fold, horizon int) HorizonScore {
	return scoreHorizon(comboID, features, close, folds, horizon, nil)
}

func scoreHorizon(key string, feature [][]float64, close []float64, folds []cv.Fold, horizon int, cache *Cache) HorizonScore {
	if cache != nil {
		if s, ok := cache.horizonScores.Load(cacheKey(key, horizon)); ok {
			return s
		}
	}

	var y []float64
	if cache != nil {
		if cached, ok := cache.targets.Load(horizon); ok {
			y = cached
		}
	}
	if y == nil {
		y = MakeTarget(close, horizon)
		if cache != nil {
			cache.targets.Store(horizon, y)
		}
	}

	var design [][]float64
	if cache != nil {
		if cached, ok := cache.augmentedFeature.Load(key); ok {
			design = cached
		}
	}
	if design == nil {
		baseline := baselineFor(cache, close)
		design = augment(feature, baseline)
		if cache != nil {
			cache.augmentedFeature.Store(key, design)
		}
	}

	valid := validRows(design, y)

	var foldTrue, foldPred, foldRef []float64
	for _, fold := range folds {
		trainIdx := filterValid(fold.TrainIdx, valid)
		valIdx := filterValid(fold.ValIdx, valid)
		if len(trainIdx) < 30 || len(valIdx) < 20 {
			continue
		}

		xTrain := selectRows(design, trainIdx)
		xVal := selectRows(design, valIdx)
		yTrainDelta := make([]float64, len(trainIdx))
		for i, idx := range trainIdx {
			yTrainDelta[i] = (y[idx] - close[idx]) / (close[idx] + 1e-9)
		}
		closeVal := make([]float64, len(valIdx))
		yVal := make([]float64, len(valIdx))
		for i, idx := range valIdx {
			closeVal[i] = close[idx]
			yVal[i] = y[idx]
		}

		model := forecaster.NewRidge(1.0)
		if err := model.Fit(xTrain, yTrainDelta); err != nil {
			continue
		}
		predDelta := model.Predict(xVal)
		pred := make([]float64, len(predDelta))
		for i, d := range predDelta {
			if d > 0.8 {
				d = 0.8
			}
			if d < -0.8 {
				d = -0.8
			}
			pred[i] = closeVal[i] * (1.0 + d)
		}

		foldTrue = append(foldTrue, yVal...)
		foldPred = append(foldPred, pred...)
		foldRef = append(foldRef, closeVal...)
	}

	var score HorizonScore
	if len(foldTrue) == 0 {
		score = HorizonScore{Horizon: horizon, NormalizedRMSE: degenerateScore, NormalizedMAE: degenerateScore, CompositeError: degenerateScore}
	} else {
		nrmse := forecaster.RMSE(foldTrue, foldPred) / (stddev(foldTrue) + 1e-9)
		nmae := forecaster.MAE(foldTrue, foldPred) / (meanAbs(foldTrue) + 1e-9)
		composite := 0.5 * (nrmse + nmae)

		matches := 0
		for i := range foldTrue {
			if sign(foldTrue[i]-foldRef[i]) == sign(foldPred[i]-foldRef[i]) {
				matches++
			}
		}
		hitRate := float64(matches) / float64(len(foldTrue))

		score = HorizonScore{
			Horizon: horizon, NormalizedRMSE: nrmse, NormalizedMAE: nmae,
			CompositeError: composite, DirectionalHitRate: hitRate,
			YTrue: foldTrue, YPred: foldPred, CloseRef: foldRef,
		}
	}

	if cache != nil {
		cache.horizonScores.Store(cacheKey(key, horizon), score)
	}
	return score
}

func baselineFor(cache *Cache, close []float64) [][]float64 {
	if cache == nil {
		return BuildBaselineMatrix(close)
	}
	cache.baselineMu.Lock()
	defer cache.baselineMu.Unlock()
	if cache.baseline != nil && cache.baselineLen == len(close) {
		return cache.baseline
	}
	cache.baseline = BuildBaselineMatrix(close)
	cache.baselineLen = len(close)
	return cache.baseline
}

func augment(feature, baseline [][]float64) [][]float64 {
	out := make([][]float64, len(feature))
	for i := range feature {
		row := make([]float64, 0, len(feature[i])+len(baseline[i]))
		row = append(row, feature[i]...)
		row = append(row, baseline[i]...)
		out[i] = row
	}
	return out
}

func validRows(design [][]float64, y []float64) []bool {
	valid := make([]bool, len(design))
	for i, row := range design {
		ok := !math.IsNaN(y[i]) && !math.IsInf(y[i], 0)
		if ok {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					ok = false
					break
				}
			}
		}
		valid[i] = ok
	}
	return valid
}

func filterValid(idx []int, valid []bool) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if valid[i] {
			out = append(out, i)
		}
	}
	return out
}

func selectRows(design [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, row := range idx {
		out[i] = design[row]
	}
	return out
}

func coarseSweep(min, max, step int) []int {
	set := map[int]struct{}{min: {}, max: {}}
	for h := min; h <= max; h += step {
		set[h] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func rankByComposite(scores map[int]HorizonScore) []HorizonScore {
	out := make([]HorizonScore, 0, len(scores))
	for _, s := range scores {
		out = append(out, s)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].CompositeError > out[j].CompositeError; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func bestOf(scores map[int]HorizonScore) HorizonScore {
	var best HorizonScore
	first := true
	for _, s := range scores {
		if first || s.CompositeError < best.CompositeError {
			best = s
			first = false
		}
	}
	return best
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

func meanOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func meanAbs(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

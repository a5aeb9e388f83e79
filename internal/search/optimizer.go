// Package search implements the indicator-search funnel: a random candidate
// pool is screened, refined, mutation-tuned, and finally combined into a
// sparse multi-feature combo, each stage spending progressively more
// cross-validation budget on a progressively smaller survivor set.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"time"

	"github.com/arrowlake/numerion/internal/cv"
	"github.com/arrowlake/numerion/internal/domain"
	"github.com/arrowlake/numerion/internal/evaluator"
	"github.com/arrowlake/numerion/internal/exprdsl"
	"github.com/arrowlake/numerion/internal/generator"
	"github.com/arrowlake/numerion/internal/novelty"
)

// CandidateResult pairs a generated candidate with its scored horizon sweep.
type CandidateResult struct {
	Candidate  exprdsl.Candidate
	Evaluation evaluator.CandidateEvaluation
}

// Outcome is the result of running the indicator-search funnel for one
// symbol/timeframe pair: the surviving scored candidates, the best greedy
// feature combo found at stage D, and the folds the whole funnel was scored
// against (the same splits a downstream backtest should reuse).
type Outcome struct {
	Symbol         string
	Timeframe      string
	BestCandidates []CandidateResult
	BestCombo      []exprdsl.Candidate
	ComboScore     evaluator.HorizonScore
	Folds          []cv.Fold
}

const maxCandidateDepth = 4
const comboShortlistSize = 12

// Run executes the four-stage indicator-search funnel (broad screening,
// richer refinement, mutation tuning, greedy combo search) against bars.
// gate may be nil, in which case a fresh, empty one is used; gateExpr is the
// operator-supplied acceptance expression passed to Stage D (an empty string
// falls back to the default strictly-decreases rule).
func Run(bars []domain.Bar, symbol, timeframe string, config domain.RunConfig, gate *GreedyComboGate, gateExpr string) (Outcome, error) {
	closeSeries := domain.Series(bars, "close")
	ctx := evaluator.BuildContext(
		domain.Series(bars, "open"), domain.Series(bars, "high"),
		domain.Series(bars, "low"), closeSeries, domain.Series(bars, "volume"),
	)

	if len(bars) > config.Horizon.Max {
		timestamps := make([]time.Time, len(bars))
		for i, b := range bars {
			timestamps[i] = b.OpenTime
		}
		featureTS := timestamps[:len(timestamps)-config.Horizon.Max]
		targetTS := timestamps[config.Horizon.Max:]
		if err := cv.AssertNoLookahead(featureTS, targetTS); err != nil {
			return Outcome{}, err
		}
	}

	folds, err := cv.BuildPurgedWalkForwardFolds(
		len(closeSeries), config.CV.Folds, config.Horizon.Max, config.CV.PurgeBars, config.CV.EmbargoBars)
	if err != nil {
		return Outcome{}, err
	}

	seed := config.RandomSeed + int64(stableSeedSuffix(symbol, timeframe))
	gen := generator.New(seed)
	nov := novelty.NewFilter(config.Search.NoveltySimilarityThreshold, config.Search.CollinearityThreshold)
	cache := evaluator.NewCache()
	featureCache := map[string][]float64{}

	pool := gen.GeneratePool(config.Search.CandidatePoolSize, maxCandidateDepth)

	stageA := runStageA(pool, ctx, closeSeries, folds, config, cache, featureCache, nov)
	if len(stageA) > config.Search.StageAKeep {
		stageA = stageA[:config.Search.StageAKeep]
	}

	stageB, bestStageBError := runStageB(stageA, ctx, closeSeries, folds, config, cache, featureCache)
	if len(stageB) > config.Search.StageBKeep {
		stageB = stageB[:config.Search.StageBKeep]
	}

	tuned := runStageC(stageB, bestStageBError, gen, ctx, closeSeries, folds, config, cache, featureCache)
	if len(tuned) > config.Search.StageBKeep {
		tuned = tuned[:config.Search.StageBKeep]
	}

	tuned = reevaluateGlobally(tuned, ctx, closeSeries, folds, config, cache, featureCache)
	if len(tuned) > config.Search.StageBKeep {
		tuned = tuned[:config.Search.StageBKeep]
	}

	if gate == nil {
		gate = NewGreedyComboGate()
	}
	bestCombo, comboScore, err := greedyCombo(tuned, closeSeries, folds, ctx, featureCache, config.Search.MaxComboSize, gate, gateExpr)
	if err != nil {
		return Outcome{}, err
	}

	best := tuned
	if len(best) > 10 {
		best = best[:10]
	}

	return Outcome{
		Symbol:         symbol,
		Timeframe:      timeframe,
		BestCandidates: best,
		BestCombo:      bestCombo,
		ComboScore:     comboScore,
		Folds:          folds,
	}, nil
}

// runStageA is the broad screening pass: every pooled candidate is filtered
// by novelty/collinearity and, if accepted, scored across only the first two
// folds at a coarsened horizon sweep.
func runStageA(
	pool []exprdsl.Candidate, ctx exprdsl.Context, closeSeries []float64, folds []cv.Fold,
	config domain.RunConfig, cache *evaluator.Cache, featureCache map[string][]float64, nov *novelty.Filter,
) []CandidateResult {
	coarseStep := config.Horizon.CoarseStep * 2
	if coarseStep < 16 {
		coarseStep = 16
	}
	refineRadius := config.Horizon.RefineRadius / 2
	if refineRadius < 1 {
		refineRadius = 1
	}

	var stageA []CandidateResult
	for _, cand := range pool {
		feature := featureFor(cand, ctx, featureCache)
		if !nov.IsNovelSignature(cand.Signature()) {
			continue
		}
		if nov.IsCollinear(feature) {
			continue
		}

		evalResult := evaluator.EvaluateCandidateHorizons(
			cand.IndicatorID, toMatrix(feature), closeSeries, firstTwo(folds),
			config.Horizon.Min, config.Horizon.Max, coarseStep, refineRadius, cache, 0, 0,
		)
		stageA = append(stageA, CandidateResult{Candidate: cand, Evaluation: evalResult})
		nov.Accept(cand.Signature(), feature)
	}
	sortByComposite(stageA)
	return stageA
}

// runStageB re-scores the stage A survivors across every fold at full
// resolution, focused around each candidate's stage A best horizon.
func runStageB(
	stageA []CandidateResult, ctx exprdsl.Context, closeSeries []float64, folds []cv.Fold,
	config domain.RunConfig, cache *evaluator.Cache, featureCache map[string][]float64,
) ([]CandidateResult, float64) {
	inputLimit := config.Search.StageBKeep * 2
	if inputLimit < 24 {
		inputLimit = 24
	}
	if inputLimit > len(stageA) {
		inputLimit = len(stageA)
	}

	var stageB []CandidateResult
	for _, item := range stageA[:inputLimit] {
		feature := featureFor(item.Candidate, ctx, featureCache)
		focusSpan := config.Horizon.RefineRadius * 4
		if focusSpan < 18 {
			focusSpan = 18
		}
		evalResult := evaluator.EvaluateCandidateHorizons(
			item.Candidate.IndicatorID, toMatrix(feature), closeSeries, folds,
			config.Horizon.Min, config.Horizon.Max, config.Horizon.CoarseStep, config.Horizon.RefineRadius,
			cache, item.Evaluation.BestHorizon, focusSpan,
		)
		stageB = append(stageB, CandidateResult{Candidate: item.Candidate, Evaluation: evalResult})
	}
	sortByComposite(stageB)

	bestError := 9999.0
	if len(stageB) > 0 {
		bestError = stageB[0].Evaluation.BestScore.CompositeError
	}
	return stageB, bestError
}

// runStageC mutates each stage B survivor for a handful of trials, keeping
// whichever mutation (or the original) scores lowest, stopping a candidate's
// trials early after two consecutive non-improving mutations.
func runStageC(
	stageB []CandidateResult, bestStageBError float64, gen *generator.Generator,
	ctx exprdsl.Context, closeSeries []float64, folds []cv.Fold,
	config domain.RunConfig, cache *evaluator.Cache, featureCache map[string][]float64,
) []CandidateResult {
	var tuned []CandidateResult
	for _, item := range stageB {
		best := item
		trialCap := config.Search.TuningTrials
		if item.Evaluation.BestScore.CompositeError > bestStageBError*1.35 && trialCap > 2 {
			trialCap = 2
		}

		noImprove := 0
		for trial := 0; trial < trialCap; trial++ {
			mutated := gen.Mutate(item.Candidate, trial)
			if mutated.Complexity() > 22 {
				continue
			}
			feature := featureFor(mutated, ctx, featureCache)
			focusSpan := config.Horizon.RefineRadius * 4
			if focusSpan < 16 {
				focusSpan = 16
			}
			evalResult := evaluator.EvaluateCandidateHorizons(
				mutated.IndicatorID, toMatrix(feature), closeSeries, folds,
				config.Horizon.Min, config.Horizon.Max, config.Horizon.CoarseStep, config.Horizon.RefineRadius,
				cache, best.Evaluation.BestHorizon, focusSpan,
			)
			if evalResult.BestScore.CompositeError < best.Evaluation.BestScore.CompositeError {
				best = CandidateResult{Candidate: mutated, Evaluation: evalResult}
				noImprove = 0
			} else {
				noImprove++
				if noImprove >= 2 {
					break
				}
			}
		}
		tuned = append(tuned, best)
	}
	sortByComposite(tuned)
	return tuned
}

// reevaluateGlobally re-scores the tuned survivor set across the full
// horizon continuum (no focus window), the reliable ranking pass the
// earlier focused stages can't provide on their own.
func reevaluateGlobally(
	tuned []CandidateResult, ctx exprdsl.Context, closeSeries []float64, folds []cv.Fold,
	config domain.RunConfig, cache *evaluator.Cache, featureCache map[string][]float64,
) []CandidateResult {
	var out []CandidateResult
	for _, item := range tuned {
		feature := featureFor(item.Candidate, ctx, featureCache)
		evalResult := evaluator.EvaluateCandidateHorizons(
			item.Candidate.IndicatorID, toMatrix(feature), closeSeries, folds,
			config.Horizon.Min, config.Horizon.Max, config.Horizon.CoarseStep, config.Horizon.RefineRadius,
			cache, 0, 0,
		)
		out = append(out, CandidateResult{Candidate: item.Candidate, Evaluation: evalResult})
	}
	sortByComposite(out)
	return out
}

// greedyCombo greedily grows a feature combination from the shortlisted
// survivors, one candidate at a time, stopping when no remaining candidate
// both passes gate and improves composite error by more than 1e-9.
func greedyCombo(
	candidates []CandidateResult, closeSeries []float64, folds []cv.Fold,
	ctx exprdsl.Context, featureCache map[string][]float64, maxSize int,
	gate *GreedyComboGate, gateExpr string,
) ([]exprdsl.Candidate, evaluator.HorizonScore, error) {
	if len(candidates) == 0 {
		return nil, evaluator.HorizonScore{}, domain.NewRunError("", "", domain.KindEvaluationDegenerate,
			"no candidates available for combo search", nil)
	}

	shortlist := make([]CandidateResult, len(candidates))
	copy(shortlist, candidates)
	sortByComposite(shortlist)
	if len(shortlist) > comboShortlistSize {
		shortlist = shortlist[:comboShortlistSize]
	}

	selected := []exprdsl.Candidate{shortlist[0].Candidate}
	bestHorizon := shortlist[0].Evaluation.BestHorizon

	bestMatrix := buildMatrix(selected, ctx, featureCache)
	bestScore := evaluator.EvaluateFeatureCombo("combo_0", bestMatrix, closeSeries, folds, bestHorizon)

	for i := 1; i < maxSize; i++ {
		var bestCandidate *exprdsl.Candidate
		var bestCandidateScore *evaluator.HorizonScore

		for _, item := range shortlist {
			if isSelected(selected, item.Candidate) {
				continue
			}
			trial := append(append([]exprdsl.Candidate{}, selected...), item.Candidate)
			matrix := buildMatrix(trial, ctx, featureCache)
			score := evaluator.EvaluateFeatureCombo("combo_trial", matrix, closeSeries, folds, item.Evaluation.BestHorizon)

			accepted, err := gate.Accept(gateExpr, score)
			if err != nil {
				return nil, evaluator.HorizonScore{}, err
			}
			if !accepted {
				continue
			}

			if score.CompositeError+1e-9 < bestScore.CompositeError {
				if bestCandidateScore == nil || score.CompositeError < bestCandidateScore.CompositeError {
					cand := item.Candidate
					bestCandidate = &cand
					sc := score
					bestCandidateScore = &sc
				}
			}
		}

		if bestCandidate == nil {
			break
		}
		selected = append(selected, *bestCandidate)
		bestScore = *bestCandidateScore
	}

	return selected, bestScore, nil
}

func buildMatrix(selected []exprdsl.Candidate, ctx exprdsl.Context, cache map[string][]float64) [][]float64 {
	cols := make([][]float64, len(selected))
	for i, cand := range selected {
		cols[i] = featureFor(cand, ctx, cache)
	}
	n := len(cols[0])
	out := make([][]float64, n)
	for r := 0; r < n; r++ {
		row := make([]float64, len(cols))
		for c, col := range cols {
			row[c] = col[r]
		}
		out[r] = row
	}
	return out
}

func featureFor(cand exprdsl.Candidate, ctx exprdsl.Context, cache map[string][]float64) []float64 {
	key := cand.Expression()
	if feature, ok := cache[key]; ok {
		return feature
	}
	feature := cand.Feature(ctx)
	cache[key] = feature
	return feature
}

func toMatrix(x []float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, v := range x {
		out[i] = []float64{v}
	}
	return out
}

func firstTwo(folds []cv.Fold) []cv.Fold {
	if len(folds) <= 2 {
		return folds
	}
	return folds[:2]
}

func isSelected(selected []exprdsl.Candidate, cand exprdsl.Candidate) bool {
	for _, s := range selected {
		if s.IndicatorID == cand.IndicatorID {
			return true
		}
	}
	return false
}

func sortByComposite(results []CandidateResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Evaluation.BestScore.CompositeError < results[j].Evaluation.BestScore.CompositeError
	})
}

// stableSeedSuffix derives a deterministic 0..9999 offset from a symbol and
// timeframe, so a fixed random_seed still spreads distinct, reproducible
// generator streams across every asset/timeframe job in a run.
func stableSeedSuffix(symbol, timeframe string) int {
	sum := sha256.Sum256([]byte(symbol + "|" + timeframe))
	prefix := hex.EncodeToString(sum[:4])
	v, _ := strconv.ParseInt(prefix, 16, 64)
	return int(v % 10000)
}

// Package cv builds purged, embargoed walk-forward cross-validation folds for
// time-series candidate evaluation and asserts the no-lookahead invariant.
package cv

import (
	"time"

	"github.com/arrowlake/numerion/internal/domain"
)

// Fold is one walk-forward split: a contiguous training prefix and a later,
// embargoed validation window.
type Fold struct {
	TrainIdx []int
	ValIdx   []int
}

const minRows = 500
const minChunk = 100
const minValRows = 50

// BuildPurgedWalkForwardFolds splits [0, nRows) into `folds` walk-forward
// train/validation pairs, purging the last purgeBars+maxHorizon rows of each
// training prefix and embargoing embargoBars rows before each validation
// window, so no training row's target window can overlap a validation row.
func BuildPurgedWalkForwardFolds(nRows, folds, maxHorizon, purgeBars, embargoBars int) ([]Fold, error) {
	if nRows < minRows {
		return nil, domain.NewRunError("", "", domain.KindInsufficientData,
			"insufficient rows for robust walk-forward CV; need at least 500 rows", nil)
	}

	usableEnd := nRows - maxHorizon - 1
	if usableEnd <= 0 {
		return nil, domain.NewRunError("", "", domain.KindInsufficientData,
			"no usable rows after horizon truncation", nil)
	}

	chunk := usableEnd / (folds + 1)
	if chunk < minChunk {
		return nil, domain.NewRunError("", "", domain.KindInsufficientData,
			"insufficient rows per fold", nil)
	}

	var generated []Fold
	for i := 0; i < folds; i++ {
		trainEnd := chunk * (i + 1)
		valStart := trainEnd + embargoBars
		valEnd := min(valStart+chunk, usableEnd)
		trainEndPurged := max(0, trainEnd-purgeBars-maxHorizon)

		trainIdx := arange(0, trainEndPurged)
		valIdx := arange(valStart, valEnd)

		if len(trainIdx) == 0 || len(valIdx) < minValRows {
			continue
		}

		if overlaps(trainIdx, valIdx) {
			return nil, domain.NewRunError("", "", domain.KindLeakage,
				"train/validation overlap detected", nil)
		}

		generated = append(generated, Fold{TrainIdx: trainIdx, ValIdx: valIdx})
	}

	if len(generated) < 2 {
		return nil, domain.NewRunError("", "", domain.KindInsufficientData,
			"unable to construct enough valid folds", nil)
	}

	return generated, nil
}

// AssertNoLookahead verifies that every feature timestamp strictly precedes
// its paired target timestamp, returning a KindLeakage error otherwise.
func AssertNoLookahead(featureTimestamps, targetTimestamps []time.Time) error {
	if len(featureTimestamps) != len(targetTimestamps) {
		return domain.NewRunError("", "", domain.KindLeakage, "mismatched timestamp arrays", nil)
	}
	for i := range featureTimestamps {
		if !featureTimestamps[i].Before(targetTimestamps[i]) {
			return domain.NewRunError("", "", domain.KindLeakage,
				"feature timestamp >= target timestamp detected", nil)
		}
	}
	return nil
}

func arange(start, end int) []int {
	if end <= start {
		return nil
	}
	out := make([]int, end-start)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func overlaps(a, b []int) bool {
	set := make(map[int]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}


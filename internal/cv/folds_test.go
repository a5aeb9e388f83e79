package cv

import (
	"testing"
	"time"

	"github.com/arrowlake/numerion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPurgedWalkForwardFoldsRejectsShortSeries(t *testing.T) {
	_, err := BuildPurgedWalkForwardFolds(100, 4, 10, 5, 5)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientData))
}

func TestBuildPurgedWalkForwardFoldsNoOverlap(t *testing.T) {
	folds, err := BuildPurgedWalkForwardFolds(2000, 4, 10, 5, 5)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(folds), 2)
	for _, f := range folds {
		trainSet := make(map[int]struct{}, len(f.TrainIdx))
		for _, idx := range f.TrainIdx {
			trainSet[idx] = struct{}{}
		}
		for _, idx := range f.ValIdx {
			_, ok := trainSet[idx]
			assert.False(t, ok, "train/val must not overlap")
		}
	}
}

func TestBuildPurgedWalkForwardFoldsAscendingTrainWindows(t *testing.T) {
	folds, err := BuildPurgedWalkForwardFolds(3000, 5, 10, 3, 3)
	require.NoError(t, err)
	for i := 1; i < len(folds); i++ {
		assert.Greater(t, folds[i].ValIdx[0], folds[i-1].ValIdx[0])
	}
}

func TestAssertNoLookaheadDetectsViolation(t *testing.T) {
	now := time.Now()
	feature := []time.Time{now, now.Add(time.Hour)}
	target := []time.Time{now.Add(time.Hour), now.Add(time.Hour)}
	err := AssertNoLookahead(feature, target)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLeakage))
}

func TestAssertNoLookaheadPasses(t *testing.T) {
	now := time.Now()
	feature := []time.Time{now, now.Add(time.Hour)}
	target := []time.Time{now.Add(time.Hour), now.Add(2 * time.Hour)}
	require.NoError(t, AssertNoLookahead(feature, target))
}

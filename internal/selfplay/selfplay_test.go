package selfplay

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/replay"
)

func flatEvaluator(actionSize int) func(state games.State) ([]float64, float64, []float64) {
	return func(state games.State) ([]float64, float64, []float64) {
		return make([]float64, actionSize), 0.5, []float64{0}
	}
}

func TestPlayProducesOneSamplePerPly(t *testing.T) {
	g := games.TicTacToe{}
	rng := rand.New(rand.NewSource(5))
	samples, err := Play(g, flatEvaluator(9), 40, DefaultCPuct, rng)
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	for i, s := range samples {
		assert.Equal(t, "tictactoe", s.GameID)
		assert.Equal(t, replay.SourceSelfplay, s.Source)
		assert.Equal(t, i, s.Ply)
		assert.Len(t, s.TargetPi, 9)
		assert.GreaterOrEqual(t, s.TargetZ, 0.0)
		assert.LessOrEqual(t, s.TargetZ, 1.0)
	}
}

func TestOutcomeToZDrawIsHalf(t *testing.T) {
	z, err := outcomeToZ(games.ResultDraw, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, z)
}

func TestOutcomeToZWinnerPerspective(t *testing.T) {
	z, err := outcomeToZ(games.ResultP1Win, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, z)

	z, err = outcomeToZ(games.ResultP1Win, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, z)

	z, err = outcomeToZ(games.ResultP2Win, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, z)
}

func TestOutcomeToZRejectsOngoing(t *testing.T) {
	_, err := outcomeToZ(games.ResultOngoing, 1)
	assert.Error(t, err)
}

func TestSampleFromPolicyZeroSumFallsBack(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := sampleFromPolicy(rng, []float64{0, 0, 0})
	assert.False(t, ok)
}

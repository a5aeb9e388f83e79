package trainer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
)

func flatEvaluator(actionSize int, value float64) func(state games.State) ([]float64, float64, []float64) {
	return func(state games.State) ([]float64, float64, []float64) {
		return make([]float64, actionSize), value, []float64{0}
	}
}

func TestPlayArenaGameReachesATerminalResult(t *testing.T) {
	g := games.TicTacToe{}
	rng := rand.New(rand.NewSource(1))
	result, err := PlayArenaGame(g, flatEvaluator(9, 0.5), flatEvaluator(9, 0.5), 20, rng)
	require.NoError(t, err)
	assert.NotEqual(t, games.ResultOngoing, result)
}

func TestArenaWinRateIsWithinBounds(t *testing.T) {
	g := games.TicTacToe{}
	rng := rand.New(rand.NewSource(2))
	rate, err := ArenaWinRate(g, flatEvaluator(9, 0.5), flatEvaluator(9, 0.5), 4, 10, rng)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}

func TestArenaWinRateZeroGamesIsZero(t *testing.T) {
	g := games.TicTacToe{}
	rng := rand.New(rand.NewSource(1))
	rate, err := ArenaWinRate(g, flatEvaluator(9, 0.5), flatEvaluator(9, 0.5), 0, 10, rng)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)
}

package mcts

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowlake/numerion/internal/games"
)

// uniformEvaluator returns flat logits and a fixed value, exercising pure
// visit-count-driven search with no learned signal.
func uniformEvaluator(actionSize int, value float64) EvaluateFn {
	return func(state games.State) ([]float64, float64, []float64) {
		logits := make([]float64, actionSize)
		return logits, value, []float64{0}
	}
}

func TestRunPicksAWinningTicTacToeMove(t *testing.T) {
	g := games.TicTacToe{}
	state := g.InitialState()
	state, err := g.ApplyAction(state, 0) // p1 takes corner 0
	require.NoError(t, err)
	state, err = g.ApplyAction(state, 3) // p2 takes 3
	require.NoError(t, err)
	state, err = g.ApplyAction(state, 1) // p1 takes 1, two in a row (0,1), needs 2 to win
	require.NoError(t, err)
	state, err = g.ApplyAction(state, 4) // p2 takes 4
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	action, pi, analysis, err := Run(g, state, uniformEvaluator(9, 0.5), 200, 1.5, 0.0, 0.25, 0, nil, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, action, "search should find the immediate winning move")
	assert.Len(t, pi, 9)
	assert.Equal(t, 1.0, pi[2])
	assert.Len(t, analysis.MCTS.VisitCounts, 9)
}

func TestRunIsDeterministicGivenSameSeed(t *testing.T) {
	g := games.TicTacToe{}
	state := g.InitialState()

	run := func() (int, []float64) {
		rng := rand.New(rand.NewSource(7))
		action, pi, _, err := Run(g, state, uniformEvaluator(9, 0.5), 50, 1.5, 1.0, 0.25, 0, nil, rng)
		require.NoError(t, err)
		return action, pi
	}

	a1, pi1 := run()
	a2, pi2 := run()
	assert.Equal(t, a1, a2)
	assert.Equal(t, pi1, pi2)
}

func TestRunEmitsProgressSnapshotsWithoutMutatingFinalResult(t *testing.T) {
	g := games.TicTacToe{}
	state := g.InitialState()
	rng := rand.New(rand.NewSource(3))

	var snapshots []Analysis
	_, _, final, err := Run(g, state, uniformEvaluator(9, 0.5), 20, 1.5, 1.0, 0.25, 5, func(sim, sims int, snap Analysis) {
		snapshots = append(snapshots, snap)
	}, rng)
	require.NoError(t, err)
	assert.Len(t, snapshots, 4) // 20 sims / emitEvery 5
	for _, snap := range snapshots {
		assert.Len(t, snap.MCTS.VisitCounts, 9)
	}
	assert.Len(t, final.MCTS.VisitCounts, 9)
}

func TestRunTerminalRootReturnsImmediately(t *testing.T) {
	g := games.TicTacToe{}
	state := g.InitialState()
	moves := []int{0, 3, 1, 4, 2} // p1 wins the top row
	var err error
	for _, m := range moves {
		state, err = g.ApplyAction(state, m)
		require.NoError(t, err)
	}
	require.True(t, g.IsTerminal(state))

	rng := rand.New(rand.NewSource(1))
	_, pi, analysis, err := Run(g, state, uniformEvaluator(9, 0.5), 10, 1.5, 0.0, 0.25, 0, nil, rng)
	require.NoError(t, err)
	assert.Len(t, pi, 9)
	assert.NotNil(t, analysis.MCTS.VisitPolicy)
}

func TestSampleDirichletSumsToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	out := sampleDirichlet(rng, 0.3, 5)
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestDirichletAlphaIsLowerForOthello(t *testing.T) {
	assert.Equal(t, 0.15, dirichletAlpha("othello"))
	assert.Equal(t, 0.3, dirichletAlpha("tictactoe"))
	assert.Equal(t, 0.3, dirichletAlpha("connect4"))
}

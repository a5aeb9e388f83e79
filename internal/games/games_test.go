package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGamesRegistersAllThree(t *testing.T) {
	all := BuildGames()
	assert.Len(t, all, 3)
	assert.Contains(t, all, "tictactoe")
	assert.Contains(t, all, "connect4")
	assert.Contains(t, all, "othello")
}

func TestTicTacToeRowWinIsDetected(t *testing.T) {
	g := TicTacToe{}
	state := g.InitialState()
	moves := []int{0, 3, 1, 4, 2} // p1 takes top row, p2 takes middle row
	var err error
	for _, m := range moves {
		state, err = g.ApplyAction(state, m)
		require.NoError(t, err)
	}
	assert.True(t, g.IsTerminal(state))
	assert.Equal(t, ResultP1Win, state.Result)
	v, err := g.TerminalValue(state, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	v, err = g.TerminalValue(state, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestTicTacToeRejectsOccupiedCell(t *testing.T) {
	g := TicTacToe{}
	state := g.InitialState()
	state, err := g.ApplyAction(state, 0)
	require.NoError(t, err)
	_, err = g.ApplyAction(state, 0)
	assert.Error(t, err)
}

func TestConnect4VerticalWin(t *testing.T) {
	g := Connect4{}
	state := g.InitialState()
	moves := []int{0, 1, 0, 1, 0, 1, 0} // p1 drops col0 four times, p2 col1 three times
	var err error
	for _, m := range moves {
		state, err = g.ApplyAction(state, m)
		require.NoError(t, err)
	}
	assert.True(t, g.IsTerminal(state))
	assert.Equal(t, ResultP1Win, state.Result)
}

func TestConnect4FullColumnIsIllegal(t *testing.T) {
	g := Connect4{}
	board := newBoard(connect4Rows, connect4Cols)
	for r := 0; r < connect4Rows; r++ {
		if r%2 == 0 {
			board[r][0] = 1
		} else {
			board[r][0] = -1
		}
	}
	state := State{GameID: "connect4", Board: board, ToPlay: 1, Result: ResultOngoing}
	_, err := g.ApplyAction(state, 0)
	assert.Error(t, err)
}

func TestOthelloInitialLegalMovesAreFour(t *testing.T) {
	g := Othello{}
	state := g.InitialState()
	legal := g.LegalActions(state)
	assert.Len(t, legal, 4)
	assert.ElementsMatch(t, []int{19, 26, 37, 44}, legal)
}

func TestOthelloTwoConsecutivePassesEndsTheGame(t *testing.T) {
	g := Othello{}
	board := newBoard(othelloSize, othelloSize)
	for r := 0; r < othelloSize; r++ {
		for c := 0; c < othelloSize; c++ {
			board[r][c] = -1
		}
	}
	board[0][0] = 0
	// One pass already happened (the opponent's, before this state); the
	// player to move here also has no legal move, so a second consecutive
	// pass must end the game instead of leaving it ongoing.
	state := State{GameID: "othello", Board: board, ToPlay: 1, Result: ResultOngoing, PassCount: 1}
	require.Equal(t, []int{othelloPassAction}, g.LegalActions(state))

	next, err := g.ApplyAction(state, othelloPassAction)
	require.NoError(t, err)
	assert.Equal(t, 2, next.PassCount)
	assert.NotEqual(t, ResultOngoing, next.Result)
	assert.True(t, g.IsTerminal(next))
}

func TestOthelloFlipsOpponentDiscs(t *testing.T) {
	g := Othello{}
	state := g.InitialState()
	// Black (p1) plays d3 (row 2, col 3), flipping the disc at (3,3).
	action := 2*othelloSize + 3
	next, err := g.ApplyAction(state, action)
	require.NoError(t, err)
	assert.Equal(t, int8(1), next.Board[3][3])
	assert.Equal(t, int8(1), next.Board[2][3])
}

func TestOthelloPassWhenNoLegalMoves(t *testing.T) {
	g := Othello{}
	board := newBoard(othelloSize, othelloSize)
	for r := 0; r < othelloSize; r++ {
		for c := 0; c < othelloSize; c++ {
			board[r][c] = 1
		}
	}
	board[0][0] = 0
	state := State{GameID: "othello", Board: board, ToPlay: -1, Result: ResultOngoing}
	legal := g.LegalActions(state)
	assert.Equal(t, []int{othelloPassAction}, legal)
}

func TestMaskedSoftmaxRestrictsToLegalActions(t *testing.T) {
	logits := []float64{1, 2, 3, 4}
	probs := MaskedSoftmax(logits, []int{0, 2}, 4)
	assert.Equal(t, 0.0, probs[1])
	assert.Equal(t, 0.0, probs[3])
	assert.InDelta(t, 1.0, probs[0]+probs[2], 1e-9)
	assert.Greater(t, probs[2], probs[0])
}

func TestMaskedSoftmaxEmptyLegalActionsIsZero(t *testing.T) {
	probs := MaskedSoftmax([]float64{1, 2, 3}, nil, 3)
	for _, p := range probs {
		assert.Equal(t, 0.0, p)
	}
}

func TestNormalizeProbsSumsToOne(t *testing.T) {
	out := NormalizeProbs([]float64{1, 1, 2})
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

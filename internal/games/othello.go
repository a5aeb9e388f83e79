package games

import "errors"

// Othello is the 8x8 game plus a dedicated pass action (64 board squares,
// action 64 is pass); two consecutive passes end the game by disc count.
type Othello struct{}

const (
	othelloSize       = 8
	othelloPassAction = 64
)

var othelloDirections = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

func (Othello) Spec() Spec {
	return Spec{GameID: "othello", Rows: othelloSize, Cols: othelloSize, ActionSize: othelloPassAction + 1, Symmetry: "rotations_and_mirrors", PassAction: othelloPassAction}
}

func (Othello) InitialState() State {
	board := newBoard(othelloSize, othelloSize)
	board[3][3] = -1
	board[3][4] = 1
	board[4][3] = 1
	board[4][4] = -1
	return State{GameID: "othello", Board: board, ToPlay: 1, Result: ResultOngoing}
}

func othelloInBounds(r, c int) bool {
	return r >= 0 && r < othelloSize && c >= 0 && c < othelloSize
}

func othelloCollectFlips(board [][]int8, row, col int, player int8) [][2]int {
	if board[row][col] != 0 {
		return nil
	}
	opponent := -player
	var flips [][2]int
	for _, d := range othelloDirections {
		var line [][2]int
		rr, cc := row+d[0], col+d[1]
		for othelloInBounds(rr, cc) && board[rr][cc] == opponent {
			line = append(line, [2]int{rr, cc})
			rr += d[0]
			cc += d[1]
		}
		if len(line) > 0 && othelloInBounds(rr, cc) && board[rr][cc] == player {
			flips = append(flips, line...)
		}
	}
	return flips
}

func othelloBoardLegalActions(board [][]int8, player int8) []int {
	var actions []int
	for r := 0; r < othelloSize; r++ {
		for c := 0; c < othelloSize; c++ {
			if len(othelloCollectFlips(board, r, c, player)) > 0 {
				actions = append(actions, r*othelloSize+c)
			}
		}
	}
	return actions
}

func othelloResultFromCounts(board [][]int8) Result {
	var p1, p2 int
	for _, row := range board {
		for _, v := range row {
			switch v {
			case 1:
				p1++
			case -1:
				p2++
			}
		}
	}
	switch {
	case p1 == p2:
		return ResultDraw
	case p1 > p2:
		return ResultP1Win
	default:
		return ResultP2Win
	}
}

func (Othello) LegalActions(state State) []int {
	if state.Result != ResultOngoing {
		return nil
	}
	moves := othelloBoardLegalActions(state.Board, int8(state.ToPlay))
	if len(moves) > 0 {
		return moves
	}
	return []int{othelloPassAction}
}

func (o Othello) ApplyAction(state State, action int) (State, error) {
	if state.Result != ResultOngoing {
		return State{}, errors.New("othello: cannot play move on terminal state")
	}
	legal := o.LegalActions(state)
	if !containsInt(legal, action) {
		return State{}, errors.New("othello: illegal action for current position")
	}

	next := state.Clone()
	next.Ply = state.Ply + 1

	if action == othelloPassAction {
		next.ToPlay = -state.ToPlay
		next.PassCount = state.PassCount + 1
		if next.PassCount >= 2 || !boardHasEmpty(next.Board) {
			next.Result = othelloResultFromCounts(next.Board)
		} else {
			next.Result = ResultOngoing
		}
		return next, nil
	}

	row, col := action/othelloSize, action%othelloSize
	flips := othelloCollectFlips(next.Board, row, col, int8(state.ToPlay))
	next.Board[row][col] = int8(state.ToPlay)
	for _, f := range flips {
		next.Board[f[0]][f[1]] = int8(state.ToPlay)
	}
	next.ToPlay = -state.ToPlay
	next.PassCount = 0

	if !boardHasEmpty(next.Board) {
		next.Result = othelloResultFromCounts(next.Board)
	} else {
		next.Result = ResultOngoing
	}
	return next, nil
}

func (Othello) IsTerminal(state State) bool { return state.Result != ResultOngoing }

func (Othello) TerminalValue(state State, perspective int) (float64, error) {
	return standardTerminalValue(state, perspective)
}

func (Othello) ActionToBoardCoord(state State, action int) BoardCoord {
	if action == othelloPassAction {
		return BoardCoord{}
	}
	if action < 0 || action >= othelloPassAction {
		return BoardCoord{}
	}
	return BoardCoord{Row: action / othelloSize, Col: action % othelloSize, Valid: true}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

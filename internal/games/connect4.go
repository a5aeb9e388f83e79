package games

import "errors"

// Connect4 is the 6x7 game: one action per column, mirror-only symmetric.
type Connect4 struct{}

const (
	connect4Rows = 6
	connect4Cols = 7
)

func (Connect4) Spec() Spec {
	return Spec{GameID: "connect4", Rows: connect4Rows, Cols: connect4Cols, ActionSize: connect4Cols, Symmetry: "mirror_lr_only", PassAction: -1}
}

func (Connect4) InitialState() State {
	return State{GameID: "connect4", Board: newBoard(connect4Rows, connect4Cols), ToPlay: 1, Result: ResultOngoing}
}

func (Connect4) LegalActions(state State) []int {
	if state.Result != ResultOngoing {
		return nil
	}
	var actions []int
	for c := 0; c < connect4Cols; c++ {
		if state.Board[0][c] == 0 {
			actions = append(actions, c)
		}
	}
	return actions
}

func connect4LandingRow(board [][]int8, col int) int {
	for r := connect4Rows - 1; r >= 0; r-- {
		if board[r][col] == 0 {
			return r
		}
	}
	return -1
}

func connect4HasConnect(board [][]int8, row, col int, player int8) bool {
	directions := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range directions {
		count := 1
		for _, sign := range [2]int{-1, 1} {
			rr, cc := row+sign*d[0], col+sign*d[1]
			for rr >= 0 && rr < connect4Rows && cc >= 0 && cc < connect4Cols && board[rr][cc] == player {
				count++
				rr += sign * d[0]
				cc += sign * d[1]
			}
		}
		if count >= 4 {
			return true
		}
	}
	return false
}

func (Connect4) ApplyAction(state State, action int) (State, error) {
	if state.Result != ResultOngoing {
		return State{}, errors.New("connect4: cannot play move on terminal state")
	}
	if action < 0 || action >= connect4Cols {
		return State{}, errors.New("connect4: action out of bounds")
	}
	row := connect4LandingRow(state.Board, action)
	if row < 0 {
		return State{}, errors.New("connect4: illegal move, column is full")
	}

	next := state.Clone()
	next.Board[row][action] = int8(state.ToPlay)
	next.ToPlay = -state.ToPlay
	next.Ply = state.Ply + 1

	switch {
	case connect4HasConnect(next.Board, row, action, int8(state.ToPlay)):
		if state.ToPlay == 1 {
			next.Result = ResultP1Win
		} else {
			next.Result = ResultP2Win
		}
	case !boardHasEmpty(next.Board):
		next.Result = ResultDraw
	default:
		next.Result = ResultOngoing
	}
	return next, nil
}

func (Connect4) IsTerminal(state State) bool { return state.Result != ResultOngoing }

func (Connect4) TerminalValue(state State, perspective int) (float64, error) {
	return standardTerminalValue(state, perspective)
}

func (Connect4) ActionToBoardCoord(state State, action int) BoardCoord {
	if action < 0 || action >= connect4Cols {
		return BoardCoord{}
	}
	row := connect4LandingRow(state.Board, action)
	if row < 0 {
		return BoardCoord{Row: 0, Col: action, Valid: true}
	}
	return BoardCoord{Row: row, Col: action, Valid: true}
}

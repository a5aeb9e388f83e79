package games

import "errors"

// TicTacToe is the 3x3 game: 9 actions, rotation-and-mirror symmetric.
type TicTacToe struct{}

func (TicTacToe) Spec() Spec {
	return Spec{GameID: "tictactoe", Rows: 3, Cols: 3, ActionSize: 9, Symmetry: "rotations_and_mirrors", PassAction: -1}
}

func (TicTacToe) InitialState() State {
	return State{GameID: "tictactoe", Board: newBoard(3, 3), ToPlay: 1, Result: ResultOngoing}
}

func (TicTacToe) LegalActions(state State) []int {
	if state.Result != ResultOngoing {
		return nil
	}
	var actions []int
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if state.Board[r][c] == 0 {
				actions = append(actions, r*3+c)
			}
		}
	}
	return actions
}

func ticTacToeWinner(board [][]int8) int8 {
	lines := [][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}}, {{1, 0}, {1, 1}, {1, 2}}, {{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}}, {{0, 1}, {1, 1}, {2, 1}}, {{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, {{0, 2}, {1, 1}, {2, 0}},
	}
	for _, line := range lines {
		sum := board[line[0][0]][line[0][1]] + board[line[1][0]][line[1][1]] + board[line[2][0]][line[2][1]]
		if sum == 3 {
			return 1
		}
		if sum == -3 {
			return -1
		}
	}
	return 0
}

func (TicTacToe) ApplyAction(state State, action int) (State, error) {
	if state.Result != ResultOngoing {
		return State{}, errors.New("tictactoe: cannot play move on terminal state")
	}
	if action < 0 || action >= 9 {
		return State{}, errors.New("tictactoe: action out of bounds")
	}
	r, c := action/3, action%3
	if state.Board[r][c] != 0 {
		return State{}, errors.New("tictactoe: illegal move, target cell occupied")
	}

	next := state.Clone()
	next.Board[r][c] = int8(state.ToPlay)
	next.ToPlay = -state.ToPlay
	next.Ply = state.Ply + 1

	switch winner := ticTacToeWinner(next.Board); {
	case winner == 1:
		next.Result = ResultP1Win
	case winner == -1:
		next.Result = ResultP2Win
	case !boardHasEmpty(next.Board):
		next.Result = ResultDraw
	default:
		next.Result = ResultOngoing
	}
	return next, nil
}

func (TicTacToe) IsTerminal(state State) bool { return state.Result != ResultOngoing }

func (TicTacToe) TerminalValue(state State, perspective int) (float64, error) {
	return standardTerminalValue(state, perspective)
}

func (TicTacToe) ActionToBoardCoord(state State, action int) BoardCoord {
	if action < 0 || action >= 9 {
		return BoardCoord{}
	}
	return BoardCoord{Row: action / 3, Col: action % 3, Valid: true}
}

// standardTerminalValue implements the p1_win/p2_win/draw → {1,0,0.5} mapping
// shared by every game in this package: a win scores 1.0 from the winner's
// own perspective and 0.0 from the loser's, a draw scores 0.5 for both.
func standardTerminalValue(state State, perspective int) (float64, error) {
	switch state.Result {
	case ResultDraw:
		return 0.5, nil
	case ResultP1Win:
		if perspective == 1 {
			return 1.0, nil
		}
		return 0.0, nil
	case ResultP2Win:
		if perspective == -1 {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0, errors.New("games: terminal value requested on non-terminal state")
	}
}

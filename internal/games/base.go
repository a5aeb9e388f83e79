// Package games implements the small board games the MCTS trainer self-plays
// against itself: tic-tac-toe, Connect Four, and Othello, all behind a single
// Game interface.
package games

// Result is the terminal outcome of a game, or "ongoing" while still in play.
type Result string

const (
	ResultOngoing Result = "ongoing"
	ResultP1Win   Result = "p1_win"
	ResultP2Win   Result = "p2_win"
	ResultDraw    Result = "draw"
)

// Spec describes a game's fixed shape: board dimensions, action space size,
// the symmetry group its board supports (informational only; self-play does
// not augment samples with it), and an optional dedicated pass action.
type Spec struct {
	GameID     string
	Rows       int
	Cols       int
	ActionSize int
	Symmetry   string
	PassAction int // -1 when the game has no pass action
}

// State is one position in a game: the board (player to move encoded as
// +1/-1, empty as 0), whose turn it is, ply count, and how many consecutive
// passes have occurred (only meaningful for Othello).
type State struct {
	GameID    string
	Board     [][]int8
	ToPlay    int
	Ply       int
	PassCount int
	Result    Result
}

// Clone deep-copies a State so Game implementations can mutate a copy freely
// without aliasing the caller's board.
func (s State) Clone() State {
	board := make([][]int8, len(s.Board))
	for i, row := range s.Board {
		board[i] = append([]int8(nil), row...)
	}
	return State{
		GameID:    s.GameID,
		Board:     board,
		ToPlay:    s.ToPlay,
		Ply:       s.Ply,
		PassCount: s.PassCount,
		Result:    s.Result,
	}
}

// BoardCoord is a (row, col) board position; Valid is false when an action
// has no board coordinate (Othello's pass action, or an out-of-range action).
type BoardCoord struct {
	Row, Col int
	Valid    bool
}

// Game is the interface every self-playable game implements: legal move
// generation, application, and terminal scoring from either player's
// perspective.
type Game interface {
	Spec() Spec
	InitialState() State
	LegalActions(state State) []int
	ApplyAction(state State, action int) (State, error)
	IsTerminal(state State) bool
	TerminalValue(state State, perspective int) (float64, error)
	ActionToBoardCoord(state State, action int) BoardCoord
}

func newBoard(rows, cols int) [][]int8 {
	board := make([][]int8, rows)
	for r := range board {
		board[r] = make([]int8, cols)
	}
	return board
}

func boardHasEmpty(board [][]int8) bool {
	for _, row := range board {
		for _, v := range row {
			if v == 0 {
				return true
			}
		}
	}
	return false
}

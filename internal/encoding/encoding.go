// Package encoding converts a game.State into the fixed-shape plane tensors
// fed to the policy/value network, and the legal-move mask used to train it.
package encoding

import "github.com/arrowlake/numerion/internal/games"

// EncodeState renders state into 5 planes of rows x cols: the to-play
// player's stones, the opponent's stones, a legal-move plane, a side-to-move
// plane (all 1 for player 1, all 0 otherwise), and a can-pass plane.
func EncodeState(game games.Game, state games.State) [][][]float64 {
	spec := game.Spec()
	planes := make([][][]float64, 5)
	for i := range planes {
		planes[i] = newPlane(spec.Rows, spec.Cols)
	}

	toPlay := int8(state.ToPlay)
	for r := 0; r < spec.Rows; r++ {
		for c := 0; c < spec.Cols; c++ {
			v := state.Board[r][c]
			if v == toPlay {
				planes[0][r][c] = 1.0
			}
			if v == -toPlay {
				planes[1][r][c] = 1.0
			}
		}
	}

	legal := game.LegalActions(state)
	for _, action := range legal {
		coord := game.ActionToBoardCoord(state, action)
		if !coord.Valid {
			continue
		}
		if coord.Row >= 0 && coord.Row < spec.Rows && coord.Col >= 0 && coord.Col < spec.Cols {
			planes[2][coord.Row][coord.Col] = 1.0
		}
	}

	sideToMove := 0.0
	if state.ToPlay == 1 {
		sideToMove = 1.0
	}
	fillPlane(planes[3], sideToMove)

	canPass := 0.0
	if spec.PassAction >= 0 && containsAction(legal, spec.PassAction) {
		canPass = 1.0
	}
	fillPlane(planes[4], canPass)

	return planes
}

// LegalPolicyMask is a 0/1 vector over the full action space, 1 at every
// legal action in state.
func LegalPolicyMask(game games.Game, state games.State) []float64 {
	spec := game.Spec()
	mask := make([]float64, spec.ActionSize)
	for _, action := range game.LegalActions(state) {
		if action >= 0 && action < spec.ActionSize {
			mask[action] = 1.0
		}
	}
	return mask
}

func newPlane(rows, cols int) [][]float64 {
	plane := make([][]float64, rows)
	for r := range plane {
		plane[r] = make([]float64, cols)
	}
	return plane
}

func fillPlane(plane [][]float64, v float64) {
	for r := range plane {
		for c := range plane[r] {
			plane[r][c] = v
		}
	}
}

func containsAction(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Package atlasseed seeds fresh replay buffers from a small built-in corpus
// of hand-picked positions, standing in for the upstream project's external
// Atlas dataset (out of scope per this module's non-goals — this package
// only implements the built-in fallback corpus, it never shells out to an
// external loader).
package atlasseed

import (
	"math"

	"github.com/arrowlake/numerion/internal/encoding"
	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/replay"
)

type rawPosition struct {
	board     [][]int8
	embedding []float64
}

type rawGame struct {
	gameID    string
	positions []rawPosition
}

func fallbackCorpus() []rawGame {
	return []rawGame{
		{
			gameID: "tictactoe",
			positions: []rawPosition{
				{board: boardFromRows([][]int8{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}), embedding: []float64{0.5, 0.4, 0.3, 0.2, 0.5, 0.1}},
				{board: boardFromRows([][]int8{{1, 0, 0}, {0, -1, 0}, {0, 0, 0}}), embedding: []float64{0.7, 0.5, 0.4, 0.4, 0.6, 0.2}},
				{board: boardFromRows([][]int8{{1, 1, 0}, {-1, -1, 0}, {0, 0, 0}}), embedding: []float64{0.8, 0.7, 0.6, 0.5, 0.7, 0.3}},
			},
		},
		{
			gameID: "connect4",
			positions: []rawPosition{
				{
					board: boardFromRows([][]int8{
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{1, -1, 0, 0, 0, 0, 0},
					}),
					embedding: []float64{0.4, 0.3, 0.5, 0.6, 0.4, 0.2},
				},
				{
					board: boardFromRows([][]int8{
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, -1, 0, 0, 0},
						{1, -1, 0, 1, 0, 0, 0},
					}),
					embedding: []float64{0.6, 0.5, 0.5, 0.7, 0.6, 0.3},
				},
			},
		},
		{
			gameID: "othello",
			positions: []rawPosition{
				{
					board: boardFromRows([][]int8{
						{0, 0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, -1, 1, 0, 0, 0},
						{0, 0, 0, 1, -1, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0, 0},
						{0, 0, 0, 0, 0, 0, 0, 0},
					}),
					embedding: []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
				},
			},
		},
	}
}

func boardFromRows(rows [][]int8) [][]int8 {
	out := make([][]int8, len(rows))
	for i, row := range rows {
		out[i] = append([]int8(nil), row...)
	}
	return out
}

func inferToPlay(board [][]int8) int {
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
	if p1 <= p2 {
		return 1
	}
	return -1
}

func uniformPolicy(actionSize int, legal []int) []float64 {
	pi := make([]float64, actionSize)
	if len(legal) == 0 {
		return pi
	}
	v := 1.0 / float64(len(legal))
	for _, a := range legal {
		pi[a] = v
	}
	return pi
}

func padEmbedding(values []float64, targetDim int) []float64 {
	out := make([]float64, targetDim)
	n := len(values)
	if n > targetDim {
		n = targetDim
	}
	copy(out, values[:n])
	return out
}

func meanClipped(values []float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return math.Max(0.0, math.Min(1.0, mean))
}

// Load returns the built-in seed samples for every game present in both the
// fallback corpus and gameSet.
func Load(gameSet map[string]games.Game) map[string][]replay.ReplaySample {
	out := make(map[string][]replay.ReplaySample, len(gameSet))
	for id := range gameSet {
		out[id] = nil
	}

	for _, blob := range fallbackCorpus() {
		game, ok := gameSet[blob.gameID]
		if !ok {
			continue
		}
		spec := game.Spec()
		for _, pos := range blob.positions {
			state := games.State{
				GameID: blob.gameID,
				Board:  pos.board,
				ToPlay: inferToPlay(pos.board),
				Result: games.ResultOngoing,
			}
			legal := game.LegalActions(state)
			if len(legal) == 0 {
				continue
			}
			out[blob.gameID] = append(out[blob.gameID], replay.ReplaySample{
				GameID:      blob.gameID,
				StatePlanes: encoding.EncodeState(game, state),
				TargetPi:    uniformPolicy(spec.ActionSize, legal),
				TargetZ:     meanClipped(pos.embedding),
				Ply:         0,
				Source:      replay.SourceAtlasSeed,
				AtlasTarget: padEmbedding(pos.embedding, 8),
			})
		}
	}
	return out
}

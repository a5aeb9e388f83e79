package trainer

import (
	"math/rand"

	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/mcts"
)

const arenaCPuct = 1.5

// PlayArenaGame plays one deterministic (temp=0, no Dirichlet noise) game
// between evalP1 and evalP2 and returns the terminal result.
func PlayArenaGame(game games.Game, evalP1, evalP2 mcts.EvaluateFn, sims int, rng *rand.Rand) (games.Result, error) {
	state := game.InitialState()
	for state.Result == games.ResultOngoing {
		evaluate := evalP1
		if state.ToPlay != 1 {
			evaluate = evalP2
		}
		action, _, _, err := mcts.Run(game, state, evaluate, sims, arenaCPuct, 0.0, 0.0, 0, nil, rng)
		if err != nil {
			return "", err
		}
		state, err = game.ApplyAction(state, action)
		if err != nil {
			return "", err
		}
	}
	return state.Result, nil
}

// ArenaWinRate plays numGames games alternating which side the candidate
// plays, scoring a candidate win as 1 point and a draw as 0.5, and returns
// the fraction of the maximum possible score the candidate achieved.
func ArenaWinRate(game games.Game, candidate, incumbent mcts.EvaluateFn, numGames, sims int, rng *rand.Rand) (float64, error) {
	if numGames <= 0 {
		return 0, nil
	}
	var points float64
	for i := 0; i < numGames; i++ {
		candidateIsP1 := i%2 == 0
		var result games.Result
		var err error
		if candidateIsP1 {
			result, err = PlayArenaGame(game, candidate, incumbent, sims, rng)
		} else {
			result, err = PlayArenaGame(game, incumbent, candidate, sims, rng)
		}
		if err != nil {
			return 0, err
		}
		switch {
		case result == games.ResultDraw:
			points += 0.5
		case candidateIsP1 && result == games.ResultP1Win:
			points += 1.0
		case !candidateIsP1 && result == games.ResultP2Win:
			points += 1.0
		}
	}
	return points / float64(numGames), nil
}

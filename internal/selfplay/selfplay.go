// Package selfplay drives one game of self-play to completion using MCTS
// move selection, producing a trajectory of training samples labeled with
// the final game outcome.
package selfplay

import (
	"fmt"
	"math/rand"

	"github.com/arrowlake/numerion/internal/encoding"
	"github.com/arrowlake/numerion/internal/games"
	"github.com/arrowlake/numerion/internal/mcts"
	"github.com/arrowlake/numerion/internal/replay"
)

// DefaultSims and DefaultCPuct mirror the defaults used across every
// self-play game unless a caller overrides them.
const (
	DefaultSims  = 200
	DefaultCPuct = 1.5
	// openingPlies is how many plies use temperature-1 sampling before the
	// game switches to deterministic argmax move selection.
	openingPlies = 8
)

type trajectoryStep struct {
	state  games.State
	pi     []float64
	toPlay int
}

// Play runs one self-play game to completion and returns the resulting
// training samples, one per ply, each labeled with the eventual outcome from
// that ply's to-play perspective.
func Play(game games.Game, evaluate mcts.EvaluateFn, sims int, cPuct float64, rng *rand.Rand) ([]replay.ReplaySample, error) {
	if sims <= 0 {
		sims = DefaultSims
	}
	state := game.InitialState()
	var trajectory []trajectoryStep

	for state.Result == games.ResultOngoing {
		temperature := 0.0
		if state.Ply < openingPlies {
			temperature = 1.0
		}

		action, pi, _, err := mcts.Run(game, state, evaluate, sims, cPuct, temperature, 0.25, 0, nil, rng)
		if err != nil {
			return nil, fmt.Errorf("selfplay: running search at ply %d: %w", state.Ply, err)
		}
		trajectory = append(trajectory, trajectoryStep{state: state.Clone(), pi: append([]float64(nil), pi...), toPlay: state.ToPlay})

		if temperature > 1e-8 {
			if sampled, ok := sampleFromPolicy(rng, pi); ok {
				action = sampled
			}
		}

		ply := state.Ply
		state, err = game.ApplyAction(state, action)
		if err != nil {
			return nil, fmt.Errorf("selfplay: applying action %d at ply %d: %w", action, ply, err)
		}
	}

	samples := make([]replay.ReplaySample, 0, len(trajectory))
	for _, step := range trajectory {
		z, err := outcomeToZ(state.Result, step.toPlay)
		if err != nil {
			return nil, err
		}
		samples = append(samples, replay.ReplaySample{
			GameID:      game.Spec().GameID,
			StatePlanes: encoding.EncodeState(game, step.state),
			TargetPi:    step.pi,
			TargetZ:     z,
			Ply:         step.state.Ply,
			Source:      replay.SourceSelfplay,
		})
	}
	return samples, nil
}

func sampleFromPolicy(rng *rand.Rand, pi []float64) (int, bool) {
	var total float64
	for _, p := range pi {
		total += p
	}
	if total <= 0 {
		return 0, false
	}
	r := rng.Float64() * total
	var cumulative float64
	for action, p := range pi {
		cumulative += p
		if r < cumulative {
			return action, true
		}
	}
	return len(pi) - 1, true
}

func outcomeToZ(result games.Result, toPlay int) (float64, error) {
	switch result {
	case games.ResultDraw:
		return 0.5, nil
	case games.ResultP1Win:
		if toPlay == 1 {
			return 1.0, nil
		}
		return 0.0, nil
	case games.ResultP2Win:
		if toPlay == -1 {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0, fmt.Errorf("selfplay: unexpected result value %q", result)
	}
}

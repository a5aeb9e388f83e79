// Package mcts implements PUCT Monte Carlo tree search over the games in
// internal/games, used for self-play games, arena promotion matches, and
// on-demand AI moves.
package mcts

import (
	"errors"
	"math"
	"math/rand"

	"github.com/arrowlake/numerion/internal/games"
)

// EvaluateFn scores a leaf state: policy logits over the full action space,
// a scalar value from the state's to-play perspective, and an opaque latent
// vector forwarded into progress snapshots for downstream consumers.
type EvaluateFn func(state games.State) (logits []float64, value float64, latent []float64)

// ProgressFn receives a non-mutating snapshot of search progress every
// emitEvery simulations: the current simulation index, total simulations,
// and an Analysis built from the tree as it stands at that instant.
type ProgressFn func(sim, sims int, snapshot Analysis)

// Node is one position in the search tree.
type Node struct {
	Prior      float64
	ToPlay     int
	N          int
	W          float64
	Q          float64
	Children   map[int]*Node
	IsExpanded bool
}

func newNode(prior float64, toPlay int) *Node {
	return &Node{Prior: prior, ToPlay: toPlay, Q: 0.5}
}

// Expand populates a leaf's children from the policy priors restricted to
// legalActions, alternating the side to move.
func (n *Node) Expand(legalActions []int, priors []float64) {
	n.Children = make(map[int]*Node, len(legalActions))
	nextPlayer := -n.ToPlay
	for _, action := range legalActions {
		n.Children[action] = newNode(priors[action], nextPlayer)
	}
	n.IsExpanded = true
}

// MCTSProgress is the nested "mcts" block of an Analysis.
type MCTSProgress struct {
	VisitCounts []int
	QValues     []float64
	VisitPolicy []float64
}

// Analysis bundles a root evaluation with the search statistics derived
// from it, shaped for both the final return value and progress snapshots.
type Analysis struct {
	RootValue float64
	Policy    []float64
	Latent    []float64
	MCTS      MCTSProgress
}

func dirichletAlpha(gameID string) float64 {
	if gameID == "othello" {
		return 0.15
	}
	return 0.3
}

// sampleGamma draws from Gamma(shape, 1) via the Marsaglia-Tsang method,
// valid for shape > 0 (boosted via the standard u^(1/shape) trick when
// shape < 1, since Dirichlet alphas here are always below 1).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1.0/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// sampleDirichlet draws one vector from Dirichlet(alpha, ..., alpha) of the
// given dimension, normalizing independent Gamma(alpha,1) draws.
func sampleDirichlet(rng *rand.Rand, alpha float64, n int) []float64 {
	out := make([]float64, n)
	var total float64
	for i := range out {
		g := sampleGamma(rng, alpha)
		out[i] = g
		total += g
	}
	if total <= 0 {
		uniform := 1.0 / float64(n)
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func addDirichletNoise(rng *rand.Rand, probs []float64, legalActions []int, eps, alpha float64) []float64 {
	if len(legalActions) == 0 {
		return probs
	}
	noise := sampleDirichlet(rng, alpha, len(legalActions))
	out := append([]float64(nil), probs...)
	for i, action := range legalActions {
		out[action] = (1.0-eps)*probs[action] + eps*noise[i]
	}
	return games.NormalizeProbs(out)
}

func selectChildWithC(node *Node, cPuct float64) (int, *Node, error) {
	bestAction := -1
	var bestChild *Node
	bestScore := math.Inf(-1)
	parentVisits := node.N
	if parentVisits < 1 {
		parentVisits = 1
	}
	sqrtParent := math.Sqrt(float64(parentVisits))
	for action, child := range node.Children {
		qParent := 1.0 - child.Q
		u := cPuct * child.Prior * (sqrtParent / float64(1+child.N))
		score := qParent + u
		if score > bestScore {
			bestScore = score
			bestAction = action
			bestChild = child
		}
	}
	if bestChild == nil {
		return 0, nil, errors.New("mcts: no child selected")
	}
	return bestAction, bestChild, nil
}

func visitCounts(root *Node, actionSize int) []int {
	counts := make([]int, actionSize)
	for action, child := range root.Children {
		counts[action] = child.N
	}
	return counts
}

func qValues(root *Node, actionSize int) []float64 {
	q := make([]float64, actionSize)
	for action, child := range root.Children {
		q[action] = 1.0 - child.Q
	}
	return q
}

func visitPolicy(root *Node, actionSize int, legal []int, temp float64) []float64 {
	counts := visitCounts(root, actionSize)
	if len(legal) == 0 {
		out := make([]float64, actionSize)
		for i, c := range counts {
			out[i] = float64(c)
		}
		return out
	}
	if temp <= 1e-8 {
		policy := make([]float64, actionSize)
		best := 0
		bestCount := -1
		for i, c := range counts {
			if c > bestCount {
				bestCount = c
				best = i
			}
		}
		policy[best] = 1.0
		return policy
	}
	scaled := make([]float64, actionSize)
	for _, action := range legal {
		scaled[action] = math.Pow(float64(counts[action]), 1.0/temp)
	}
	return games.NormalizeProbs(scaled)
}

// Run executes sims simulations of PUCT search from rootState and returns
// the chosen action, the resulting visit policy, and an Analysis of the
// finished tree. progressCB, when non-nil and emitEvery > 0, is called every
// emitEvery simulations with a read-only snapshot; it never mutates the
// tree it observes.
func Run(
	game games.Game,
	rootState games.State,
	evaluate EvaluateFn,
	sims int,
	cPuct, temp, dirichletEps float64,
	emitEvery int,
	progressCB ProgressFn,
	rng *rand.Rand,
) (int, []float64, Analysis, error) {
	spec := game.Spec()
	actionSize := spec.ActionSize
	root := newNode(1.0, rootState.ToPlay)

	rootLogits, rootValue, rootLatent := evaluate(rootState)
	legalRoot := game.LegalActions(rootState)
	rootNetPolicy := games.MaskedSoftmax(rootLogits, legalRoot, actionSize)
	noisyPriors := addDirichletNoise(rng, rootNetPolicy, legalRoot, dirichletEps, dirichletAlpha(spec.GameID))
	root.Expand(legalRoot, noisyPriors)

	for sim := 1; sim <= sims; sim++ {
		node := root
		state := rootState.Clone()
		path := []*Node{node}

		for node.IsExpanded && !game.IsTerminal(state) && len(node.Children) > 0 {
			action, next, err := selectChildWithC(node, cPuct)
			if err != nil {
				return 0, nil, Analysis{}, err
			}
			state, err = game.ApplyAction(state, action)
			if err != nil {
				return 0, nil, Analysis{}, err
			}
			node = next
			path = append(path, node)
		}

		var leafValue float64
		if game.IsTerminal(state) {
			v, err := game.TerminalValue(state, state.ToPlay)
			if err != nil {
				return 0, nil, Analysis{}, err
			}
			leafValue = v
		} else {
			logits, v, _ := evaluate(state)
			legal := game.LegalActions(state)
			priors := games.MaskedSoftmax(logits, legal, actionSize)
			node.Expand(legal, priors)
			leafValue = v
		}

		v := leafValue
		for i := len(path) - 1; i >= 0; i-- {
			step := path[i]
			step.N++
			step.W += v
			step.Q = step.W / float64(step.N)
			v = 1.0 - v
		}

		if progressCB != nil && emitEvery > 0 && sim%emitEvery == 0 {
			liveCounts := visitCounts(root, actionSize)
			var liveTotal float64
			for _, c := range liveCounts {
				liveTotal += float64(c)
			}
			livePi := make([]float64, actionSize)
			if liveTotal > 0 {
				for i, c := range liveCounts {
					livePi[i] = float64(c) / liveTotal
				}
			}
			progressCB(sim, sims, Analysis{
				RootValue: rootValue,
				Policy:    rootNetPolicy,
				Latent:    rootLatent,
				MCTS: MCTSProgress{
					VisitCounts: liveCounts,
					QValues:     qValues(root, actionSize),
					VisitPolicy: livePi,
				},
			})
		}
	}

	pi := visitPolicy(root, actionSize, legalRoot, temp)
	bestAction := 0
	bestProb := -1.0
	for i, p := range pi {
		if p > bestProb {
			bestProb = p
			bestAction = i
		}
	}

	analysis := Analysis{
		RootValue: rootValue,
		Policy:    rootNetPolicy,
		Latent:    rootLatent,
		MCTS: MCTSProgress{
			VisitCounts: visitCounts(root, actionSize),
			QValues:     qValues(root, actionSize),
			VisitPolicy: pi,
		},
	}
	return bestAction, pi, analysis, nil
}

// Package generator produces random indicator expression trees and mutates
// existing ones, the source of novelty the search funnel screens.
package generator

import (
	"fmt"
	"math/rand"

	"github.com/arrowlake/numerion/internal/exprdsl"
)

var (
	fields    = []string{"open", "high", "low", "close", "volume", "hlc3", "ohlc4", "logret", "range"}
	unaryOps  = []exprdsl.UnaryOp{exprdsl.OpAbs, exprdsl.OpNeg, exprdsl.OpLog1pAbs, exprdsl.OpSqrtAbs, exprdsl.OpTanh, exprdsl.OpSign}
	binaryOps = []exprdsl.BinaryOp{exprdsl.OpAdd, exprdsl.OpSub, exprdsl.OpMul, exprdsl.OpDiv, exprdsl.OpMax, exprdsl.OpMin}
	rollOps   = []exprdsl.RollingOp{exprdsl.OpSMA, exprdsl.OpEMA, exprdsl.OpStd, exprdsl.OpRMin, exprdsl.OpRMax}
	windows   = []int{3, 5, 8, 13, 21, 34, 55}
	fastOpts  = []int{2, 3, 5, 8}
	slowOpts  = []int{13, 21, 34}
)

// Generator builds and mutates indicator candidates using a private, seeded PRNG.
type Generator struct {
	rng *rand.Rand
}

// New constructs a Generator seeded deterministically from seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GeneratePool builds size candidates, each a random expression tree up to maxDepth deep.
func (g *Generator) GeneratePool(size, maxDepth int) []exprdsl.Candidate {
	pool := make([]exprdsl.Candidate, size)
	for i := 0; i < size; i++ {
		root := g.buildRandomNode(0, maxDepth)
		pool[i] = exprdsl.Candidate{
			IndicatorID: fmt.Sprintf("cand_%04d", i),
			Expr:        root,
		}
	}
	return pool
}

// Mutate perturbs candidate's expression tree, returning a new candidate with a
// derived indicator ID and trial number recorded in its params.
func (g *Generator) Mutate(candidate exprdsl.Candidate, trialID int) exprdsl.Candidate {
	mutated := g.mutateNode(candidate.Expr, 0.33)
	return exprdsl.Candidate{
		IndicatorID: fmt.Sprintf("%s_m%d", candidate.IndicatorID, trialID),
		Expr:        mutated,
		Params:      map[string]any{"trial": trialID},
	}
}

func (g *Generator) buildRandomNode(depth, maxDepth int) exprdsl.Node {
	if depth >= maxDepth {
		return g.leaf()
	}

	roll := g.rng.Float64()
	switch {
	case roll < 0.25:
		return g.leaf()
	case roll < 0.45:
		return exprdsl.Unary{Op: choice(g.rng, unaryOps), Child: g.buildRandomNode(depth+1, maxDepth)}
	case roll < 0.75:
		return exprdsl.Binary{
			Op:    choice(g.rng, binaryOps),
			Left:  g.buildRandomNode(depth+1, maxDepth),
			Right: g.buildRandomNode(depth+1, maxDepth),
		}
	case roll < 0.93:
		return exprdsl.Rolling{
			Op:     choice(g.rng, rollOps),
			Child:  g.buildRandomNode(depth+1, maxDepth),
			Window: choice(g.rng, windows),
		}
	default:
		return exprdsl.AdaptiveSmooth{
			Child: g.buildRandomNode(depth+1, maxDepth),
			Fast:  choice(g.rng, fastOpts),
			Slow:  choice(g.rng, slowOpts),
		}
	}
}

func (g *Generator) leaf() exprdsl.Node {
	if g.rng.Float64() < 0.82 {
		return exprdsl.Field{Name: choice(g.rng, fields)}
	}
	v := round4(g.rng.Float64()*4.0 - 2.0)
	return exprdsl.Const{Value: v}
}

func (g *Generator) mutateNode(node exprdsl.Node, p float64) exprdsl.Node {
	if g.rng.Float64() < p {
		switch n := node.(type) {
		case exprdsl.Const:
			return exprdsl.Const{Value: round4(n.Value + (g.rng.Float64()*0.7 - 0.35))}
		case exprdsl.Rolling:
			delta := choice(g.rng, []int{-5, -3, -1, 1, 3, 5})
			window := clamp(n.Window+delta, 2, 89)
			n.Window = window
			return n
		case exprdsl.AdaptiveSmooth:
			fast := clamp(n.Fast+choice(g.rng, []int{-1, 1, 2}), 2, 12)
			slow := clamp(n.Slow+choice(g.rng, []int{-5, -3, 3, 5}), fast+1, 55)
			return exprdsl.AdaptiveSmooth{Child: n.Child, Fast: fast, Slow: slow}
		}
	}

	switch n := node.(type) {
	case exprdsl.Unary:
		return exprdsl.Unary{Op: n.Op, Child: g.mutateNode(n.Child, p)}
	case exprdsl.Binary:
		return exprdsl.Binary{Op: n.Op, Left: g.mutateNode(n.Left, p), Right: g.mutateNode(n.Right, p)}
	case exprdsl.Rolling:
		return exprdsl.Rolling{Op: n.Op, Child: g.mutateNode(n.Child, p), Window: n.Window}
	case exprdsl.AdaptiveSmooth:
		return exprdsl.AdaptiveSmooth{Child: g.mutateNode(n.Child, p), Fast: n.Fast, Slow: n.Slow}
	default:
		return node
	}
}

func choice[T any](rng *rand.Rand, options []T) T {
	return options[rng.Intn(len(options))]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return float64(int(v*10000+sign(v)*0.5)) / 10000
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

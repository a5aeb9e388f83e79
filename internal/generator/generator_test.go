package generator

import (
	"testing"

	"github.com/arrowlake/numerion/internal/exprdsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePoolIsDeterministicForSameSeed(t *testing.T) {
	a := New(42).GeneratePool(20, 4)
	b := New(42).GeneratePool(20, 4)
	require.Len(t, a, 20)
	for i := range a {
		assert.Equal(t, a[i].Expression(), b[i].Expression())
	}
}

func TestGeneratePoolDiffersAcrossSeeds(t *testing.T) {
	a := New(1).GeneratePool(20, 4)
	b := New(2).GeneratePool(20, 4)
	same := 0
	for i := range a {
		if a[i].Expression() == b[i].Expression() {
			same++
		}
	}
	assert.Less(t, same, len(a))
}

func TestMutateProducesDerivedIndicatorID(t *testing.T) {
	g := New(7)
	pool := g.GeneratePool(1, 4)
	mutated := g.Mutate(pool[0], 3)
	assert.Equal(t, pool[0].IndicatorID+"_m3", mutated.IndicatorID)
	assert.Equal(t, 3, mutated.Params["trial"])
}

func TestMutateKeepsWindowInBounds(t *testing.T) {
	var checkWindows func(node exprdsl.Node)
	checkWindows = func(node exprdsl.Node) {
		switch n := node.(type) {
		case exprdsl.Rolling:
			assert.GreaterOrEqual(t, n.Window, 2)
			assert.LessOrEqual(t, n.Window, 89)
			checkWindows(n.Child)
		case exprdsl.Unary:
			checkWindows(n.Child)
		case exprdsl.Binary:
			checkWindows(n.Left)
			checkWindows(n.Right)
		case exprdsl.AdaptiveSmooth:
			checkWindows(n.Child)
		}
	}

	g := New(99)
	for i := 0; i < 50; i++ {
		pool := g.GeneratePool(1, 5)
		mutated := g.Mutate(pool[0], i)
		assert.True(t, mutated.Complexity() >= 1)
		checkWindows(mutated.Expr)
	}
}

package exprdsl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldEval(t *testing.T) {
	ctx := Context{"close": {1, 2, 3}}
	got := Field{Name: "close"}.Eval(ctx)
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestConstBroadcastsToContextLength(t *testing.T) {
	ctx := Context{"close": {1, 2, 3, 4}}
	got := Const{Value: 5}.Eval(ctx)
	require.Len(t, got, 4)
	for _, v := range got {
		assert.Equal(t, 5.0, v)
	}
}

func TestBinaryDivAvoidsExactZero(t *testing.T) {
	ctx := Context{"close": {1, 1}}
	node := Binary{Op: OpDiv, Left: Const{Value: 1}, Right: Const{Value: 0}}
	got := node.Eval(ctx)
	assert.False(t, math.IsInf(got[0], 0))
	assert.InDelta(t, 1.0/EPS, got[0], 1e-3)
}

func TestRollingMeanPrefixesNaN(t *testing.T) {
	out := RollingMean([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)
}

func TestRollingMeanWindowOneIsIdentity(t *testing.T) {
	x := []float64{7, 8, 9}
	out := RollingMean(x, 1)
	assert.Equal(t, x, out)
}

func TestEMASeedsAtFirstObservation(t *testing.T) {
	out := EMA([]float64{10, 20, 20, 20}, 3)
	assert.Equal(t, 10.0, out[0])
	assert.InDelta(t, 15.0, out[1], 1e-9)
}

func TestSanitizeBackfillsLeadingNaN(t *testing.T) {
	out := Sanitize([]float64{math.NaN(), math.NaN(), 3, math.NaN(), math.Inf(1)})
	assert.Equal(t, []float64{3, 3, 3, 3, 0}, out)
}

func TestSanitizeAllNaNBecomesZeros(t *testing.T) {
	out := Sanitize([]float64{math.NaN(), math.NaN()})
	assert.Equal(t, []float64{0, 0}, out)
}

func TestSignatureIsDeterministicAndDistinguishesStructure(t *testing.T) {
	a := Rolling{Op: OpSMA, Child: Field{Name: "close"}, Window: 14}
	b := Rolling{Op: OpSMA, Child: Field{Name: "close"}, Window: 21}
	assert.NotEqual(t, a.Signature(), b.Signature())
	assert.Equal(t, a.Signature(), (Rolling{Op: OpSMA, Child: Field{Name: "close"}, Window: 14}).Signature())
}

func TestComplexityCountsNodes(t *testing.T) {
	expr := Unary{Op: OpAbs, Child: Binary{Op: OpSub, Left: Field{Name: "close"}, Right: Field{Name: "open"}}}
	assert.Equal(t, 4, expr.Complexity())
}

func TestToPineNeverCalledDuringEval(t *testing.T) {
	// Eval must not depend on ToPine/ToExpr outputs; exercise both paths independently.
	expr := Rolling{Op: OpEMA, Child: Field{Name: "close"}, Window: 10}
	ctx := Context{"close": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}}
	vals := expr.Eval(ctx)
	pine := expr.ToPine()
	assert.NotEmpty(t, pine)
	assert.Len(t, vals, len(ctx["close"]))
}

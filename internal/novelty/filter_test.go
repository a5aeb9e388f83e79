package novelty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureSimilarityIdenticalIsOne(t *testing.T) {
	sig := "R:sma:14(F:close)"
	assert.Equal(t, 1.0, SignatureSimilarity(sig, sig))
}

func TestCanonicalSignatureRejected(t *testing.T) {
	f := NewFilter(0.999, 0.95)
	assert.False(t, f.IsNovelSignature("R:sma:14(F:close)"))
}

func TestNovelSignatureAccepted(t *testing.T) {
	f := NewFilter(0.8, 0.95)
	assert.True(t, f.IsNovelSignature("R:sma:37(F:volume)"))
}

func TestAcceptedSignatureBlocksNearDuplicates(t *testing.T) {
	f := NewFilter(0.5, 0.95)
	f.Accept("R:sma:37(F:volume)", []float64{1, 2, 3, 4})
	assert.False(t, f.IsNovelSignature("R:sma:38(F:volume)"))
}

func TestConstantSeriesIsCollinear(t *testing.T) {
	f := NewFilter(0.8, 0.95)
	assert.True(t, f.IsCollinear([]float64{1, 1, 1, 1}))
}

func TestPerfectlyCorrelatedSeriesIsCollinear(t *testing.T) {
	f := NewFilter(0.8, 0.9)
	f.Accept("sig-a", []float64{1, 2, 3, 4, 5})
	assert.True(t, f.IsCollinear([]float64{2, 4, 6, 8, 10}))
}

func TestUncorrelatedSeriesIsNotCollinear(t *testing.T) {
	f := NewFilter(0.8, 0.9)
	f.Accept("sig-a", []float64{1, 2, 3, 4, 5})
	assert.False(t, f.IsCollinear([]float64{5, 1, 4, 1, 9}))
}

func TestEmptyFilterAcceptsNonConstantSeries(t *testing.T) {
	f := NewFilter(0.8, 0.9)
	assert.False(t, f.IsCollinear([]float64{1, 2, 3}))
}

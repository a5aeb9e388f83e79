// Package novelty filters generated indicator candidates against a canonical
// set of well-known signatures and against each other, rejecting near-duplicate
// structures and near-collinear series.
package novelty

import (
	"math"
	"regexp"
)

// canonicalSignatures are expression signatures well-known enough (SMA-14,
// EMA-12, MACD-line, STD-20, a z-score) that a "novel" indicator search should
// never rediscover and report them as new.
var canonicalSignatures = []string{
	"R:sma:14(F:close)",
	"R:ema:12(F:close)",
	"B:sub(R:ema:12(F:close),R:ema:26(F:close))",
	"R:std:20(F:close)",
	"B:div(B:sub(F:close,R:sma:20(F:close)),R:std:20(F:close))",
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func tokenize(signature string) map[string]struct{} {
	tokens := tokenRe.FindAllString(signature, -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// SignatureSimilarity is the Jaccard similarity of two signatures' token sets.
func SignatureSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	union := make(map[string]struct{}, len(ta)+len(tb))
	for t := range ta {
		union[t] = struct{}{}
	}
	for t := range tb {
		union[t] = struct{}{}
	}
	if len(union) == 0 {
		return 0.0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(union))
}

// Filter accumulates the signatures and series accepted so far in a search and
// rejects new candidates that are too textually similar or too collinear.
type Filter struct {
	SimilarityThreshold   float64
	CollinearityThreshold float64

	acceptedSignatures []string
	acceptedSeries     [][]float64
}

// NewFilter constructs an empty Filter with the given thresholds.
func NewFilter(similarityThreshold, collinearityThreshold float64) *Filter {
	return &Filter{SimilarityThreshold: similarityThreshold, CollinearityThreshold: collinearityThreshold}
}

// IsNovelSignature reports whether signature is dissimilar enough from both the
// canonical set and everything previously accepted into this filter.
func (f *Filter) IsNovelSignature(signature string) bool {
	for _, canonical := range canonicalSignatures {
		if SignatureSimilarity(signature, canonical) >= f.SimilarityThreshold {
			return false
		}
	}
	for _, existing := range f.acceptedSignatures {
		if SignatureSimilarity(signature, existing) >= f.SimilarityThreshold {
			return false
		}
	}
	return true
}

// IsCollinear reports whether series is (near-)constant or (near-)perfectly
// correlated with any previously accepted series.
func (f *Filter) IsCollinear(series []float64) bool {
	if stddev(series) < 1e-12 {
		return true
	}
	if len(f.acceptedSeries) == 0 {
		return false
	}
	for _, prior := range f.acceptedSeries {
		priorStd := stddev(prior)
		if priorStd < 1e-12 {
			continue
		}
		corr := pearsonCorrelation(series, prior)
		if math.IsNaN(corr) {
			continue
		}
		if math.Abs(corr) >= f.CollinearityThreshold {
			return true
		}
	}
	return false
}

// Accept records signature and series as accepted so future candidates are
// checked against them too.
func (f *Filter) Accept(signature string, series []float64) {
	f.acceptedSignatures = append(f.acceptedSignatures, signature)
	cp := make([]float64, len(series))
	copy(cp, series)
	f.acceptedSeries = append(f.acceptedSeries, cp)
}

func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(x)))
}

func pearsonCorrelation(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n == 0 {
		return math.NaN()
	}
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	denom := math.Sqrt(varA * varB)
	if denom == 0 {
		return math.NaN()
	}
	return cov / denom
}

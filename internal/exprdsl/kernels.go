package exprdsl

import "math"

// RollingMean computes a simple moving average via a cumulative-sum prefix,
// leaving the first window-1 entries as NaN. window<=1 returns x unchanged.
func RollingMean(x []float64, window int) []float64 {
	out := nanFilled(len(x))
	if window <= 1 {
		copy(out, x)
		return out
	}
	csum := make([]float64, len(x)+1)
	for i, v := range x {
		csum[i+1] = csum[i] + v
	}
	for i := window - 1; i < len(x); i++ {
		out[i] = (csum[i+1] - csum[i+1-window]) / float64(window)
	}
	return out
}

// RollingStd computes the population standard deviation over each trailing
// window, leaving the first window-1 entries as NaN. window<=1 returns zeros.
func RollingStd(x []float64, window int) []float64 {
	out := nanFilled(len(x))
	if window <= 1 {
		return make([]float64, len(x))
	}
	for i := window - 1; i < len(x); i++ {
		out[i] = stddev(x[i-window+1 : i+1])
	}
	return out
}

func stddev(segment []float64) float64 {
	n := float64(len(segment))
	mean := 0.0
	for _, v := range segment {
		mean += v
	}
	mean /= n
	var sq float64
	for _, v := range segment {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / n)
}

// RollingMin computes the trailing-window minimum, NaN before the window fills.
func RollingMin(x []float64, window int) []float64 {
	out := nanFilled(len(x))
	for i := window - 1; i < len(x); i++ {
		m := x[i-window+1]
		for _, v := range x[i-window+2 : i+1] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// RollingMax computes the trailing-window maximum, NaN before the window fills.
func RollingMax(x []float64, window int) []float64 {
	out := nanFilled(len(x))
	for i := window - 1; i < len(x); i++ {
		m := x[i-window+1]
		for _, v := range x[i-window+2 : i+1] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// EMA computes a recursive exponential moving average with alpha = 2/(window+1),
// seeded at the first observation.
func EMA(x []float64, window int) []float64 {
	out := nanFilled(len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(window) + 1.0)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1.0-alpha)*out[i-1]
	}
	return out
}

// AdaptiveSmoothSeries interpolates the decay factor per step between a fast and
// a slow EMA alpha, based on the normalized magnitude of the step-to-step change.
func AdaptiveSmoothSeries(x []float64, fast, slow int) []float64 {
	out := nanFilled(len(x))
	if len(x) == 0 {
		return out
	}
	out[0] = x[0]
	fastAlpha := 2.0 / (float64(fast) + 1.0)
	slowAlpha := 2.0 / (float64(slow) + 1.0)
	for i := 1; i < len(x); i++ {
		delta := math.Abs(x[i] - x[i-1])
		norm := delta / (math.Abs(x[i-1]) + EPS)
		if norm > 1.0 {
			norm = 1.0
		}
		alpha := slowAlpha + norm*(fastAlpha-slowAlpha)
		out[i] = out[i-1] + alpha*(x[i]-out[i-1])
	}
	return out
}

func nanFilled(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Sanitize forward-fills interior NaNs from the first valid value, back-fills
// any leading NaNs from that same first valid value, zeroes an all-NaN series,
// and replaces any remaining Inf with zero. It never mutates its argument.
func Sanitize(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)

	firstValid := -1
	for i, v := range y {
		if !math.IsNaN(v) {
			firstValid = i
			break
		}
	}
	if firstValid == -1 {
		return make([]float64, len(y))
	}
	for i := 0; i < firstValid; i++ {
		y[i] = y[firstValid]
	}
	for i := firstValid + 1; i < len(y); i++ {
		if math.IsNaN(y[i]) {
			y[i] = y[i-1]
		}
	}
	for i, v := range y {
		if math.IsInf(v, 0) {
			y[i] = 0.0
		}
	}
	return y
}

// Package forecaster implements closed-form ridge regression over a small,
// dense design matrix, the per-fold model the evaluator fits and scores.
package forecaster

import (
	"log/slog"
	"math"

	"github.com/arrowlake/numerion/internal/domain"
)

// Ridge is a ridge-regularized linear model: y ~= intercept + x @ coef.
// The intercept term is left unregularized, matching the original's augmented
// identity matrix with a zeroed top-left entry.
type Ridge struct {
	Alpha float64
	coef  []float64 // coef[0] is the intercept
}

// NewRidge constructs an unfit model with the given regularization strength.
func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

// Fit solves the regularized normal equations (X^T X + alpha*I') w = X^T y for
// the augmented design matrix [1 | X]. If the Gram matrix is numerically
// singular, Fit logs a warning and falls back to the Moore-Penrose
// pseudo-inverse rather than failing the fold.
func (r *Ridge) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		return domain.NewRunError("", "", domain.KindInsufficientData, "empty design matrix", nil)
	}
	p := len(x[0]) + 1

	xAug := make([][]float64, n)
	for i := range x {
		row := make([]float64, p)
		row[0] = 1.0
		copy(row[1:], x[i])
		xAug[i] = row
	}

	gram := make([][]float64, p)
	for i := range gram {
		gram[i] = make([]float64, p)
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += xAug[k][i] * xAug[k][j]
			}
			gram[i][j] = sum
		}
		if i > 0 {
			gram[i][i] += r.Alpha
		}
	}

	target := make([]float64, p)
	for i := 0; i < p; i++ {
		var sum float64
		for k := 0; k < n; k++ {
			sum += xAug[k][i] * y[k]
		}
		target[i] = sum
	}

	coef, err := solveLinearSystem(gram, target)
	if err != nil {
		slog.Warn("forecaster: ridge Gram matrix is numerically singular, falling back to pseudo-inverse",
			"kind", domain.KindNumericalSingular, "alpha", r.Alpha, "error", err.Error())
		coef = pseudoInverseSolve(gram, target)
	}
	r.coef = coef
	return nil
}

// Predict evaluates the fitted model over x. Predict panics if called before a
// successful Fit, matching the original's "model is not fit" runtime error.
func (r *Ridge) Predict(x [][]float64) []float64 {
	if r.coef == nil {
		panic("forecaster: model is not fit")
	}
	out := make([]float64, len(x))
	for i, row := range x {
		sum := r.coef[0]
		for j, v := range row {
			sum += v * r.coef[j+1]
		}
		out[i] = sum
	}
	return out
}

// solveLinearSystem solves A x = b via Gaussian elimination with partial
// pivoting, returning an error if A is numerically singular.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	aug := make([][]float64, n)
	for i := range a {
		row := make([]float64, n+1)
		copy(row, a[i])
		row[n] = b[i]
		aug[i] = row
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(aug[r][col]); v > best {
				best = v
				pivot = r
			}
		}
		if best < 1e-12 {
			return nil, errSingular{}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for r := col + 1; r < n; r++ {
			factor := aug[r][col] / pv
			if factor == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := aug[i][n]
		for j := i + 1; j < n; j++ {
			sum -= aug[i][j] * x[j]
		}
		x[i] = sum / aug[i][i]
	}
	return x, nil
}

type errSingular struct{}

func (errSingular) Error() string { return "matrix is numerically singular" }

// pseudoInverseSolve solves a x = b via the Moore-Penrose pseudo-inverse of
// a, computed from a's eigendecomposition. a (the ridge Gram matrix) is
// always symmetric; eigenvalues below the singularity tolerance are
// treated as zero and excluded, which is exactly the least-squares
// minimum-norm solution solveLinearSystem could not produce directly.
func pseudoInverseSolve(a [][]float64, b []float64) []float64 {
	n := len(a)
	eigenvalues, eigenvectors := jacobiEigen(a)

	x := make([]float64, n)
	for k := 0; k < n; k++ {
		lambda := eigenvalues[k]
		if math.Abs(lambda) < 1e-10 {
			continue
		}
		var proj float64
		for i := 0; i < n; i++ {
			proj += eigenvectors[i][k] * b[i]
		}
		coeff := proj / lambda
		for i := 0; i < n; i++ {
			x[i] += coeff * eigenvectors[i][k]
		}
	}
	return x
}

// jacobiEigen computes the eigenvalues and eigenvectors of symmetric matrix
// a via the classical cyclic Jacobi rotation method. eigenvectors[i][k] is
// the i-th component of the k-th eigenvector; eigenvalues[k] is its
// eigenvalue.
func jacobiEigen(a [][]float64) ([]float64, [][]float64) {
	n := len(a)
	m := make([][]float64, n)
	for i := range a {
		m[i] = append([]float64(nil), a[i]...)
	}
	v := make([][]float64, n)
	for i := range v {
		v[i] = make([]float64, n)
		v[i][i] = 1
	}

	const maxSweeps = 100
	for sweep := 0; sweep < maxSweeps; sweep++ {
		var off float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				off += m[i][j] * m[i][j]
			}
		}
		if off < 1e-20 {
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				if math.Abs(m[p][q]) < 1e-15 {
					continue
				}
				theta := (m[q][q] - m[p][p]) / (2 * m[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				mpp, mqq, mpq := m[p][p], m[q][q], m[p][q]
				m[p][p] = c*c*mpp - 2*s*c*mpq + s*s*mqq
				m[q][q] = s*s*mpp + 2*s*c*mpq + c*c*mqq
				m[p][q] = 0
				m[q][p] = 0

				for i := 0; i < n; i++ {
					if i != p && i != q {
						mip, miq := m[i][p], m[i][q]
						m[i][p] = c*mip - s*miq
						m[p][i] = m[i][p]
						m[i][q] = s*mip + c*miq
						m[q][i] = m[i][q]
					}
				}
				for i := 0; i < n; i++ {
					vip, viq := v[i][p], v[i][q]
					v[i][p] = c*vip - s*viq
					v[i][q] = s*vip + c*viq
				}
			}
		}
	}

	eigenvalues := make([]float64, n)
	for i := 0; i < n; i++ {
		eigenvalues[i] = m[i][i]
	}
	return eigenvalues, v
}

// RMSE computes root-mean-squared-error.
func RMSE(yTrue, yPred []float64) float64 {
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue)))
}

// MAE computes mean-absolute-error.
func MAE(yTrue, yPred []float64) float64 {
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// Package stats implements the model fitting strategies: plain linear,
// gaussian GLM, logistic and Firth-penalized logistic regression. Each
// fitter receives observation rows with the primary predictor in column 0
// followed by covariates, adds its own intercept, and reports statistics
// for the predictor term only.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// predictorTerm is the design-matrix index of the reported coefficient:
// column 0 is the intercept, column 1 the primary predictor.
const predictorTerm = 1

// buildDesign assembles the design matrix with a leading intercept column
func buildDesign(x [][]float64, y []float64) (*mat.Dense, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("design matrix has %d rows, response has %d", n, len(y))
	}
	p := len(x[0]) + 1
	if n <= p {
		return nil, fmt.Errorf("insufficient observations: %d rows for %d model terms", n, p)
	}
	a := mat.NewDense(n, p, nil)
	for i, row := range x {
		if len(row) != p-1 {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), p-1)
		}
		a.Set(i, 0, 1)
		for j, v := range row {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("design matrix contains a null at row %d, column %d", i, j)
			}
			a.Set(i, j+1, v)
		}
	}
	return a, nil
}

// solveSym solves s * out = b for a symmetric positive-definite system,
// failing with a descriptive error on a singular design.
func solveSym(s *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, fmt.Errorf("singular design matrix")
	}
	var out mat.VecDense
	if err := chol.SolveVecTo(&out, b); err != nil {
		return nil, fmt.Errorf("singular design matrix: %v", err)
	}
	return &out, nil
}

// invertSym inverts a symmetric positive-definite matrix via Cholesky
func invertSym(s *mat.SymDense) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return nil, fmt.Errorf("singular design matrix")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("singular design matrix: %v", err)
	}
	return &inv, nil
}

// weightedGram computes A' W A as a symmetric matrix, with W diagonal
func weightedGram(a *mat.Dense, w []float64) *mat.SymDense {
	n, p := a.Dims()
	out := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := j; k < p; k++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += w[i] * a.At(i, j) * a.At(i, k)
			}
			out.SetSym(j, k, sum)
		}
	}
	return out
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

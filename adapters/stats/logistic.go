package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomas/domain/assoc"
)

const (
	logisticMaxIter = 100
	logisticTol     = 1e-8
)

func errSingularVariance() error {
	return fmt.Errorf("variance estimate not positive, design matrix may be collinear")
}

// LogisticFitter is standard maximum-likelihood logistic regression fit by
// iteratively reweighted least squares, with Wald inference.
type LogisticFitter struct{}

// NewLogisticFitter creates the logistic strategy
func NewLogisticFitter() *LogisticFitter {
	return &LogisticFitter{}
}

func (f *LogisticFitter) Name() string { return "logistic" }

func (f *LogisticFitter) Fit(x [][]float64, y []float64) (assoc.FitResult, error) {
	a, err := buildDesign(x, y)
	if err != nil {
		return assoc.FitResult{}, err
	}
	n, p := a.Dims()

	coef := mat.NewVecDense(p, nil)
	var gram *mat.SymDense
	converged := false

	for iter := 0; iter < logisticMaxIter; iter++ {
		probs := make([]float64, n)
		weights := make([]float64, n)
		var eta mat.VecDense
		eta.MulVec(a, coef)
		for i := 0; i < n; i++ {
			probs[i] = sigmoid(eta.AtVec(i))
			weights[i] = probs[i] * (1 - probs[i])
		}

		gram = weightedGram(a, weights)

		score := mat.NewVecDense(p, nil)
		for j := 0; j < p; j++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += a.At(i, j) * (y[i] - probs[i])
			}
			score.SetVec(j, sum)
		}

		delta, err := solveSym(gram, score)
		if err != nil {
			return assoc.FitResult{}, err
		}
		coef.AddVec(coef, delta)

		if mat.Norm(delta, math.Inf(1)) < logisticTol {
			converged = true
			break
		}
	}
	if !converged {
		return assoc.FitResult{}, fmt.Errorf("logistic regression did not converge in %d iterations", logisticMaxIter)
	}

	inv, err := invertSym(gram)
	if err != nil {
		return assoc.FitResult{}, err
	}
	variance := inv.At(predictorTerm, predictorTerm)
	if variance <= 0 || math.IsNaN(variance) {
		return assoc.FitResult{}, errSingularVariance()
	}

	beta := coef.AtVec(predictorTerm)
	se := math.Sqrt(variance)
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	z := beta / se
	crit := norm.Quantile(0.975)
	return assoc.FitResult{
		Beta:   beta,
		SE:     se,
		PValue: 2 * norm.Survival(math.Abs(z)),
		CILow:  beta - crit*se,
		CIHigh: beta + crit*se,
	}, nil
}

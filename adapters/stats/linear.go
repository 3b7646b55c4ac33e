package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomas/domain/assoc"
)

// LinearFitter is ordinary least squares with t-based inference (lm)
type LinearFitter struct{}

// NewLinearFitter creates the lm strategy
func NewLinearFitter() *LinearFitter {
	return &LinearFitter{}
}

func (f *LinearFitter) Name() string { return "lm" }

// Fit estimates the linear model and reports the predictor term with a
// Student-t p-value and confidence interval (df = n - p).
func (f *LinearFitter) Fit(x [][]float64, y []float64) (assoc.FitResult, error) {
	beta, se, df, err := leastSquares(x, y)
	if err != nil {
		return assoc.FitResult{}, err
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	t := beta / se
	crit := dist.Quantile(0.975)
	return assoc.FitResult{
		Beta:   beta,
		SE:     se,
		PValue: 2 * dist.Survival(math.Abs(t)),
		CILow:  beta - crit*se,
		CIHigh: beta + crit*se,
	}, nil
}

// GLMFitter is a gaussian generalized linear model with identity link
// (glm). Point estimates match OLS; inference is z-based, matching the
// asymptotic normal tests GLM software reports.
type GLMFitter struct{}

// NewGLMFitter creates the glm strategy
func NewGLMFitter() *GLMFitter {
	return &GLMFitter{}
}

func (f *GLMFitter) Name() string { return "glm" }

func (f *GLMFitter) Fit(x [][]float64, y []float64) (assoc.FitResult, error) {
	beta, se, _, err := leastSquares(x, y)
	if err != nil {
		return assoc.FitResult{}, err
	}
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

// leastSquares solves the normal equations and returns the predictor-term
// coefficient, its standard error, and the residual degrees of freedom.
func leastSquares(x [][]float64, y []float64) (beta, se float64, df int, err error) {
	a, err := buildDesign(x, y)
	if err != nil {
		return 0, 0, 0, err
	}
	n, p := a.Dims()

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	gram := weightedGram(a, ones)

	xty := mat.NewVecDense(p, nil)
	yVec := mat.NewVecDense(n, y)
	xty.MulVec(a.T(), yVec)

	coef, err := solveSym(gram, xty)
	if err != nil {
		return 0, 0, 0, err
	}

	var fitted mat.VecDense
	fitted.MulVec(a, coef)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
	}
	df = n - p
	sigma2 := rss / float64(df)

	inv, err := invertSym(gram)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := sigma2 * inv.At(predictorTerm, predictorTerm)
	if variance < 0 || math.IsNaN(variance) {
		return 0, 0, 0, errSingularVariance()
	}
	return coef.AtVec(predictorTerm), math.Sqrt(variance), df, nil
}

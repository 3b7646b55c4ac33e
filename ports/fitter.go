package ports

import (
	"gomas/domain/assoc"
)

// ModelFitter is one regression backend. X rows are observations with the
// primary predictor in column 0 followed by covariates; implementations add
// their own intercept. A fitter either returns statistics for the predictor
// term or a descriptive error (non-convergence, singular design matrix),
// which the engine records as that group's failure reason.
type ModelFitter interface {
	Name() string
	Fit(x [][]float64, y []float64) (assoc.FitResult, error)
}

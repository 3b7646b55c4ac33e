package assoc

import (
	"math"
)

// Failure reasons attached to result rows that produced no usable
// statistics. Fitter errors are recorded verbatim, so this list only names
// the reasons the engine itself can assign.
const (
	ReasonConstantPredictor = "Predictor removed due to constant values"
)

// Result is one output row per (predictor, dependent) group. Numeric fields
// use NaN for missing; FailedReason is empty on success. Immutable once the
// engine emits it.
type Result struct {
	Predictor    string  `json:"predictor"`
	Dependent    string  `json:"dependent"`
	PValue       float64 `json:"pval"`
	Beta         float64 `json:"beta"`
	SE           float64 `json:"se"`
	OR           float64 `json:"OR"`
	CILow        float64 `json:"ci_low"`
	CIHigh       float64 `json:"ci_high"`
	Cases        float64 `json:"cases"`
	Controls     float64 `json:"controls"`
	TotalN       float64 `json:"total_n"`
	FailedReason string  `json:"failed_reason"`
}

// NewResult creates a result row with all statistics missing
func NewResult(predictor, dependent string) Result {
	nan := math.NaN()
	return Result{
		Predictor: predictor,
		Dependent: dependent,
		PValue:    nan,
		Beta:      nan,
		SE:        nan,
		OR:        nan,
		CILow:     nan,
		CIHigh:    nan,
		Cases:     nan,
		Controls:  nan,
		TotalN:    nan,
	}
}

// Failed reports whether the row carries a failure reason instead of statistics
func (r *Result) Failed() bool {
	return r.FailedReason != ""
}

// FitResult is the contract a model fitting strategy returns for the
// primary predictor term (the first non-intercept design-matrix column).
type FitResult struct {
	Beta   float64
	SE     float64
	PValue float64
	CILow  float64
	CIHigh float64
}

// LongRow is one (sample, predictor, dependent) observation after the melt
// stage. Covariates is aligned with LongTable.CovariateNames.
type LongRow struct {
	Predictor      string
	Dependent      string
	PredictorValue float64
	DependentValue float64
	Covariates     []float64
}

// LongTable is the melted analysis table. Every row belongs to exactly one
// (predictor, dependent) group.
type LongTable struct {
	CovariateNames []string
	Rows           []LongRow
}

// Group is the slice of long rows sharing one (predictor, dependent) pair
type Group struct {
	Predictor string
	Dependent string
	Rows      []LongRow
}

package preprocess

import (
	"gomas/domain/assoc"
	"gomas/domain/frame"
	"gomas/internal/logger"
)

// Melt reshapes the preprocessed wide frame to long format: one row per
// (sample, predictor, dependent) triple carrying the predictor value, the
// dependent value and the full covariate vector. Rows whose dependent value
// is null are dropped here, so each dependent keeps its own missingness
// pattern independent of the others.
func Melt(f *frame.Frame, roles *frame.Roles, log *logger.Logger) (*assoc.LongTable, error) {
	covariateNames := append([]string{}, roles.Covariates...)

	// Covariate vectors depend only on the sample, so they are built once
	// and shared read-only across all of a sample's long rows.
	covVectors := make([][]float64, f.Rows())
	covSeries := make([]*frame.Series, len(covariateNames))
	for j, name := range covariateNames {
		s, ok := f.Column(name)
		if !ok {
			return nil, frameColumnMissing(name)
		}
		covSeries[j] = s
	}
	for i := 0; i < f.Rows(); i++ {
		vec := make([]float64, len(covSeries))
		for j, s := range covSeries {
			vec[j] = s.Values[i]
		}
		covVectors[i] = vec
	}

	total := f.Rows() * len(roles.Predictors) * len(roles.Dependents)
	rows := make([]assoc.LongRow, 0, total)
	dropped := 0
	for _, dep := range roles.Dependents {
		depSeries, ok := f.Column(dep)
		if !ok {
			return nil, frameColumnMissing(dep)
		}
		for _, pred := range roles.Predictors {
			predSeries, ok := f.Column(pred)
			if !ok {
				return nil, frameColumnMissing(pred)
			}
			for i := 0; i < f.Rows(); i++ {
				if depSeries.IsNull(i) {
					dropped++
					continue
				}
				rows = append(rows, assoc.LongRow{
					Predictor:      pred,
					Dependent:      dep,
					PredictorValue: predSeries.Values[i],
					DependentValue: depSeries.Values[i],
					Covariates:     covVectors[i],
				})
			}
		}
	}
	log.Info("melted %d samples x %d predictors x %d dependents into %d rows (%d null-dependent observations dropped)",
		f.Rows(), len(roles.Predictors), len(roles.Dependents), len(rows), dropped)

	return &assoc.LongTable{
		CovariateNames: covariateNames,
		Rows:           rows,
	}, nil
}

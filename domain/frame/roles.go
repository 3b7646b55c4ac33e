package frame

// Roles holds the resolved column role lists for one analysis. The resolver
// builds it once from the input header; the dummy-encoding stage is the only
// mutator afterwards, swapping categorical names for their generated
// indicator names so downstream role tracking stays consistent.
type Roles struct {
	Predictors            []string
	Dependents            []string
	Covariates            []string
	CategoricalCovariates []string
}

// Independents returns predictors followed by covariates, the full set of
// model input columns.
func (r *Roles) Independents() []string {
	out := make([]string, 0, len(r.Predictors)+len(r.Covariates))
	out = append(out, r.Predictors...)
	out = append(out, r.Covariates...)
	return out
}

// Selected returns all analysis columns: predictors, covariates, dependents
func (r *Roles) Selected() []string {
	out := make([]string, 0, len(r.Predictors)+len(r.Covariates)+len(r.Dependents))
	out = append(out, r.Predictors...)
	out = append(out, r.Covariates...)
	out = append(out, r.Dependents...)
	return out
}

// IsCategorical reports whether the named column is a declared categorical covariate
func (r *Roles) IsCategorical(name string) bool {
	for _, c := range r.CategoricalCovariates {
		if c == name {
			return true
		}
	}
	return false
}

// ReplaceCovariate swaps one covariate name for a set of replacement names,
// preserving covariate order. Used when dummy encoding expands a
// categorical column into indicator columns.
func (r *Roles) ReplaceCovariate(name string, replacements []string) {
	out := make([]string, 0, len(r.Covariates)+len(replacements)-1)
	for _, c := range r.Covariates {
		if c == name {
			out = append(out, replacements...)
			continue
		}
		out = append(out, c)
	}
	r.Covariates = out

	cats := make([]string, 0, len(r.CategoricalCovariates))
	for _, c := range r.CategoricalCovariates {
		if c != name {
			cats = append(cats, c)
		}
	}
	r.CategoricalCovariates = cats
}

// RemoveDependents drops the named columns from the dependent list
func (r *Roles) RemoveDependents(names []string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make([]string, 0, len(r.Dependents))
	for _, d := range r.Dependents {
		if _, skip := drop[d]; !skip {
			out = append(out, d)
		}
	}
	r.Dependents = out
}

package preprocess

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"gomas/domain/frame"
	"gomas/internal/errors"
)

// checkConstants rejects the run when any independent column is globally
// constant. A constant predictor or covariate at this level is a data or
// configuration problem, not a per-group anomaly.
func (p *Pipeline) checkConstants(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	for _, name := range roles.Independents() {
		s, ok := f.Column(name)
		if !ok {
			return nil, errors.Newf(errors.CodeValidationError, "independent column %q not in frame", name)
		}
		// String-level categoricals are NaN in the numeric view, so their
		// constancy is judged on distinct raw levels.
		distinct := s.DistinctNonNull()
		if roles.IsCategorical(name) {
			distinct = s.DistinctTokens()
		}
		if distinct == 0 {
			return nil, errors.Newf(errors.CodeConstantColumn, "independent column %q has no non-null values", name)
		}
		if distinct == 1 {
			return nil, errors.ConstantColumn(name)
		}
	}
	return f, nil
}

// validateDependents checks the dependent value domain. Quantitative mode
// requires numeric values; binary mode requires the observed value set to
// be a subset of {0, 1}. Nulls are missing, never a third class.
func (p *Pipeline) validateDependents(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	for _, name := range roles.Dependents {
		s, ok := f.Column(name)
		if !ok {
			return nil, errors.Newf(errors.CodeValidationError, "dependent column %q not in frame", name)
		}
		for i := 0; i < s.Len(); i++ {
			if s.IsNull(i) {
				if tok := s.RawAt(i); tok != "" {
					return nil, errors.DependentDomain(name, fmt.Sprintf("non-numeric value %q", tok))
				}
				continue
			}
			if !p.cfg.Quantitative {
				if v := s.Values[i]; v != 0 && v != 1 {
					return nil, errors.DependentDomain(name, fmt.Sprintf("value %v outside {0,1} for binary outcome", v))
				}
			}
		}
	}
	return f, nil
}

// handleMissing applies the configured missing-value strategy to the
// independent columns only. Dependents keep their own missingness pattern
// for the melt stage.
func (p *Pipeline) handleMissing(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	independents := roles.Independents()

	// Missingness per column: numeric columns are null at NaN, categorical
	// columns at an empty level token (their numeric view is all NaN).
	missingAt := func(name string, i int) bool {
		s := f.MustColumn(name)
		if roles.IsCategorical(name) {
			return s.Token(i) == ""
		}
		return s.IsNull(i)
	}

	if p.cfg.Missing == "drop" {
		keep := make([]bool, f.Rows())
		dropped := 0
		for i := range keep {
			keep[i] = true
			for _, name := range independents {
				if missingAt(name, i) {
					keep[i] = false
					dropped++
					break
				}
			}
		}
		if dropped > 0 {
			f = f.FilterRows(keep)
			p.log.Info("dropped %d rows with missing values", dropped)
		}
		return f, nil
	}

	// Fill strategies replace nulls per column using that column's own
	// statistic or fill direction. Per-column work is bounded by the
	// engine-thread budget.
	var g errgroup.Group
	g.SetLimit(p.cfg.EngineThreads)
	for _, name := range independents {
		s := f.MustColumn(name)
		categorical := roles.IsCategorical(name)
		g.Go(func() error {
			if categorical {
				return fillCategorical(s, p.cfg.Missing)
			}
			return fillColumn(s, p.cfg.Missing)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// fillCategorical fills missing levels by propagation. Statistic-based
// strategies have no meaning for level tokens and are rejected.
func fillCategorical(s *frame.Series, strategy string) error {
	switch strategy {
	case "forward":
		last := -1
		for i := 0; i < s.Len(); i++ {
			if s.Token(i) != "" {
				last = i
			} else if last >= 0 {
				copyObservation(s, i, last)
			}
		}
	case "backward":
		next := -1
		for i := s.Len() - 1; i >= 0; i-- {
			if s.Token(i) != "" {
				next = i
			} else if next >= 0 {
				copyObservation(s, i, next)
			}
		}
	default:
		return errors.Newf(errors.CodeConfigInvalid,
			"missing-value strategy %q does not apply to categorical covariate %q, use drop, forward or backward",
			strategy, s.Name)
	}
	return nil
}

func copyObservation(s *frame.Series, dst, src int) {
	s.Values[dst] = s.Values[src]
	if dst < len(s.Raw) && src < len(s.Raw) {
		s.Raw[dst] = s.Raw[src]
	}
}

func fillColumn(s *frame.Series, strategy string) error {
	switch strategy {
	case "forward":
		last := math.NaN()
		for i, v := range s.Values {
			if math.IsNaN(v) {
				s.Values[i] = last
			} else {
				last = v
			}
		}
	case "backward":
		next := math.NaN()
		for i := len(s.Values) - 1; i >= 0; i-- {
			if math.IsNaN(s.Values[i]) {
				s.Values[i] = next
			} else {
				next = s.Values[i]
			}
		}
	case "zero":
		fillConstant(s, 0)
	case "one":
		fillConstant(s, 1)
	case "min", "max", "mean":
		nonNull := s.NonNull()
		if len(nonNull) == 0 {
			return errors.Newf(errors.CodeValidationError, "column %q has no non-null values to fill from", s.Name)
		}
		var fill float64
		var err error
		switch strategy {
		case "min":
			fill, err = stats.Min(nonNull)
		case "max":
			fill, err = stats.Max(nonNull)
		case "mean":
			fill, err = stats.Mean(nonNull)
		}
		if err != nil {
			return errors.Wrapf(err, "computing %s fill for column %q", strategy, s.Name)
		}
		fillConstant(s, fill)
	default:
		return errors.Newf(errors.CodeConfigInvalid, "unknown missing-value strategy %q", strategy)
	}
	return nil
}

func fillConstant(s *frame.Series, fill float64) {
	for i, v := range s.Values {
		if math.IsNaN(v) {
			s.Values[i] = fill
		}
	}
}

// dummyEncode replaces each declared categorical covariate with one-hot
// indicator columns. The original column leaves the frame and the role
// lists; the generated indicator names take its place.
func (p *Pipeline) dummyEncode(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	for _, name := range append([]string{}, roles.CategoricalCovariates...) {
		s, ok := f.Column(name)
		if !ok {
			return nil, errors.Newf(errors.CodeValidationError, "categorical covariate %q not in frame", name)
		}

		levels := categoryLevels(s)
		if len(levels) < 2 {
			return nil, errors.ConstantColumn(name)
		}
		encoded := levels
		if p.cfg.DummyDropFirst {
			// Reference level dropped to avoid collinearity with the intercept.
			encoded = levels[1:]
		}

		indicatorNames := make([]string, 0, len(encoded))
		f = f.Drop(name)
		for _, level := range encoded {
			ind := indicatorSeries(s, level)
			if err := f.Append(ind); err != nil {
				return nil, errors.Wrapf(err, "encoding categorical covariate %q", name)
			}
			indicatorNames = append(indicatorNames, ind.Name)
			p.indicators[ind.Name] = struct{}{}
		}
		roles.ReplaceCovariate(name, indicatorNames)
		p.log.Debug("encoded categorical covariate %q into %d indicator columns", name, len(indicatorNames))
	}
	return f, nil
}

// categoryLevels returns the sorted distinct non-missing levels of a
// categorical column.
func categoryLevels(s *frame.Series) []string {
	seen := make(map[string]struct{})
	for i := 0; i < s.Len(); i++ {
		if tok := s.Token(i); tok != "" {
			seen[tok] = struct{}{}
		}
	}
	levels := make([]string, 0, len(seen))
	for tok := range seen {
		levels = append(levels, tok)
	}
	sort.Strings(levels)
	return levels
}

func indicatorSeries(s *frame.Series, level string) *frame.Series {
	values := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		switch tok := s.Token(i); {
		case tok == "":
			values[i] = math.NaN()
		case tok == level:
			values[i] = 1
		default:
			values[i] = 0
		}
	}
	return frame.NewSeries(fmt.Sprintf("%s_%s", s.Name, level), values)
}

// transformContinuous applies the optional standard or min-max scaling to
// every independent column that is not a generated indicator.
func (p *Pipeline) transformContinuous(f *frame.Frame, roles *frame.Roles) (*frame.Frame, error) {
	if p.cfg.Transform == "" {
		return f, nil
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.EngineThreads)
	for _, name := range roles.Independents() {
		if _, isIndicator := p.indicators[name]; isIndicator {
			continue
		}
		s := f.MustColumn(name)
		g.Go(func() error {
			return scaleColumn(s, p.cfg.Transform)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func scaleColumn(s *frame.Series, transform string) error {
	nonNull := s.NonNull()
	if len(nonNull) == 0 {
		return nil
	}
	switch transform {
	case "standard":
		mean, err := stats.Mean(nonNull)
		if err != nil {
			return errors.Wrapf(err, "scaling column %q", s.Name)
		}
		sd, err := stats.StandardDeviation(nonNull)
		if err != nil {
			return errors.Wrapf(err, "scaling column %q", s.Name)
		}
		if sd == 0 {
			return errors.ConstantColumn(s.Name)
		}
		for i, v := range s.Values {
			if !math.IsNaN(v) {
				s.Values[i] = (v - mean) / sd
			}
		}
	case "min-max":
		lo, err := stats.Min(nonNull)
		if err != nil {
			return errors.Wrapf(err, "scaling column %q", s.Name)
		}
		hi, err := stats.Max(nonNull)
		if err != nil {
			return errors.Wrapf(err, "scaling column %q", s.Name)
		}
		if hi == lo {
			return errors.ConstantColumn(s.Name)
		}
		for i, v := range s.Values {
			if !math.IsNaN(v) {
				s.Values[i] = (v - lo) / (hi - lo)
			}
		}
	default:
		return errors.Newf(errors.CodeConfigInvalid, "unknown transform %q", transform)
	}
	return nil
}

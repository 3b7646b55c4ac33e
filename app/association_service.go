package app

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gomas/domain/assoc"
	"gomas/domain/frame"
	"gomas/internal/config"
	"gomas/internal/logger"
	"gomas/internal/preprocess"
	"gomas/ports"
)

// AssociationService runs one association study: preprocessing, grouping,
// minimum-count filtering, and the fan-out/fan-in regression sweep.
type AssociationService struct {
	cfg    *config.Config
	fitter ports.ModelFitter
	log    *logger.Logger
}

// StudyResult is the aggregated output of one run
type StudyResult struct {
	RunID              string
	Model              string
	Results            []assoc.Result
	ExcludedDependents []string
	Runtime            time.Duration
}

// NewAssociationService creates an association service
func NewAssociationService(cfg *config.Config, fitter ports.ModelFitter, log *logger.Logger) *AssociationService {
	return &AssociationService{cfg: cfg, fitter: fitter, log: log}
}

// RunStudy executes the full study over the selected sample table and
// returns one result row per surviving (predictor, dependent) group, in
// deterministic dependent-then-predictor order.
func (s *AssociationService) RunStudy(ctx context.Context, f *frame.Frame) (*StudyResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	s.log.Info("run %s: %d samples, %d predictors, %d dependents, model %s",
		runID, f.Rows(), len(s.cfg.Roles.Predictors), len(s.cfg.Roles.Dependents), s.fitter.Name())

	// The pipeline mutates the role lists (dummy encoding, phenotype
	// exclusions); work on a copy so the config stays read-only.
	roles := frame.Roles{
		Predictors:            append([]string{}, s.cfg.Roles.Predictors...),
		Dependents:            append([]string{}, s.cfg.Roles.Dependents...),
		Covariates:            append([]string{}, s.cfg.Roles.Covariates...),
		CategoricalCovariates: append([]string{}, s.cfg.Roles.CategoricalCovariates...),
	}

	pipeline := preprocess.NewPipeline(s.cfg, s.log)
	f, err := pipeline.Run(f, &roles)
	if err != nil {
		return nil, err
	}

	excluded, err := preprocess.FilterByCount(f, &roles, s.cfg.MinCases, s.cfg.Quantitative, s.log)
	if err != nil {
		return nil, err
	}

	long, err := preprocess.Melt(f, &roles, s.log)
	if err != nil {
		return nil, err
	}

	groups := groupLongTable(long)
	s.log.Info("run %s: dispatching %d groups across %d workers", runID, len(groups), s.cfg.Threads)

	// Fan-out: one unit of work per group, no shared mutable state. Each
	// unit writes only its own slot, so the fan-in is the single
	// synchronization point and output order is independent of
	// completion order.
	results := make([]assoc.Result, len(groups))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Threads)
	for i, grp := range groups {
		g.Go(func() error {
			results[i] = s.fitGroup(grp, long.CovariateNames)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for i := range results {
		if results[i].Failed() {
			failed++
		}
	}
	runtime := time.Since(started)
	s.log.Info("run %s: %d groups completed (%d failed) in %s", runID, len(results), failed, runtime)

	return &StudyResult{
		RunID:              runID,
		Model:              s.fitter.Name(),
		Results:            results,
		ExcludedDependents: excluded,
		Runtime:            runtime,
	}, nil
}

// groupLongTable partitions the long table by (predictor, dependent). The
// melt stage iterates dependents outer and predictors inner, so first-seen
// group order is already the deterministic dependent-then-predictor output
// order.
func groupLongTable(long *assoc.LongTable) []*assoc.Group {
	index := make(map[string]*assoc.Group)
	var ordered []*assoc.Group
	for _, row := range long.Rows {
		key := row.Dependent + "\x00" + row.Predictor
		grp, ok := index[key]
		if !ok {
			grp = &assoc.Group{Predictor: row.Predictor, Dependent: row.Dependent}
			index[key] = grp
			ordered = append(ordered, grp)
		}
		grp.Rows = append(grp.Rows, row)
	}
	return ordered
}

// fitGroup runs one regression unit. It never returns an error: every
// failure becomes a labeled result row so one bad group cannot abort or
// corrupt its siblings.
func (s *AssociationService) fitGroup(grp *assoc.Group, covariateNames []string) assoc.Result {
	result := assoc.NewResult(grp.Predictor, grp.Dependent)

	// Group-local constant re-check. The global pre-flight already
	// rejected globally constant independents, but group-wise null
	// removal can leave a column constant within one group.
	activeCovs := make([]int, 0, len(covariateNames))
	for j := range covariateNames {
		if !columnConstant(grp.Rows, func(r assoc.LongRow) float64 { return r.Covariates[j] }) {
			activeCovs = append(activeCovs, j)
		} else {
			s.log.Debug("group (%s, %s): covariate %q removed due to constant values",
				grp.Predictor, grp.Dependent, covariateNames[j])
		}
	}

	if columnConstant(grp.Rows, func(r assoc.LongRow) float64 { return r.PredictorValue }) {
		s.log.Warn("predictor %s was removed due to constant values for %s, skipping analysis",
			grp.Predictor, grp.Dependent)
		result.FailedReason = assoc.ReasonConstantPredictor
		s.fillCounts(&result, grp.Rows)
		return result
	}

	// Drop group rows with nulls in the active independent set.
	rows := make([]assoc.LongRow, 0, len(grp.Rows))
	for _, r := range grp.Rows {
		if math.IsNaN(r.PredictorValue) {
			continue
		}
		ok := true
		for _, j := range activeCovs {
			if math.IsNaN(r.Covariates[j]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, r)
		}
	}

	s.fillCounts(&result, rows)

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, 0, 1+len(activeCovs))
		vec = append(vec, r.PredictorValue)
		for _, j := range activeCovs {
			vec = append(vec, r.Covariates[j])
		}
		x[i] = vec
		y[i] = r.DependentValue
	}

	fit, err := s.fitter.Fit(x, y)
	if err != nil {
		s.log.Error("error in %s regression for %s: %v", s.fitter.Name(), grp.Dependent, err)
		result.FailedReason = err.Error()
		return result
	}

	result.PValue = fit.PValue
	result.Beta = fit.Beta
	result.SE = fit.SE
	result.CILow = fit.CILow
	result.CIHigh = fit.CIHigh
	if !s.cfg.Quantitative {
		result.OR = math.Exp(fit.Beta)
	}
	return result
}

// fillCounts populates case/control/total counts at the group level. The
// dependent-level pre-filter counts are not reused here because
// predictor-level row removal can shift them.
func (s *AssociationService) fillCounts(result *assoc.Result, rows []assoc.LongRow) {
	result.TotalN = float64(len(rows))
	if s.cfg.Quantitative {
		return
	}
	cases := 0
	for _, r := range rows {
		if r.DependentValue == 1 {
			cases++
		}
	}
	result.Cases = float64(cases)
	result.Controls = float64(len(rows) - cases)
}

// columnConstant reports whether the extracted column has at most one
// distinct non-null value across the group
func columnConstant(rows []assoc.LongRow, extract func(assoc.LongRow) float64) bool {
	seen := make(map[float64]struct{})
	for _, r := range rows {
		v := extract(r)
		if math.IsNaN(v) {
			continue
		}
		seen[v] = struct{}{}
		if len(seen) > 1 {
			return false
		}
	}
	return true
}

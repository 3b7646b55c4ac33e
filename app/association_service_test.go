package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gomas/adapters/stats"
	"gomas/adapters/table"
	"gomas/domain/assoc"
	"gomas/domain/frame"
	"gomas/internal/config"
	"gomas/internal/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.EngineThreads = 2
	return cfg
}

func testLogger() *logger.Logger {
	return logger.NewLogger(logger.LogLevelError)
}

func buildFrame(t *testing.T, cols map[string][]float64, order []string) *frame.Frame {
	t.Helper()
	rows := 0
	for _, v := range cols {
		rows = len(v)
		break
	}
	f := frame.New(rows)
	for _, name := range order {
		if err := f.Append(frame.NewSeries(name, cols[name])); err != nil {
			t.Fatalf("building frame: %v", err)
		}
	}
	return f
}

// captureFitter records the design widths it was handed and returns a fixed
// fit, so engine behavior can be tested apart from the regression math.
type captureFitter struct {
	mu     sync.Mutex
	widths []int
	fit    assoc.FitResult
	err    error
}

func (f *captureFitter) Name() string { return "stub" }

func (f *captureFitter) Fit(x [][]float64, y []float64) (assoc.FitResult, error) {
	f.mu.Lock()
	if len(x) > 0 {
		f.widths = append(f.widths, len(x[0]))
	}
	f.mu.Unlock()
	return f.fit, f.err
}

func TestGroupLongTable(t *testing.T) {
	long := &assoc.LongTable{
		Rows: []assoc.LongRow{
			{Predictor: "p1", Dependent: "d1", PredictorValue: 1, DependentValue: 0},
			{Predictor: "p1", Dependent: "d1", PredictorValue: 2, DependentValue: 1},
			{Predictor: "p2", Dependent: "d1", PredictorValue: 3, DependentValue: 0},
			{Predictor: "p1", Dependent: "d2", PredictorValue: 4, DependentValue: 1},
		},
	}

	groups := groupLongTable(long)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}

	wantOrder := []struct{ dep, pred string }{
		{"d1", "p1"}, {"d1", "p2"}, {"d2", "p1"},
	}
	total := 0
	for i, want := range wantOrder {
		if groups[i].Dependent != want.dep || groups[i].Predictor != want.pred {
			t.Errorf("group %d = (%s, %s), want (%s, %s)",
				i, groups[i].Dependent, groups[i].Predictor, want.dep, want.pred)
		}
		total += len(groups[i].Rows)
	}
	if total != len(long.Rows) {
		t.Errorf("groups hold %d rows, want %d (partition must be complete)", total, len(long.Rows))
	}
}

func TestFitGroup(t *testing.T) {
	cfg := testConfig()
	cfg.Roles = frame.Roles{Predictors: []string{"p1"}, Dependents: []string{"d1"}}

	t.Run("constant predictor yields a labeled failure row", func(t *testing.T) {
		fitter := &captureFitter{}
		s := NewAssociationService(cfg, fitter, testLogger())
		grp := &assoc.Group{
			Predictor: "p1",
			Dependent: "d1",
			Rows: []assoc.LongRow{
				{PredictorValue: 2, DependentValue: 1},
				{PredictorValue: 2, DependentValue: 0},
				{PredictorValue: 2, DependentValue: 0},
			},
		}

		res := s.fitGroup(grp, nil)
		if res.FailedReason != assoc.ReasonConstantPredictor {
			t.Errorf("failed_reason = %q, want %q", res.FailedReason, assoc.ReasonConstantPredictor)
		}
		if res.TotalN != 3 || res.Cases != 1 || res.Controls != 2 {
			t.Errorf("counts = (%v, %v, %v), want (1, 2, 3)", res.Cases, res.Controls, res.TotalN)
		}
		if !math.IsNaN(res.Beta) || !math.IsNaN(res.PValue) {
			t.Error("statistics must stay missing on failure")
		}
		if len(fitter.widths) != 0 {
			t.Error("fitter must not run for a constant predictor")
		}
	})

	t.Run("constant covariate is dropped from the design", func(t *testing.T) {
		fitter := &captureFitter{fit: assoc.FitResult{Beta: 0.5, SE: 0.1, PValue: 0.01, CILow: 0.3, CIHigh: 0.7}}
		s := NewAssociationService(cfg, fitter, testLogger())
		grp := &assoc.Group{
			Predictor: "p1",
			Dependent: "d1",
			Rows: []assoc.LongRow{
				{PredictorValue: 1, DependentValue: 0, Covariates: []float64{5, 1.1}},
				{PredictorValue: 2, DependentValue: 1, Covariates: []float64{5, 2.2}},
				{PredictorValue: 3, DependentValue: 0, Covariates: []float64{5, 3.3}},
				{PredictorValue: 4, DependentValue: 1, Covariates: []float64{5, 4.4}},
			},
		}

		res := s.fitGroup(grp, []string{"c1", "c2"})
		if res.Failed() {
			t.Fatalf("unexpected failure: %s", res.FailedReason)
		}
		// Predictor plus the one surviving covariate.
		if len(fitter.widths) != 1 || fitter.widths[0] != 2 {
			t.Errorf("design widths = %v, want [2]", fitter.widths)
		}
	})

	t.Run("fitter error becomes the failure reason", func(t *testing.T) {
		fitter := &captureFitter{err: errSentinel("singular design matrix")}
		s := NewAssociationService(cfg, fitter, testLogger())
		grp := &assoc.Group{
			Predictor: "p1",
			Dependent: "d1",
			Rows: []assoc.LongRow{
				{PredictorValue: 1, DependentValue: 0},
				{PredictorValue: 2, DependentValue: 1},
			},
		}

		res := s.fitGroup(grp, nil)
		if res.FailedReason != "singular design matrix" {
			t.Errorf("failed_reason = %q", res.FailedReason)
		}
		if res.TotalN != 2 {
			t.Errorf("total_n = %v, want 2 (counts precede the fit)", res.TotalN)
		}
	})

	t.Run("null rows leave the group before counting", func(t *testing.T) {
		fitter := &captureFitter{fit: assoc.FitResult{Beta: 1}}
		s := NewAssociationService(cfg, fitter, testLogger())
		nan := math.NaN()
		grp := &assoc.Group{
			Predictor: "p1",
			Dependent: "d1",
			Rows: []assoc.LongRow{
				{PredictorValue: 1, DependentValue: 1, Covariates: []float64{1}},
				{PredictorValue: nan, DependentValue: 0, Covariates: []float64{2}},
				{PredictorValue: 3, DependentValue: 0, Covariates: []float64{nan}},
				{PredictorValue: 4, DependentValue: 0, Covariates: []float64{4}},
				{PredictorValue: 5, DependentValue: 1, Covariates: []float64{5}},
			},
		}

		res := s.fitGroup(grp, []string{"c1"})
		if res.TotalN != 3 || res.Cases != 2 || res.Controls != 1 {
			t.Errorf("counts = (%v, %v, %v), want (2, 1, 3)", res.Cases, res.Controls, res.TotalN)
		}
	})

	t.Run("odds ratio only in binary mode", func(t *testing.T) {
		fitter := &captureFitter{fit: assoc.FitResult{Beta: math.Log(2), SE: 0.1}}
		rows := []assoc.LongRow{
			{PredictorValue: 1, DependentValue: 0},
			{PredictorValue: 2, DependentValue: 1},
		}

		s := NewAssociationService(cfg, fitter, testLogger())
		res := s.fitGroup(&assoc.Group{Predictor: "p1", Dependent: "d1", Rows: rows}, nil)
		if math.Abs(res.OR-2) > 1e-12 {
			t.Errorf("OR = %v, want 2", res.OR)
		}

		qcfg := testConfig()
		qcfg.Quantitative = true
		qcfg.Roles = cfg.Roles
		s = NewAssociationService(qcfg, fitter, testLogger())
		res = s.fitGroup(&assoc.Group{Predictor: "p1", Dependent: "d1", Rows: rows}, nil)
		if !math.IsNaN(res.OR) {
			t.Errorf("OR = %v, want missing for quantitative traits", res.OR)
		}
		if !math.IsNaN(res.Cases) || !math.IsNaN(res.Controls) {
			t.Error("case/control counts must stay missing for quantitative traits")
		}
	})
}

// errSentinel is a minimal error for exercising failure paths
type errSentinel string

func (e errSentinel) Error() string { return string(e) }

func TestRunStudy(t *testing.T) {
	t.Run("binary end to end with firth", func(t *testing.T) {
		n := 100
		pred := make([]float64, n)
		cov := make([]float64, n)
		dep := make([]float64, n)
		for i := 0; i < n; i++ {
			pred[i] = float64(i % 10)
			cov[i] = float64(i % 7)
			if i < 30 {
				dep[i] = 1
			}
		}
		f := buildFrame(t, map[string][]float64{
			"exposure": pred,
			"age":      cov,
			"pheno":    dep,
		}, []string{"exposure", "age", "pheno"})

		cfg := testConfig()
		cfg.Roles = frame.Roles{
			Predictors: []string{"exposure"},
			Covariates: []string{"age"},
			Dependents: []string{"pheno"},
		}
		fitter, err := stats.ForConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}

		s := NewAssociationService(cfg, fitter, testLogger())
		study, err := s.RunStudy(context.Background(), f)
		if err != nil {
			t.Fatal(err)
		}
		if study.Model != "firth" {
			t.Errorf("model = %q, want firth", study.Model)
		}
		if len(study.Results) != 1 {
			t.Fatalf("got %d result rows, want 1", len(study.Results))
		}
		res := study.Results[0]
		if res.Failed() {
			t.Fatalf("unexpected failure: %s", res.FailedReason)
		}
		if res.Predictor != "exposure" || res.Dependent != "pheno" {
			t.Errorf("row = (%s, %s)", res.Predictor, res.Dependent)
		}
		if res.Cases != 30 || res.Controls != 70 || res.TotalN != 100 {
			t.Errorf("counts = (%v, %v, %v), want (30, 70, 100)", res.Cases, res.Controls, res.TotalN)
		}
		if math.IsNaN(res.PValue) || math.IsNaN(res.Beta) || math.IsNaN(res.OR) {
			t.Error("statistics missing on a successful fit")
		}
		if study.RunID == "" {
			t.Error("run ID not assigned")
		}
	})

	t.Run("dependents below the minimum count leave the study", func(t *testing.T) {
		n := 50
		pred := make([]float64, n)
		d1 := make([]float64, n)
		d2 := make([]float64, n)
		for i := 0; i < n; i++ {
			pred[i] = float64(i)
			if i%2 == 0 {
				d1[i] = 1
			}
			if i < 5 {
				d2[i] = 1
			}
		}
		f := buildFrame(t, map[string][]float64{
			"exposure": pred,
			"d1":       d1,
			"d2":       d2,
		}, []string{"exposure", "d1", "d2"})

		cfg := testConfig()
		cfg.MinCases = 10
		cfg.BinaryModel = "logistic"
		cfg.Roles = frame.Roles{
			Predictors: []string{"exposure"},
			Dependents: []string{"d1", "d2"},
		}
		fitter, err := stats.ForConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}

		s := NewAssociationService(cfg, fitter, testLogger())
		study, err := s.RunStudy(context.Background(), f)
		if err != nil {
			t.Fatal(err)
		}
		if len(study.ExcludedDependents) != 1 || study.ExcludedDependents[0] != "d2" {
			t.Errorf("excluded = %v, want [d2]", study.ExcludedDependents)
		}
		if len(study.Results) != 1 || study.Results[0].Dependent != "d1" {
			t.Errorf("results = %v, want the single d1 row", study.Results)
		}
	})

	t.Run("group failure does not abort sibling groups", func(t *testing.T) {
		n := 12
		pred := make([]float64, n)
		dOK := make([]float64, n)
		dBad := make([]float64, n)
		for i := 0; i < n; i++ {
			pred[i] = float64(i / 4) // 0,0,0,0,1,1,1,1,2,2,2,2
			if i%2 == 0 {
				dOK[i] = 1
			}
			// dBad is observed only where pred == 1, so the predictor is
			// constant within its group after the null drop.
			if i >= 4 && i < 8 {
				if i%2 == 0 {
					dBad[i] = 1
				}
			} else {
				dBad[i] = math.NaN()
			}
		}
		f := buildFrame(t, map[string][]float64{
			"exposure": pred,
			"d_ok":     dOK,
			"d_bad":    dBad,
		}, []string{"exposure", "d_ok", "d_bad"})

		cfg := testConfig()
		cfg.MinCases = 1
		cfg.BinaryModel = "firth"
		cfg.Roles = frame.Roles{
			Predictors: []string{"exposure"},
			Dependents: []string{"d_ok", "d_bad"},
		}
		fitter, err := stats.ForConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}

		s := NewAssociationService(cfg, fitter, testLogger())
		study, err := s.RunStudy(context.Background(), f)
		if err != nil {
			t.Fatal(err)
		}
		if len(study.Results) != 2 {
			t.Fatalf("got %d result rows, want 2", len(study.Results))
		}

		ok, bad := study.Results[0], study.Results[1]
		if ok.Dependent != "d_ok" || bad.Dependent != "d_bad" {
			t.Fatalf("row order = (%s, %s), want (d_ok, d_bad)", ok.Dependent, bad.Dependent)
		}
		if ok.Failed() {
			t.Errorf("healthy group failed: %s", ok.FailedReason)
		}
		if bad.FailedReason != assoc.ReasonConstantPredictor {
			t.Errorf("failed_reason = %q, want %q", bad.FailedReason, assoc.ReasonConstantPredictor)
		}
		if bad.TotalN != 4 || bad.Cases != 2 || bad.Controls != 2 {
			t.Errorf("failure row counts = (%v, %v, %v), want (2, 2, 4)", bad.Cases, bad.Controls, bad.TotalN)
		}
	})

	t.Run("categorical covariate from file to results", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("exposure,site,pheno\n")
		sites := []string{"A", "B", "C"}
		for i := 0; i < 42; i++ {
			fmt.Fprintf(&b, "%d,%s,%d\n", i%8, sites[i%3], i%2)
		}
		dir := t.TempDir()
		input := filepath.Join(dir, "cohort.csv")
		if err := os.WriteFile(input, []byte(b.String()), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg := testConfig()
		cfg.MinCases = 5
		cfg.BinaryModel = "logistic"
		cfg.Roles = frame.Roles{
			Predictors:            []string{"exposure"},
			Covariates:            []string{"site"},
			CategoricalCovariates: []string{"site"},
			Dependents:            []string{"pheno"},
		}

		reader := table.NewReader(input, ",", nil, true)
		f, err := reader.Read(cfg.Roles.Selected())
		if err != nil {
			t.Fatal(err)
		}

		fitter, err := stats.ForConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}
		s := NewAssociationService(cfg, fitter, testLogger())
		study, err := s.RunStudy(context.Background(), f)
		if err != nil {
			t.Fatalf("study rejected a string-level categorical covariate: %v", err)
		}
		if len(study.Results) != 1 {
			t.Fatalf("got %d result rows, want 1", len(study.Results))
		}
		res := study.Results[0]
		if res.Failed() {
			t.Fatalf("unexpected failure: %s", res.FailedReason)
		}
		if res.TotalN != 42 || res.Cases != 21 || res.Controls != 21 {
			t.Errorf("counts = (%v, %v, %v), want (21, 21, 42)", res.Cases, res.Controls, res.TotalN)
		}

		output := filepath.Join(dir, "results.csv")
		if err := table.NewWriter(output, ",").Write(study.Results); err != nil {
			t.Fatal(err)
		}
		written, err := table.NewReader(output, ",", nil, true).Read([]string{"predictor", "total_n"})
		if err != nil {
			t.Fatal(err)
		}
		if written.Rows() != 1 || written.MustColumn("predictor").RawAt(0) != "exposure" {
			t.Error("written results do not round-trip")
		}
	})

	t.Run("output order is deterministic under concurrency", func(t *testing.T) {
		n := 60
		cols := map[string][]float64{}
		order := []string{"p1", "p2", "d1", "d2", "d3"}
		for _, name := range order {
			v := make([]float64, n)
			cols[name] = v
		}
		for i := 0; i < n; i++ {
			cols["p1"][i] = float64(i % 5)
			cols["p2"][i] = float64(i % 3)
			cols["d1"][i] = float64(i % 2)
			cols["d2"][i] = float64((i / 2) % 2)
			cols["d3"][i] = float64((i / 3) % 2)
		}
		f := buildFrame(t, cols, order)

		cfg := testConfig()
		cfg.Threads = 4
		cfg.EngineThreads = 4
		cfg.MinCases = 5
		cfg.BinaryModel = "logistic"
		cfg.Roles = frame.Roles{
			Predictors: []string{"p1", "p2"},
			Dependents: []string{"d1", "d2", "d3"},
		}
		fitter, err := stats.ForConfig(cfg)
		if err != nil {
			t.Fatal(err)
		}

		s := NewAssociationService(cfg, fitter, testLogger())
		study, err := s.RunStudy(context.Background(), f)
		if err != nil {
			t.Fatal(err)
		}

		want := []struct{ dep, pred string }{
			{"d1", "p1"}, {"d1", "p2"},
			{"d2", "p1"}, {"d2", "p2"},
			{"d3", "p1"}, {"d3", "p2"},
		}
		if len(study.Results) != len(want) {
			t.Fatalf("got %d rows, want %d", len(study.Results), len(want))
		}
		for i, w := range want {
			if study.Results[i].Dependent != w.dep || study.Results[i].Predictor != w.pred {
				t.Errorf("row %d = (%s, %s), want (%s, %s)",
					i, study.Results[i].Dependent, study.Results[i].Predictor, w.dep, w.pred)
			}
		}
	})
}

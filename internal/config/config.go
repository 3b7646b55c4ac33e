package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gomas/domain/frame"
	"gomas/internal/columns"
	"gomas/internal/errors"
	"gomas/internal/logger"
)

// Valid strategy and model names
var (
	MissingStrategies = []string{"drop", "forward", "backward", "min", "max", "mean", "zero", "one"}
	Transforms        = []string{"", "standard", "min-max"}
	LinearModels      = []string{"lm", "glm"}
	BinaryModels      = []string{"firth", "logistic"}
	FrameTypes        = []string{"eager", "lazy"}
)

// Config is the complete run configuration. It is assembled once from CLI
// flags and the environment, validated, and read-only afterwards.
type Config struct {
	Input      string
	Output     string
	Separator  string
	NullValues []string

	// Raw column selections; ResolveRoles turns them into Roles.
	Predictors            []string
	Dependents            []string
	DependentIndices      string
	Covariates            []string
	CovariateIndices      string
	CategoricalCovariates []string

	Roles frame.Roles

	Missing        string
	Transform      string
	Quantitative   bool
	MinCases       int
	LinearModel    string
	BinaryModel    string
	DummyDropFirst bool

	Phewas                bool
	PhewasSexCol          string
	PhewasDropSexSpecific bool

	FrameType     string
	Threads       int
	EngineThreads int

	StoreResults bool
	DatabaseURL  string
	ReportPath   string
	Verbose      bool
}

// Default returns a config with the documented defaults
func Default() *Config {
	return &Config{
		Separator:             ",",
		Missing:               "drop",
		MinCases:              20,
		LinearModel:           "lm",
		BinaryModel:           "firth",
		DummyDropFirst:        true,
		PhewasSexCol:          "sex",
		PhewasDropSexSpecific: true,
		FrameType:             "lazy",
		Threads:               1,
		EngineThreads:         runtime.NumCPU(),
	}
}

// Validate performs the fatal pre-flight checks and clamps the thread
// budgets, warning through the logger when it downgrades a value.
func (c *Config) Validate(log *logger.Logger) error {
	if _, err := os.Stat(c.Input); err != nil {
		return errors.Newf(errors.CodeIOError, "input file not found: %s", c.Input)
	}
	outDir := filepath.Dir(c.Output)
	if _, err := os.Stat(outDir); err != nil {
		return errors.Newf(errors.CodeIOError, "output directory not found: %s", outDir)
	}
	if len(c.Predictors) == 0 {
		return errors.ConfigInvalid("no predictor variables specified")
	}
	if len(c.Dependents) == 0 && c.DependentIndices == "" {
		return errors.ConfigInvalid("no dependent variables specified")
	}
	if len(c.CategoricalCovariates) > 0 && len(c.Covariates) == 0 && c.CovariateIndices == "" {
		return errors.ConfigInvalid("categorical covariates specified without specifying covariates")
	}
	if !contains(MissingStrategies, c.Missing) {
		return errors.Newf(errors.CodeConfigInvalid, "unknown missing-value strategy %q, valid strategies are %v", c.Missing, MissingStrategies)
	}
	if !contains(Transforms, c.Transform) {
		return errors.Newf(errors.CodeConfigInvalid, "unknown transform %q, valid transforms are %v", c.Transform, Transforms[1:])
	}
	if !contains(LinearModels, c.LinearModel) {
		return errors.Newf(errors.CodeConfigInvalid, "unknown linear model %q, valid models are %v", c.LinearModel, LinearModels)
	}
	if !contains(BinaryModels, c.BinaryModel) {
		return errors.Newf(errors.CodeConfigInvalid, "unknown binary model %q, valid models are %v", c.BinaryModel, BinaryModels)
	}
	if !contains(FrameTypes, c.FrameType) {
		return errors.Newf(errors.CodeConfigInvalid, "unknown frame type %q, valid types are %v", c.FrameType, FrameTypes)
	}
	if c.MinCases < 1 {
		return errors.ConfigInvalid("minimum case count must be at least 1")
	}
	if c.StoreResults && c.DatabaseURL == "" {
		return errors.ConfigInvalid("--store-results requires DATABASE_URL")
	}

	if c.EngineThreads < 1 {
		c.EngineThreads = 1
	}
	if c.EngineThreads > runtime.NumCPU() {
		log.Warn("engine threads (%d) exceed available CPUs (%d), clamping to %d",
			c.EngineThreads, runtime.NumCPU(), runtime.NumCPU())
		c.EngineThreads = runtime.NumCPU()
	}
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.Threads > c.EngineThreads {
		log.Warn("compute threads (%d) exceed engine threads (%d), clamping to %d",
			c.Threads, c.EngineThreads, c.EngineThreads)
		c.Threads = c.EngineThreads
	}
	return nil
}

// ResolveRoles resolves the raw column selections against the input header
// and fills c.Roles. Name lists win over index expressions, matching the
// original flag precedence.
func (c *Config) ResolveRoles(header []string) error {
	if err := columns.ResolveNames(c.Predictors, header); err != nil {
		return errors.Wrap(err, "predictor resolution failed")
	}

	dependents := c.Dependents
	if len(dependents) > 0 {
		if err := columns.ResolveNames(dependents, header); err != nil {
			return errors.Wrap(err, "dependent resolution failed")
		}
	} else {
		var err error
		dependents, err = columns.ResolveIndices(c.DependentIndices, header)
		if err != nil {
			return errors.Wrap(err, "dependent resolution failed")
		}
	}
	if len(dependents) == 0 {
		return errors.ConfigInvalid("no dependent variables specified")
	}

	covariates := c.Covariates
	if len(covariates) > 0 {
		if err := columns.ResolveNames(covariates, header); err != nil {
			return errors.Wrap(err, "covariate resolution failed")
		}
	} else if c.CovariateIndices != "" {
		var err error
		covariates, err = columns.ResolveIndices(c.CovariateIndices, header)
		if err != nil {
			return errors.Wrap(err, "covariate resolution failed")
		}
	}

	for _, cat := range c.CategoricalCovariates {
		if !contains(covariates, cat) {
			return errors.Newf(errors.CodeConfigInvalid,
				"categorical covariate %q not found in given covariates %v", cat, covariates)
		}
	}

	c.Roles = frame.Roles{
		Predictors:            append([]string{}, c.Predictors...),
		Dependents:            dependents,
		Covariates:            covariates,
		CategoricalCovariates: append([]string{}, c.CategoricalCovariates...),
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gomas/adapters/postgres"
	"gomas/adapters/stats"
	"gomas/adapters/table"
	"gomas/app"
	"gomas/internal/config"
	"gomas/internal/logger"
	"gomas/internal/report"
)

func main() {
	// Optional .env for DATABASE_URL and LOG_LEVEL
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cmd := &cobra.Command{
		Use:   "gomas",
		Short: "Multiple association study over a tabular dataset",
		Long: `gomas tests association between predictor variables and many dependent
(phenotype) variables while adjusting for covariates, and emits one result
row per (predictor, dependent) pair.

Example:
  gomas -i cohort.csv -o results.csv -p exposure -d pheno1 pheno2 -c age sex \
        --binary-model firth --min-cases 20`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Input, "input", "i", "", "input file path")
	flags.StringVarP(&cfg.Output, "output", "o", "", "output file path")
	flags.StringVarP(&cfg.Separator, "separator", "s", ",", "column separator")
	flags.StringSliceVarP(&cfg.Predictors, "predictors", "p", nil, "predictor column names, tested independently")
	flags.StringSliceVarP(&cfg.Dependents, "dependents", "d", nil, "dependent variable column names")
	flags.StringVar(&cfg.DependentIndices, "dependent-indices", "", "dependent column indices (e.g. 2, 2-5, 2-, -5); ignored if --dependents is used; ranges exclude the end index")
	flags.StringSliceVarP(&cfg.Covariates, "covariates", "c", nil, "covariate column names")
	flags.StringVar(&cfg.CovariateIndices, "covariate-indices", "", "covariate column indices; ignored if --covariates is used")
	flags.StringSliceVar(&cfg.CategoricalCovariates, "categorical-covariates", nil, "covariates to one-hot encode")
	flags.StringSliceVar(&cfg.NullValues, "null-values", nil, "tokens treated as missing values")
	flags.BoolVar(&cfg.Quantitative, "quantitative", false, "dependent variables are quantitative traits")
	flags.StringVarP(&cfg.Missing, "missing", "m", "drop", "missing-value strategy for independents: drop, forward, backward, min, max, mean, zero, one")
	flags.StringVarP(&cfg.Transform, "transform", "t", "", "continuous transform for independents: standard or min-max")
	flags.IntVar(&cfg.MinCases, "min-cases", 20, "minimum cases and controls per dependent (binary mode)")
	flags.StringVar(&cfg.LinearModel, "linear-model", "lm", "linear model for quantitative traits: lm or glm")
	flags.StringVar(&cfg.BinaryModel, "binary-model", "firth", "binary model: firth or logistic")
	flags.BoolVar(&cfg.DummyDropFirst, "dummy-drop-first", true, "drop the reference level when one-hot encoding")
	flags.BoolVar(&cfg.Phewas, "phewas", false, "dependent variables are phecodes")
	flags.StringVar(&cfg.PhewasSexCol, "phewas-sex-col", "sex", "sex covariate column (male=0, female=1)")
	flags.BoolVar(&cfg.PhewasDropSexSpecific, "phewas-drop-sex-specific", true, "drop sex-restricted phenotypes instead of excluding mismatched observations")
	flags.StringVar(&cfg.FrameType, "frame-type", "lazy", "input scan mode: eager or lazy")
	flags.IntVar(&cfg.Threads, "threads", 1, "compute threads for the regression worker pool")
	flags.IntVar(&cfg.EngineThreads, "engine-threads", cfg.EngineThreads, "thread budget for the frame layer")
	flags.BoolVar(&cfg.StoreResults, "store-results", false, "also persist results to DATABASE_URL")
	flags.StringVar(&cfg.ReportPath, "report", "", "write a run summary (markdown, or html by extension)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "more verbose logging")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("predictors")

	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	log := logger.NewDefaultLogger()
	if cfg.Verbose {
		log = logger.NewLogger(logger.LogLevelDebug)
	}

	if err := cfg.Validate(log); err != nil {
		return err
	}

	reader := table.NewReader(cfg.Input, cfg.Separator, cfg.NullValues, cfg.FrameType == "lazy")
	header, err := reader.Header()
	if err != nil {
		return err
	}
	log.Info("%d columns found in input file", len(header))

	if err := cfg.ResolveRoles(header); err != nil {
		return err
	}

	f, err := reader.Read(cfg.Roles.Selected())
	if err != nil {
		return err
	}

	fitter, err := stats.ForConfig(cfg)
	if err != nil {
		return err
	}

	service := app.NewAssociationService(cfg, fitter, log)
	study, err := service.RunStudy(cmd.Context(), f)
	if err != nil {
		return err
	}

	writer := table.NewWriter(cfg.Output, cfg.Separator)
	if err := writer.Write(study.Results); err != nil {
		return err
	}
	log.Info("wrote %d result rows to %s", len(study.Results), cfg.Output)

	if cfg.StoreResults {
		store, err := postgres.NewResultRepository(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := store.SaveRun(cmd.Context(), study.RunID, study.Results); err != nil {
			return err
		}
		log.Info("stored run %s in results database", study.RunID)
	}

	if cfg.ReportPath != "" {
		if err := report.Write(cfg.ReportPath, study); err != nil {
			return err
		}
		log.Info("wrote run summary to %s", cfg.ReportPath)
	}
	return nil
}

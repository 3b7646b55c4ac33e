// Package postgres persists association results for later querying.
package postgres

import (
	"context"
	"database/sql"
	"math"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gomas/domain/assoc"
	"gomas/internal/errors"
	"gomas/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS association_results (
	run_id        TEXT NOT NULL,
	predictor     TEXT NOT NULL,
	dependent     TEXT NOT NULL,
	pval          DOUBLE PRECISION,
	beta          DOUBLE PRECISION,
	se            DOUBLE PRECISION,
	odds_ratio    DOUBLE PRECISION,
	ci_low        DOUBLE PRECISION,
	ci_high       DOUBLE PRECISION,
	cases         DOUBLE PRECISION,
	controls      DOUBLE PRECISION,
	total_n       DOUBLE PRECISION,
	failed_reason TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, predictor, dependent)
)`

// resultRepository implements the ResultStore interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository connects to the database and ensures the results table exists
func NewResultRepository(databaseURL string) (ports.ResultStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to results database")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "creating association_results table")
	}
	return &resultRepository{db: db}, nil
}

// SaveRun inserts all result rows for one run in a single transaction
func (r *resultRepository) SaveRun(ctx context.Context, runID string, results []assoc.Result) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning results transaction")
	}
	defer tx.Rollback()

	query := `INSERT INTO association_results (
		run_id, predictor, dependent, pval, beta, se, odds_ratio,
		ci_low, ci_high, cases, controls, total_n, failed_reason
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for i := range results {
		res := &results[i]
		_, err := tx.ExecContext(ctx, query,
			runID, res.Predictor, res.Dependent,
			nullable(res.PValue), nullable(res.Beta), nullable(res.SE), nullable(res.OR),
			nullable(res.CILow), nullable(res.CIHigh),
			nullable(res.Cases), nullable(res.Controls), nullable(res.TotalN),
			res.FailedReason,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting result for (%s, %s)", res.Predictor, res.Dependent)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing results transaction")
	}
	return nil
}

// nullable maps NaN statistics to SQL NULL
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

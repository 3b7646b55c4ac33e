package ports

import (
	"context"

	"gomas/domain/assoc"
	"gomas/domain/frame"
)

// TableReader loads the input sample table
type TableReader interface {
	// Header returns the column names without reading the body
	Header() ([]string, error)
	// Read loads the full table restricted to the given columns
	Read(columns []string) (*frame.Frame, error)
}

// ResultWriter serializes the aggregated result table
type ResultWriter interface {
	Write(results []assoc.Result) error
}

// ResultStore persists result rows for a run, keyed by run ID
type ResultStore interface {
	SaveRun(ctx context.Context, runID string, results []assoc.Result) error
}

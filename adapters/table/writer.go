package table

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gomas/domain/assoc"
	"gomas/internal/errors"
	"gomas/ports"
)

// resultHeader is the output column order, matching the Result fields
var resultHeader = []string{
	"predictor", "dependent", "pval", "beta", "se", "OR",
	"ci_low", "ci_high", "cases", "controls", "total_n", "failed_reason",
}

// Writer serializes the aggregated result table, as CSV-style delimited
// text or as .xlsx depending on the output extension.
type Writer struct {
	path      string
	separator rune
}

var _ ports.ResultWriter = (*Writer)(nil)

// NewWriter creates a writer for the given output path
func NewWriter(path string, separator string) *Writer {
	sep := ','
	if separator != "" {
		sep = []rune(separator)[0]
	}
	return &Writer{path: path, separator: sep}
}

// Write writes one row per association result
func (w *Writer) Write(results []assoc.Result) error {
	if strings.ToLower(filepath.Ext(w.path)) == ".xlsx" {
		return w.writeExcel(results)
	}
	return w.writeDelimited(results)
}

func (w *Writer) writeDelimited(results []assoc.Result) error {
	file, err := os.Create(w.path)
	if err != nil {
		return errors.Wrapf(err, "creating output file %s", w.path)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	cw.Comma = w.separator
	if err := cw.Write(resultHeader); err != nil {
		return errors.Wrapf(err, "writing output file %s", w.path)
	}
	for i := range results {
		if err := cw.Write(resultRecord(&results[i])); err != nil {
			return errors.Wrapf(err, "writing output file %s", w.path)
		}
	}
	cw.Flush()
	return errors.Wrapf(cw.Error(), "writing output file %s", w.path)
}

func (w *Writer) writeExcel(results []assoc.Result) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	header := make([]interface{}, len(resultHeader))
	for i, h := range resultHeader {
		header[i] = h
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "writing output file %s", w.path)
	}
	for i := range results {
		record := resultRecord(&results[i])
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrapf(err, "writing output file %s", w.path)
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing output file %s", w.path)
		}
	}
	return errors.Wrapf(file.SaveAs(w.path), "writing output file %s", w.path)
}

func resultRecord(r *assoc.Result) []string {
	return []string{
		r.Predictor,
		r.Dependent,
		formatStat(r.PValue),
		formatStat(r.Beta),
		formatStat(r.SE),
		formatStat(r.OR),
		formatStat(r.CILow),
		formatStat(r.CIHigh),
		formatStat(r.Cases),
		formatStat(r.Controls),
		formatStat(r.TotalN),
		r.FailedReason,
	}
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

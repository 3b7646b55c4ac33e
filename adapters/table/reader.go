// Package table reads and writes the delimited (or xlsx) sample and result
// tables.
package table

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gomas/domain/frame"
	"gomas/internal/errors"
	"gomas/ports"
)

// Reader loads the input sample table. CSV-style files honor the
// configured separator and the eager/lazy scan mode; .xlsx files are read
// through excelize.
type Reader struct {
	path       string
	fileType   string // "delimited" or "xlsx"
	separator  rune
	nullTokens map[string]struct{}
	lazy       bool
}

var _ ports.TableReader = (*Reader)(nil)

// NewReader creates a reader for the given input path
func NewReader(path string, separator string, nullValues []string, lazy bool) *Reader {
	fileType := "delimited"
	if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
		fileType = "xlsx"
	}
	sep := ','
	if separator != "" {
		sep = []rune(separator)[0]
	}
	nulls := make(map[string]struct{}, len(nullValues))
	for _, v := range nullValues {
		nulls[v] = struct{}{}
	}
	return &Reader{
		path:       path,
		fileType:   fileType,
		separator:  sep,
		nullTokens: nulls,
		lazy:       lazy,
	}
}

// Header returns the column names without reading the body
func (r *Reader) Header() ([]string, error) {
	switch r.fileType {
	case "xlsx":
		rows, err := r.readExcelRows()
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, errors.Newf(errors.CodeIOError, "input file %s is empty", r.path)
		}
		return rows[0], nil
	default:
		file, err := os.Open(r.path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening input file %s", r.path)
		}
		defer file.Close()
		cr := csv.NewReader(file)
		cr.Comma = r.separator
		header, err := cr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "reading header of %s", r.path)
		}
		return header, nil
	}
}

// Read loads the table restricted to the given columns
func (r *Reader) Read(columns []string) (*frame.Frame, error) {
	switch r.fileType {
	case "xlsx":
		rows, err := r.readExcelRows()
		if err != nil {
			return nil, err
		}
		return r.buildFrame(rows, columns)
	default:
		return r.readDelimited(columns)
	}
}

func (r *Reader) readDelimited(columns []string) (*frame.Frame, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening input file %s", r.path)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.Comma = r.separator
	cr.FieldsPerRecord = -1

	if r.lazy {
		// Streaming scan: rows go straight into the column builders
		// without an intermediate record buffer.
		header, err := cr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "reading header of %s", r.path)
		}
		builders, indices, err := newBuilders(header, columns)
		if err != nil {
			return nil, err
		}
		for {
			record, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", r.path)
			}
			r.appendRecord(builders, indices, record)
		}
		return buildersToFrame(builders)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", r.path)
	}
	return r.buildFrame(records, columns)
}

func (r *Reader) readExcelRows() ([][]string, error) {
	file, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening input file %s", r.path)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Newf(errors.CodeIOError, "input file %s has no sheets", r.path)
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %q of %s", sheets[0], r.path)
	}
	return rows, nil
}

func (r *Reader) buildFrame(rows [][]string, columns []string) (*frame.Frame, error) {
	if len(rows) == 0 {
		return nil, errors.Newf(errors.CodeIOError, "input file %s is empty", r.path)
	}
	builders, indices, err := newBuilders(rows[0], columns)
	if err != nil {
		return nil, err
	}
	for _, record := range rows[1:] {
		r.appendRecord(builders, indices, record)
	}
	return buildersToFrame(builders)
}

type columnBuilder struct {
	name   string
	values []float64
	raw    []string
}

func newBuilders(header []string, columns []string) ([]*columnBuilder, []int, error) {
	position := make(map[string]int, len(header))
	for i, name := range header {
		position[name] = i
	}
	builders := make([]*columnBuilder, len(columns))
	indices := make([]int, len(columns))
	for i, name := range columns {
		pos, ok := position[name]
		if !ok {
			return nil, nil, errors.Newf(errors.CodeValidationError, "column %q not found in input file", name)
		}
		builders[i] = &columnBuilder{name: name}
		indices[i] = pos
	}
	return builders, indices, nil
}

func (r *Reader) appendRecord(builders []*columnBuilder, indices []int, record []string) {
	for i, b := range builders {
		pos := indices[i]
		token := ""
		if pos < len(record) {
			token = strings.TrimSpace(record[pos])
		}
		if _, isNull := r.nullTokens[token]; isNull || token == "" {
			b.values = append(b.values, math.NaN())
			b.raw = append(b.raw, "")
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			// Non-numeric token: kept as a raw categorical level, NaN
			// in the numeric view.
			v = math.NaN()
		}
		b.values = append(b.values, v)
		b.raw = append(b.raw, token)
	}
}

func buildersToFrame(builders []*columnBuilder) (*frame.Frame, error) {
	rows := 0
	if len(builders) > 0 {
		rows = len(builders[0].values)
	}
	f := frame.New(rows)
	for _, b := range builders {
		s := &frame.Series{Name: b.name, Values: b.values, Raw: b.raw}
		if err := f.Append(s); err != nil {
			return nil, errors.Wrap(err, "building frame")
		}
	}
	return f, nil
}

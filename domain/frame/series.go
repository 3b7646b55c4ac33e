package frame

import (
	"math"
	"strconv"
)

// Series is a single named column. Values holds the numeric view with NaN
// marking missing entries; Raw keeps the original token for each row
// (empty string = missing) so categorical levels survive numeric parsing.
type Series struct {
	Name   string
	Values []float64
	Raw    []string
}

// NewSeries creates a series from numeric values with no raw tokens
func NewSeries(name string, values []float64) *Series {
	return &Series{Name: name, Values: values}
}

// Len returns the number of rows in the series
func (s *Series) Len() int {
	return len(s.Values)
}

// IsNull reports whether the value at row i is missing
func (s *Series) IsNull(i int) bool {
	return math.IsNaN(s.Values[i])
}

// NonNull returns the non-missing values in row order
func (s *Series) NonNull() []float64 {
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// NullCount returns the number of missing values
func (s *Series) NullCount() int {
	count := 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			count++
		}
	}
	return count
}

// DistinctNonNull returns the number of distinct non-missing values
func (s *Series) DistinctNonNull() int {
	seen := make(map[float64]struct{})
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// RawAt returns the raw token for row i, falling back to the empty string
// when the series was built without tokens and the value is missing.
func (s *Series) RawAt(i int) string {
	if i < len(s.Raw) {
		return s.Raw[i]
	}
	return ""
}

// Token returns the categorical level for row i: the raw token when one was
// kept, otherwise the numeric value rendered as a level name. Empty string
// means missing. String-level columns carry NaN in Values, so categorical
// handling must go through tokens, never the numeric view.
func (s *Series) Token(i int) string {
	if tok := s.RawAt(i); tok != "" {
		return tok
	}
	if math.IsNaN(s.Values[i]) {
		return ""
	}
	return strconv.FormatFloat(s.Values[i], 'g', -1, 64)
}

// DistinctTokens returns the number of distinct non-missing levels
func (s *Series) DistinctTokens() int {
	seen := make(map[string]struct{})
	for i := range s.Values {
		if tok := s.Token(i); tok != "" {
			seen[tok] = struct{}{}
		}
	}
	return len(seen)
}

// IsConstant reports whether the series has exactly one distinct non-missing value
func (s *Series) IsConstant() bool {
	return s.DistinctNonNull() == 1
}

// Copy returns a deep copy of the series
func (s *Series) Copy() *Series {
	out := &Series{Name: s.Name, Values: make([]float64, len(s.Values))}
	copy(out.Values, s.Values)
	if s.Raw != nil {
		out.Raw = make([]string, len(s.Raw))
		copy(out.Raw, s.Raw)
	}
	return out
}

// Package columns resolves requested column names and index-range
// expressions against the input header.
package columns

import (
	"strconv"
	"strings"

	"gomas/internal/errors"
)

// ResolveNames checks that every requested name exists in the header
func ResolveNames(names []string, header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	for _, name := range names {
		if _, ok := present[name]; !ok {
			return errors.Newf(errors.CodeValidationError, "column %q not found in input file", name)
		}
	}
	return nil
}

// ResolveIndices expands an index-range expression against the header and
// returns the matching column names. Accepts comma-separated indices and
// start-end / start- / -end ranges; ranges include start and exclude end.
func ResolveIndices(expr string, header []string) ([]string, error) {
	if strings.Contains(expr, ",") {
		var out []string
		for _, part := range strings.Split(expr, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			names, err := ResolveIndices(part, header)
			if err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
		return out, nil
	}

	expr = strings.TrimSpace(expr)
	if !strings.Contains(expr, "-") {
		idx, err := strconv.Atoi(expr)
		if err != nil {
			return nil, errors.Newf(errors.CodeValidationError, "invalid index format, must use '-' for a range: %q", expr)
		}
		if idx < 0 || idx >= len(header) {
			return nil, errors.Newf(errors.CodeValidationError,
				"index %d out of range for %d columns in input file", idx, len(header))
		}
		return []string{header[idx]}, nil
	}

	parts := strings.SplitN(expr, "-", 2)
	start, end := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	startIdx := 0
	if start != "" {
		var err error
		startIdx, err = strconv.Atoi(start)
		if err != nil {
			return nil, errors.Newf(errors.CodeValidationError, "invalid range start %q in %q", start, expr)
		}
	}
	if startIdx < 0 || startIdx >= len(header) {
		return nil, errors.Newf(errors.CodeValidationError,
			"start index %d out of range for %d columns in input file", startIdx, len(header))
	}

	endIdx := len(header)
	if end != "" {
		var err error
		endIdx, err = strconv.Atoi(end)
		if err != nil {
			return nil, errors.Newf(errors.CodeValidationError, "invalid range end %q in %q", end, expr)
		}
		if endIdx > len(header) {
			return nil, errors.Newf(errors.CodeValidationError,
				"end index %d out of range for %d columns; use %d- for all remaining columns", endIdx, len(header), startIdx)
		}
	}
	if endIdx < startIdx {
		return nil, errors.Newf(errors.CodeValidationError, "range end before start in %q", expr)
	}
	return append([]string{}, header[startIdx:endIdx]...), nil
}

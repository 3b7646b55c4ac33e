package frame

import (
	"fmt"
)

// Frame is a column-oriented table of samples. Column names are unique and
// every column has the same length.
type Frame struct {
	names []string
	cols  map[string]*Series
	rows  int
}

// New creates an empty frame expecting columns of the given row count
func New(rows int) *Frame {
	return &Frame{
		cols: make(map[string]*Series),
		rows: rows,
	}
}

// Append adds a column to the frame
func (f *Frame) Append(s *Series) error {
	if _, exists := f.cols[s.Name]; exists {
		return fmt.Errorf("duplicate column name %q", s.Name)
	}
	if s.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", s.Name, s.Len(), f.rows)
	}
	f.names = append(f.names, s.Name)
	f.cols[s.Name] = s
	return nil
}

// Column returns the named column
func (f *Frame) Column(name string) (*Series, bool) {
	s, ok := f.cols[name]
	return s, ok
}

// MustColumn returns the named column, panicking if absent. Callers use it
// only after role resolution has verified the name against the header.
func (f *Frame) MustColumn(name string) *Series {
	s, ok := f.cols[name]
	if !ok {
		panic(fmt.Sprintf("column %q not in frame", name))
	}
	return s
}

// Names returns the column names in insertion order
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Rows returns the number of rows
func (f *Frame) Rows() int {
	return f.rows
}

// NumCols returns the number of columns
func (f *Frame) NumCols() int {
	return len(f.names)
}

// HasColumn reports whether the frame contains the named column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Select returns a new frame with only the requested columns, sharing the
// underlying series.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := New(f.rows)
	for _, name := range names {
		s, ok := f.cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in frame", name)
		}
		if err := out.Append(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Drop returns a new frame without the named columns, sharing the
// underlying series.
func (f *Frame) Drop(names ...string) *Frame {
	dropped := make(map[string]struct{}, len(names))
	for _, name := range names {
		dropped[name] = struct{}{}
	}
	out := New(f.rows)
	for _, name := range f.names {
		if _, skip := dropped[name]; skip {
			continue
		}
		out.names = append(out.names, name)
		out.cols[name] = f.cols[name]
	}
	return out
}

// Replace swaps the named column for a new series of the same length,
// keeping its position.
func (f *Frame) Replace(name string, s *Series) error {
	old, ok := f.cols[name]
	if !ok {
		return fmt.Errorf("column %q not in frame", name)
	}
	if s.Len() != old.Len() {
		return fmt.Errorf("replacement for %q has %d rows, frame has %d", name, s.Len(), f.rows)
	}
	if s.Name != name {
		for i, n := range f.names {
			if n == name {
				f.names[i] = s.Name
				break
			}
		}
		delete(f.cols, name)
	}
	f.cols[s.Name] = s
	return nil
}

// FilterRows returns a new frame keeping only rows where keep[i] is true
func (f *Frame) FilterRows(keep []bool) *Frame {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	out := New(kept)
	for _, name := range f.names {
		src := f.cols[name]
		dst := &Series{Name: name, Values: make([]float64, 0, kept)}
		if src.Raw != nil {
			dst.Raw = make([]string, 0, kept)
		}
		for i, k := range keep {
			if !k {
				continue
			}
			dst.Values = append(dst.Values, src.Values[i])
			if src.Raw != nil {
				dst.Raw = append(dst.Raw, src.Raw[i])
			}
		}
		out.names = append(out.names, name)
		out.cols[name] = dst
	}
	return out
}

// Package frame provides the time-indexed table consumed and produced by the
// flux preparation operations. A Frame couples an ordered set of typed columns
// with a shared time index; every column has exactly one value per row label.
package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/index"
)

// Frame represents a table of typed columns sharing one time index
type Frame struct {
	index   *index.Index
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a Frame from an index and a set of columns. The Frame takes
// ownership of the passed series. Every column must match the index length and
// column names must be unique.
func New(idx *index.Index, cols ...ISeries) (*Frame, error) {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(cols))

	for _, s := range cols {
		name := s.Name()
		if _, exists := columns[name]; exists {
			return nil, errors.NewInvalidInputError("Frame", fmt.Sprintf("duplicate column name '%s'", name))
		}
		if s.Len() != idx.Len() {
			return nil, errors.NewLengthMismatchError("Frame", idx.Len(), s.Len())
		}
		columns[name] = s
		order = append(order, name)
	}

	return &Frame{
		index:   idx,
		columns: columns,
		order:   order,
	}, nil
}

// Empty creates a Frame with the given index and no columns.
func Empty(idx *index.Index) *Frame {
	return &Frame{
		index:   idx,
		columns: make(map[string]ISeries),
		order:   []string{},
	}
}

// Index returns the shared time index.
func (f *Frame) Index() *index.Index {
	return f.index
}

// Columns returns the names of all columns in order
func (f *Frame) Columns() []string {
	if len(f.order) == 0 {
		return []string{}
	}
	return append([]string(nil), f.order...)
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.index.Len()
}

// Width returns the number of columns
func (f *Frame) Width() int {
	return len(f.columns)
}

// Column returns the series for the given column name
func (f *Frame) Column(name string) (ISeries, bool) {
	s, exists := f.columns[name]
	return s, exists
}

// HasColumn checks if a column exists
func (f *Frame) HasColumn(name string) bool {
	_, exists := f.columns[name]
	return exists
}

// Select returns a new Frame holding only the named columns, in the requested
// order. Unlike a silent subset, referencing an absent column is an error.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]ISeries, 0, len(names))
	for _, name := range names {
		src, exists := f.columns[name]
		if !exists {
			releaseAll(cols)
			return nil, errors.NewColumnNotFoundError("Select", name)
		}
		shared, err := shareSeries(src)
		if err != nil {
			releaseAll(cols)
			return nil, err
		}
		cols = append(cols, shared)
	}
	return New(f.index, cols...)
}

// Drop returns a new Frame without the named columns. Names that do not occur
// in the frame are ignored.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	dropSet := make(map[string]bool)
	for _, name := range names {
		dropSet[name] = true
	}

	cols := make([]ISeries, 0, len(f.order))
	for _, name := range f.order {
		if dropSet[name] {
			continue
		}
		shared, err := shareSeries(f.columns[name])
		if err != nil {
			releaseAll(cols)
			return nil, err
		}
		cols = append(cols, shared)
	}
	return New(f.index, cols...)
}

// TimeSeries extracts the named float64 column together with the frame's index
// as a standalone series. The returned series shares the column's storage.
func (f *Frame) TimeSeries(name string) (*TimeSeries, error) {
	s, exists := f.columns[name]
	if !exists {
		return nil, errors.NewColumnNotFoundError("TimeSeries", name)
	}
	return newTimeSeriesFromColumn(f.index, s)
}

// Head returns a new Frame holding the first n rows.
func (f *Frame) Head(n int) (*Frame, error) {
	if n > f.Len() {
		n = f.Len()
	}
	if n < 0 {
		n = 0
	}

	mapping := make([]int, n)
	for i := range mapping {
		mapping[i] = i
	}

	times := make([]time.Time, n)
	for i := range times {
		times[i] = f.index.At(i)
	}

	cols := make([]ISeries, 0, len(f.order))
	for _, name := range f.order {
		aligned, err := alignSeries(f.columns[name], mapping)
		if err != nil {
			releaseAll(cols)
			return nil, err
		}
		cols = append(cols, aligned)
	}
	return New(index.New(times), cols...)
}

// ConcatColumns concatenates frames column-wise. Frames indexed identically
// are joined positionally; otherwise rows are aligned on the sorted union of
// all indices, with missing positions becoming nulls. Duplicate column names
// across the inputs are an error.
func (f *Frame) ConcatColumns(others ...*Frame) (*Frame, error) {
	frames := make([]*Frame, 0, len(others)+1)
	frames = append(frames, f)
	frames = append(frames, others...)

	seen := make(map[string]bool)
	for _, fr := range frames {
		for _, name := range fr.order {
			if seen[name] {
				return nil, errors.NewInvalidInputError("Concat",
					fmt.Sprintf("duplicate column name '%s' across concatenated frames", name))
			}
			seen[name] = true
		}
	}

	if sameIndex(frames) {
		cols := make([]ISeries, 0, len(seen))
		for _, fr := range frames {
			for _, name := range fr.order {
				shared, err := shareSeries(fr.columns[name])
				if err != nil {
					releaseAll(cols)
					return nil, err
				}
				cols = append(cols, shared)
			}
		}
		return New(f.index, cols...)
	}

	union := unionIndex(frames)
	cols := make([]ISeries, 0, len(seen))
	for _, fr := range frames {
		mapping := positionMap(fr.index, union)
		for _, name := range fr.order {
			aligned, err := alignSeries(fr.columns[name], mapping)
			if err != nil {
				releaseAll(cols)
				return nil, err
			}
			cols = append(cols, aligned)
		}
	}
	return New(union, cols...)
}

// String returns a string representation of the Frame
func (f *Frame) String() string {
	if len(f.columns) == 0 {
		return fmt.Sprintf("Frame[%d rows, no columns]", f.Len())
	}

	parts := []string{fmt.Sprintf("Frame[%dx%d]", f.Len(), f.Width())}
	if f.Len() > 0 {
		parts = append(parts, fmt.Sprintf("  index: %s .. %s",
			f.index.At(0).Format(time.RFC3339),
			f.index.At(f.Len()-1).Format(time.RFC3339)))
	}
	for _, name := range f.order {
		s := f.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, s.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (f *Frame) Release() {
	for _, s := range f.columns {
		s.Release()
	}
}

// sameIndex reports whether every frame shares the first frame's index.
func sameIndex(frames []*Frame) bool {
	for _, fr := range frames[1:] {
		if !frames[0].index.Equal(fr.index) {
			return false
		}
	}
	return true
}

func releaseAll(cols []ISeries) {
	for _, c := range cols {
		c.Release()
	}
}

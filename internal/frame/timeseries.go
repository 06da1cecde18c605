package frame

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// TimeSeries pairs one float64 measurement column with its time index. It is
// the unit the gap filler operates on.
type TimeSeries struct {
	index *index.Index
	data  *series.Series[float64]
}

// NewTimeSeries creates a TimeSeries from an index and a float64 series of the
// same length. The TimeSeries takes ownership of the series.
func NewTimeSeries(idx *index.Index, s *series.Series[float64]) (*TimeSeries, error) {
	if s.Len() != idx.Len() {
		return nil, errors.NewLengthMismatchError("TimeSeries", idx.Len(), s.Len())
	}
	return &TimeSeries{index: idx, data: s}, nil
}

// newTimeSeriesFromColumn wraps a frame column, sharing its storage. Only
// float64 columns can serve as time series.
func newTimeSeriesFromColumn(idx *index.Index, s ISeries) (*TimeSeries, error) {
	arr := s.Array()
	defer arr.Release()

	if _, ok := arr.(*array.Float64); !ok {
		return nil, errors.NewUnsupportedTypeError("TimeSeries", arr.DataType().String())
	}
	return &TimeSeries{index: idx, data: series.FromArrow[float64](s.Name(), arr)}, nil
}

// Name returns the measurement column name.
func (ts *TimeSeries) Name() string {
	return ts.data.Name()
}

// Index returns the time index.
func (ts *TimeSeries) Index() *index.Index {
	return ts.index
}

// Len returns the number of observations.
func (ts *TimeSeries) Len() int {
	return ts.data.Len()
}

// Value returns the observation at position i, NaN if it is missing.
func (ts *TimeSeries) Value(i int) float64 {
	return ts.data.Value(i)
}

// Values returns all observations, with NaN at missing positions.
func (ts *TimeSeries) Values() []float64 {
	return ts.data.Values()
}

// IsMissing reports whether the observation at position i is missing, counting
// both null slots and raw NaN values.
func (ts *TimeSeries) IsMissing(i int) bool {
	if ts.data.IsNull(i) {
		return true
	}
	return math.IsNaN(ts.data.Value(i))
}

// MissingCount returns the number of missing observations.
func (ts *TimeSeries) MissingCount() int {
	count := 0
	for i := 0; i < ts.Len(); i++ {
		if ts.IsMissing(i) {
			count++
		}
	}
	return count
}

// Frame returns a single-column frame holding this series under its own name.
func (ts *TimeSeries) Frame() (*Frame, error) {
	shared, err := shareSeries(ts.data)
	if err != nil {
		return nil, err
	}
	return New(ts.index, shared)
}

// Release releases the underlying Arrow memory.
func (ts *TimeSeries) Release() {
	ts.data.Release()
}

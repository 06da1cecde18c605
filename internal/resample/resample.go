package resample

import (
	"log/slog"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/parallel"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// Output is the result of a resampling run.
type Output struct {
	// Frame holds the aggregated columns on the bucket index, ordered
	// sum, avg, min, max, int.
	Frame *frame.Frame

	// Partial is true when the guarded avg/min/max/int aggregations failed
	// as a unit and were replaced by empty results. Cause then holds the
	// failure that triggered the substitution.
	Partial bool
	Cause   error
}

type options struct {
	logger   *slog.Logger
	intScale float64
}

// Option configures a resampling run.
type Option func(*options)

// WithLogger routes diagnostics to the given logger instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIntegralScale fixes the per-sample integration step in seconds for the
// Int group, overriding the step inferred from the index spacing.
func WithIntegralScale(seconds float64) Option {
	return func(o *options) {
		o.intScale = seconds
	}
}

// Resample aggregates the frame's columns into buckets of the given frequency
// according to the rules. Each bucket is labeled by its start; the bucket
// range runs contiguously from the first row's bucket to the last row's, so
// buckets without observations appear in the output (totals as zero, the
// other statistics as missing).
//
// Sum-group failures are returned as errors. The avg, min, max and int groups
// are computed as one guarded unit: if any of them fails, all four are
// replaced by empty results, the run still succeeds, and the Output reports
// Partial with the underlying Cause.
func Resample(f *frame.Frame, freq Frequency, rules Rules, opts ...Option) (*Output, error) {
	if f == nil {
		return nil, errors.NewInvalidInputError("Resample", "frame must be non-nil")
	}
	if err := freq.Validate(); err != nil {
		return nil, err
	}
	if freq.IsZero() {
		freq = Daily()
	}
	if !f.Index().IsSorted() {
		return nil, errors.NewUnsortedIndexError("Resample")
	}

	opt := options{logger: slog.Default()}
	for _, o := range opts {
		o(&opt)
	}

	bucketIdx, assign := buckets(f.Index(), freq)

	scale := opt.intScale
	if scale == 0 && len(rules.Int) > 0 {
		scale = f.Index().MedianStep().Seconds()
		if scale == 0 {
			opt.logger.Warn("cannot infer integration step from index, integrals will be zero")
		}
	}

	sumFrame, err := aggregateGroup(f, rules.Sum, AggSum, bucketIdx, assign, scale)
	if err != nil {
		// Sum failures are never suppressed.
		return nil, err
	}
	defer sumFrame.Release()

	guarded := []struct {
		cols []string
		kind AggKind
	}{
		{rules.Avg, AggAvg},
		{rules.Min, AggMin},
		{rules.Max, AggMax},
		{rules.Int, AggInt},
	}

	partial := false
	var cause error
	parts := make([]*frame.Frame, 0, len(guarded))
	for _, g := range guarded {
		p, aggErr := aggregateGroup(f, g.cols, g.kind, bucketIdx, assign, scale)
		if aggErr != nil {
			for _, q := range parts {
				q.Release()
			}
			parts = parts[:0]
			for range guarded {
				parts = append(parts, frame.Empty(bucketIdx))
			}
			partial = true
			cause = aggErr
			opt.logger.Warn("non-sum aggregation failed, substituting empty results",
				"aggregation", g.kind.String(), "error", aggErr)
			break
		}
		parts = append(parts, p)
	}
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	out, err := sumFrame.ConcatColumns(parts...)
	if err != nil {
		return nil, err
	}

	return &Output{Frame: out, Partial: partial, Cause: cause}, nil
}

// buckets builds the contiguous bucket label index covering the rows and maps
// each row position to its bucket position.
func buckets(idx *index.Index, freq Frequency) (*index.Index, []int) {
	n := idx.Len()
	if n == 0 {
		return index.New(nil), nil
	}

	start := freq.Truncate(idx.At(0))
	last := freq.Truncate(idx.At(n - 1))

	var labels []time.Time
	for cur := start; !cur.After(last); cur = freq.Next(cur) {
		labels = append(labels, cur)
	}

	assign := make([]int, n)
	b := 0
	for i := 0; i < n; i++ {
		t := idx.At(i)
		for b+1 < len(labels) && !t.Before(labels[b+1]) {
			b++
		}
		assign[i] = b
	}
	return index.New(labels), assign
}

// columnAgg carries one column's aggregation outcome out of the worker pool.
type columnAgg struct {
	series frame.ISeries
	err    error
}

// aggregateGroup aggregates one rule group into a frame on the bucket index,
// renaming each column with the aggregation suffix. Columns are independent,
// so they aggregate concurrently; order preservation keeps the first failing
// column's error the one reported. Selecting the columns is strict, so an
// absent column surfaces as a column-not-found error.
func aggregateGroup(
	f *frame.Frame, cols []string, kind AggKind,
	bucketIdx *index.Index, assign []int, scale float64,
) (*frame.Frame, error) {
	if len(cols) == 0 {
		return frame.Empty(bucketIdx), nil
	}

	sub, err := f.Select(cols...)
	if err != nil {
		return nil, err
	}
	defer sub.Release()

	mem := memory.NewGoAllocator()
	names := sub.Columns()

	pool := parallel.New(len(names))
	defer pool.Close()

	results := parallel.ProcessIndexed(pool, names, func(_ int, name string) columnAgg {
		col, _ := sub.Column(name)
		arr := col.Array()
		defer arr.Release()

		typed, ok := arr.(*array.Float64)
		if !ok {
			return columnAgg{err: errors.NewValidationError("Resample", name,
				"cannot aggregate non-numeric column of type "+arr.DataType().Name())}
		}

		values, valid := aggregateColumn(typed, assign, bucketIdx.Len(), kind, scale)
		return columnAgg{series: series.NewNullable(name+kind.Suffix(), values, valid, mem)}
	})

	out := make([]frame.ISeries, 0, len(results))
	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		if r.series != nil {
			out = append(out, r.series)
		}
	}
	if firstErr != nil {
		for _, s := range out {
			s.Release()
		}
		return nil, firstErr
	}

	return frame.New(bucketIdx, out...)
}

// aggregateColumn computes one statistic per bucket, skipping missing
// observations. Buckets with no usable observations yield zero for totals and
// integrals and missing for the other statistics.
func aggregateColumn(
	arr *array.Float64, assign []int, nBuckets int, kind AggKind, scale float64,
) ([]float64, []bool) {
	values := make([]float64, nBuckets)
	valid := make([]bool, nBuckets)

	switch kind {
	case AggSum, AggInt:
		for i, b := range assign {
			if arr.IsNull(i) || math.IsNaN(arr.Value(i)) {
				continue
			}
			values[b] += arr.Value(i)
		}
		for b := range values {
			valid[b] = true
			if kind == AggInt {
				values[b] *= scale
			}
		}
	case AggAvg:
		counts := make([]int, nBuckets)
		for i, b := range assign {
			if arr.IsNull(i) || math.IsNaN(arr.Value(i)) {
				continue
			}
			values[b] += arr.Value(i)
			counts[b]++
		}
		for b := range values {
			if counts[b] > 0 {
				values[b] /= float64(counts[b])
				valid[b] = true
			}
		}
	case AggMin:
		for i, b := range assign {
			if arr.IsNull(i) || math.IsNaN(arr.Value(i)) {
				continue
			}
			if v := arr.Value(i); !valid[b] || v < values[b] {
				values[b] = v
				valid[b] = true
			}
		}
	case AggMax:
		for i, b := range assign {
			if arr.IsNull(i) || math.IsNaN(arr.Value(i)) {
				continue
			}
			if v := arr.Value(i); !valid[b] || v > values[b] {
				values[b] = v
				valid[b] = true
			}
		}
	}

	return values, valid
}

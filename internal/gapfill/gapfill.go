// Package gapfill fills missing observations in a measurement series from a
// second series covering the same period, keeping a flag column that records
// which observations were originally missing.
package gapfill

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// FilledSuffix is appended to the name of the filled output column. The flag
// column carries the filled column's name plus FlagSuffix.
const (
	FilledSuffix = "_gf"
	FlagSuffix   = "FLAG"
)

// Plotter visualizes the outcome of a successful fill. Implementations are
// only invoked when installed via WithPlotter; the filler itself never plots.
type Plotter interface {
	Plot(title string, filled, filler, original *frame.TimeSeries) error
}

// Result reports the outcome of a fill.
type Result struct {
	// Frame holds the filled column "{name}_gf" and its flag column
	// "{name}_gfFLAG" on the original index. In soft-fail mode after an
	// index mismatch it instead holds the unmodified original column.
	Frame *frame.Frame

	// Gaps is the number of originally missing observations.
	Gaps int

	// Filled is the number of gaps the filler supplied a value for.
	Filled int

	// SoftFailed is true when an index mismatch was tolerated and Frame
	// holds the original column unchanged.
	SoftFailed bool
}

type options struct {
	softFail bool
	plotter  Plotter
	logger   *slog.Logger
}

// Option configures a fill.
type Option func(*options)

// WithSoftFail tolerates mismatched indices: instead of an error, Fill logs a
// diagnostic and returns the original column unchanged.
func WithSoftFail() Option {
	return func(o *options) {
		o.softFail = true
	}
}

// WithPlotter installs a plot hook invoked after a successful fill. Plot
// errors are logged and never affect the returned data.
func WithPlotter(p Plotter) Option {
	return func(o *options) {
		o.plotter = p
	}
}

// WithLogger routes diagnostics to the given logger instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Fill replaces missing observations in withGaps by the filler's value at the
// same row label. Both series must share an identical time index; a mismatch
// is an index-mismatch error unless WithSoftFail is set. The returned frame
// holds the filled series under "{name}_gf" and a bool column "{name}_gfFLAG"
// that is true exactly where the original observation was missing.
func Fill(withGaps, filler *frame.TimeSeries, opts ...Option) (*Result, error) {
	if withGaps == nil || filler == nil {
		return nil, errors.NewInvalidInputError("Fill", "both series must be non-nil")
	}

	opt := options{logger: slog.Default()}
	for _, o := range opts {
		o(&opt)
	}

	if !withGaps.Index().Equal(filler.Index()) {
		if !opt.softFail {
			return nil, errors.NewIndexMismatchError("Fill",
				"gap series and filler series indices are not the same")
		}
		opt.logger.Warn("indices are not the same, returning series unfilled",
			"series", withGaps.Name(), "filler", filler.Name())

		original, err := withGaps.Frame()
		if err != nil {
			return nil, err
		}
		return &Result{
			Frame:      original,
			Gaps:       withGaps.MissingCount(),
			SoftFailed: true,
		}, nil
	}

	n := withGaps.Len()
	values := make([]float64, n)
	valid := make([]bool, n)
	flags := make([]bool, n)

	gaps := 0
	filled := 0
	for i := 0; i < n; i++ {
		if withGaps.IsMissing(i) {
			gaps++
			flags[i] = true
			// A gap stays missing when the filler has no value either.
			if !filler.IsMissing(i) {
				values[i] = filler.Value(i)
				valid[i] = true
				filled++
			}
			continue
		}
		values[i] = withGaps.Value(i)
		valid[i] = true
	}

	mem := memory.NewGoAllocator()
	filledName := withGaps.Name() + FilledSuffix
	gf := series.NewNullable(filledName, values, valid, mem)
	flag := series.New(filledName+FlagSuffix, flags, mem)

	out, err := frame.New(withGaps.Index(), gf, flag)
	if err != nil {
		gf.Release()
		flag.Release()
		return nil, err
	}

	if opt.plotter != nil {
		plotFilled(opt, out, filledName, withGaps, filler)
	}

	return &Result{Frame: out, Gaps: gaps, Filled: filled}, nil
}

// plotFilled hands the fill outcome to the installed plotter. Failures are
// diagnostic only.
func plotFilled(opt options, out *frame.Frame, filledName string, withGaps, filler *frame.TimeSeries) {
	filledTS, err := out.TimeSeries(filledName)
	if err != nil {
		opt.logger.Warn("plotting skipped", "series", withGaps.Name(), "error", err)
		return
	}
	defer filledTS.Release()

	if err := opt.plotter.Plot(withGaps.Name(), filledTS, filler, withGaps); err != nil {
		opt.logger.Warn("plotting failed", "series", withGaps.Name(), "error", err)
	}
}

// Package ecoflux prepares flux tower measurement tables for analysis:
// mapping sensor locations out of column names, filling gaps in one series
// from a redundant one, and resampling half-hourly tables to coarser
// frequencies. This package is the sole public API for the library.
package ecoflux

import (
	stdio "io"
	"log/slog"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/gapfill"
	"github.com/gremau/ecoflux-tools/internal/index"
	fluxio "github.com/gremau/ecoflux-tools/internal/io"
	"github.com/gremau/ecoflux-tools/internal/naming"
	"github.com/gremau/ecoflux-tools/internal/resample"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// Sentinel errors returned by the package, for matching with errors.Is.
var (
	// ErrColumnNotFound indicates a referenced column is absent from a table.
	ErrColumnNotFound = errors.ErrColumnNotFound

	// ErrMalformedName indicates a column name that cannot be tokenized into
	// measurement, horizontal and vertical position parts.
	ErrMalformedName = errors.ErrMalformedName

	// ErrIndexMismatch indicates two series whose time indices are not
	// identical.
	ErrIndexMismatch = errors.ErrIndexMismatch

	// ErrUnsortedIndex indicates a time index that is not monotonically
	// increasing.
	ErrUnsortedIndex = errors.ErrUnsortedIndex

	// ErrMismatchedLength indicates a length mismatch between a time index
	// and a column.
	ErrMismatchedLength = errors.ErrMismatchedLength
)

// ISeries provides a type-erased interface for Series of any type
type ISeries interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
	GetAsString(index int) string
}

// Table is the public type for a time-indexed measurement table.
// It wraps the internal frame to hide implementation details.
type Table struct {
	f *frame.Frame
}

// TimeSeries is the public type for one measurement column paired with the
// table's time index.
type TimeSeries struct {
	ts *frame.TimeSeries
}

// NewTable creates a new Table from a time index and columns. Every column
// must match the index length; the table takes ownership of the columns.
func NewTable(times []time.Time, columns ...ISeries) (*Table, error) {
	internalSeries := make([]frame.ISeries, len(columns))
	for i, s := range columns {
		internalSeries[i] = s
	}
	f, err := frame.New(index.New(times), internalSeries...)
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// NewSeries creates a new typed Series from values. For float64 values, NaN
// marks a missing observation.
func NewSeries[T any](name string, values []T, mem memory.Allocator) ISeries {
	return series.New(name, values, mem)
}

// Table methods

// Times returns the table's timestamps in row order.
func (t *Table) Times() []time.Time {
	return t.f.Index().Times()
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.f.Columns()
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.f.Len()
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return t.f.Width()
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (ISeries, bool) {
	return t.f.Column(name)
}

// HasColumn returns true if the table has the given column.
func (t *Table) HasColumn(name string) bool {
	return t.f.HasColumn(name)
}

// TimeSeries extracts the named float64 column together with the time index.
// The returned series shares storage with the table and must be released.
func (t *Table) TimeSeries(name string) (*TimeSeries, error) {
	ts, err := t.f.TimeSeries(name)
	if err != nil {
		return nil, err
	}
	return &TimeSeries{ts: ts}, nil
}

// Select returns a new Table with only the specified columns. Every named
// column must exist.
func (t *Table) Select(names ...string) (*Table, error) {
	f, err := t.f.Select(names...)
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// Drop returns a new Table without the specified columns.
func (t *Table) Drop(names ...string) (*Table, error) {
	f, err := t.f.Drop(names...)
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// Head returns a new Table with the first n rows.
func (t *Table) Head(n int) (*Table, error) {
	f, err := t.f.Head(n)
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// ConcatColumns joins this table's columns with those of other tables. Tables
// on different indices are aligned on the union of their timestamps, with
// missing rows null.
func (t *Table) ConcatColumns(others ...*Table) (*Table, error) {
	internalFrames := make([]*frame.Frame, len(others))
	for i, other := range others {
		internalFrames[i] = other.f
	}
	f, err := t.f.ConcatColumns(internalFrames...)
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// String returns a string representation of the Table.
func (t *Table) String() string {
	return t.f.String()
}

// Release frees the memory used by the Table.
func (t *Table) Release() {
	t.f.Release()
}

// TimeSeries methods

// Name returns the measurement column name.
func (ts *TimeSeries) Name() string {
	return ts.ts.Name()
}

// Times returns the series' timestamps in row order.
func (ts *TimeSeries) Times() []time.Time {
	return ts.ts.Index().Times()
}

// Len returns the number of observations.
func (ts *TimeSeries) Len() int {
	return ts.ts.Len()
}

// Value returns the observation at position i, NaN if it is missing.
func (ts *TimeSeries) Value(i int) float64 {
	return ts.ts.Value(i)
}

// Values returns all observations, with NaN at missing positions.
func (ts *TimeSeries) Values() []float64 {
	return ts.ts.Values()
}

// IsMissing reports whether the observation at position i is missing.
func (ts *TimeSeries) IsMissing(i int) bool {
	return ts.ts.IsMissing(i)
}

// MissingCount returns the number of missing observations.
func (ts *TimeSeries) MissingCount() int {
	return ts.ts.MissingCount()
}

// Release frees the memory used by the TimeSeries.
func (ts *TimeSeries) Release() {
	ts.ts.Release()
}

// Locations

// LocationsOption configures a location scan.
type LocationsOption func(*locationsConfig)

type locationsConfig struct {
	naming []naming.Option
}

// WithExcluded drops columns containing the substring from the location scan.
// It may be given several times.
func WithExcluded(substr string) LocationsOption {
	return func(c *locationsConfig) {
		c.naming = append(c.naming, naming.WithExclude(substr))
	}
}

// Locations scans the table's column names for each measurement type and maps
// "{measurement}_{horizontal}" keys to the vertical position labels found,
// in column order. Column names are expected to follow the
// MEASUREMENT_H_V_R convention.
func Locations(t *Table, measurements []string, opts ...LocationsOption) (map[string][]string, error) {
	cfg := locationsConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cols := t.Columns()
	merged := make(map[string][]string)
	for _, meas := range measurements {
		locations, err := naming.Locations(cols, meas, cfg.naming...)
		if err != nil {
			return nil, err
		}
		for key, verticals := range locations {
			merged[key] = verticals
		}
	}
	return merged, nil
}

// Gap filling

// Plotter visualizes the outcome of a successful fill. Implementations are
// only invoked when installed via WithPlotter.
type Plotter interface {
	Plot(title string, filled, filler, original *TimeSeries) error
}

// plotterAdapter bridges the public Plotter to the internal fill hook.
type plotterAdapter struct {
	p Plotter
}

func (a plotterAdapter) Plot(title string, filled, filler, original *frame.TimeSeries) error {
	return a.p.Plot(title,
		&TimeSeries{ts: filled},
		&TimeSeries{ts: filler},
		&TimeSeries{ts: original})
}

// FillResult reports the outcome of a gap fill.
type FillResult struct {
	// Table holds the filled column "{name}_gf" and its flag column
	// "{name}_gfFLAG". In soft-fail mode after an index mismatch it holds
	// the unmodified original column instead.
	Table *Table

	// Gaps is the number of originally missing observations.
	Gaps int

	// Filled is the number of gaps the filler supplied a value for.
	Filled int

	// SoftFailed is true when an index mismatch was tolerated.
	SoftFailed bool
}

// FillOption configures a gap fill.
type FillOption func(*fillConfig)

type fillConfig struct {
	gapfill []gapfill.Option
}

// WithSoftFail tolerates mismatched indices: instead of an error, the fill
// logs a diagnostic and returns the original column unchanged.
func WithSoftFail() FillOption {
	return func(c *fillConfig) {
		c.gapfill = append(c.gapfill, gapfill.WithSoftFail())
	}
}

// WithPlotter installs a plot hook invoked after a successful fill. Plot
// errors are logged and never affect the returned data.
func WithPlotter(p Plotter) FillOption {
	return func(c *fillConfig) {
		c.gapfill = append(c.gapfill, gapfill.WithPlotter(plotterAdapter{p: p}))
	}
}

// FillGaps replaces missing observations in the target column with the source
// column's value at the same timestamp. Both columns live in the same table,
// so their indices always agree; diagnostics go to slog.Default().
func FillGaps(t *Table, target, source string, opts ...FillOption) (*FillResult, error) {
	cfg := fillConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	targetSeries, err := t.f.TimeSeries(target)
	if err != nil {
		return nil, err
	}
	defer targetSeries.Release()

	sourceSeries, err := t.f.TimeSeries(source)
	if err != nil {
		return nil, err
	}
	defer sourceSeries.Release()

	result, err := gapfill.Fill(targetSeries, sourceSeries, cfg.gapfill...)
	if err != nil {
		return nil, err
	}
	return &FillResult{
		Table:      &Table{f: result.Frame},
		Gaps:       result.Gaps,
		Filled:     result.Filled,
		SoftFailed: result.SoftFailed,
	}, nil
}

// FillSeries fills gaps between two standalone series, which may come from
// different tables. Their indices must agree unless WithSoftFail is set.
func FillSeries(target, source *TimeSeries, opts ...FillOption) (*FillResult, error) {
	cfg := fillConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	result, err := gapfill.Fill(target.ts, source.ts, cfg.gapfill...)
	if err != nil {
		return nil, err
	}
	return &FillResult{
		Table:      &Table{f: result.Frame},
		Gaps:       result.Gaps,
		Filled:     result.Filled,
		SoftFailed: result.SoftFailed,
	}, nil
}

// Resampling

// Rules lists which columns aggregate under which statistic when resampling.
// A column may appear in several groups and then yields one output column per
// group, each under its own suffix (_sum, _avg, _min, _max, _int).
type Rules struct {
	Sum []string
	Avg []string
	Min []string
	Max []string
	Int []string
}

// DefaultRules returns the customary rule set for half-hourly meteorological
// tower tables.
func DefaultRules() Rules {
	r := resample.DefaultRules()
	return Rules{Sum: r.Sum, Avg: r.Avg, Min: r.Min, Max: r.Max, Int: r.Int}
}

func (r Rules) internal() resample.Rules {
	return resample.Rules{Sum: r.Sum, Avg: r.Avg, Min: r.Min, Max: r.Max, Int: r.Int}
}

// ResampleResult is the outcome of a resampling run.
type ResampleResult struct {
	// Table holds the aggregated columns on the bucket index.
	Table *Table

	// Partial is true when the avg/min/max/int aggregations failed as a
	// unit and were replaced by empty results. Cause then holds the
	// failure that triggered the substitution.
	Partial bool
	Cause   error
}

// ResampleOption configures a resampling run.
type ResampleOption func(*resampleConfig)

type resampleConfig struct {
	resample []resample.Option
}

// WithIntegralScale fixes the per-sample integration step in seconds for the
// Int rule group, overriding the step inferred from the index spacing.
func WithIntegralScale(seconds float64) ResampleOption {
	return func(c *resampleConfig) {
		c.resample = append(c.resample, resample.WithIntegralScale(seconds))
	}
}

// Resample aggregates the table into buckets of the given frequency according
// to the rules. Frequencies are Go durations ("30m", "1h") or the calendar
// shorthand "1D", "1W", "1M"; an empty frequency means daily. Sum failures
// are errors; failures in the other groups replace them all with empty
// results and are reported on the ResampleResult.
func Resample(t *Table, frequency string, rules Rules, opts ...ResampleOption) (*ResampleResult, error) {
	cfg := resampleConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	freq := resample.Daily()
	if frequency != "" {
		parsed, err := resample.ParseFrequency(frequency)
		if err != nil {
			return nil, err
		}
		freq = parsed
	}

	out, err := resample.Resample(t.f, freq, rules.internal(), cfg.resample...)
	if err != nil {
		return nil, err
	}
	return &ResampleResult{
		Table:   &Table{f: out.Frame},
		Partial: out.Partial,
		Cause:   out.Cause,
	}, nil
}

// File I/O
//
// The helpers speak the flux-tower interchange defaults: TIMESTAMP_START in
// YYYYMMDDHHMM form and -9999 for missing, adjustable per call through
// IOOptions.

// IOOption adjusts how tables are read and written.
type IOOption func(*ioOptions)

type ioOptions struct {
	timeColumn   string
	missingValue string
}

// WithTimeColumn names the timestamp column instead of TIMESTAMP_START.
func WithTimeColumn(name string) IOOption {
	return func(o *ioOptions) {
		o.timeColumn = name
	}
}

// WithMissingValue sets the sentinel written for missing values. Reading
// recognizes it alongside the usual tokens.
func WithMissingValue(token string) IOOption {
	return func(o *ioOptions) {
		o.missingValue = token
	}
}

func csvOptions(opts []IOOption) fluxio.CSVOptions {
	var o ioOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := fluxio.DefaultCSVOptions()
	if o.timeColumn != "" {
		c.TimeColumn = o.timeColumn
	}
	if o.missingValue != "" {
		c.MissingValues = append([]string{o.missingValue}, c.MissingValues...)
	}
	return c
}

func parquetOptions(opts []IOOption) fluxio.ParquetOptions {
	var o ioOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := fluxio.DefaultParquetOptions()
	if o.timeColumn != "" {
		p.TimeColumn = o.timeColumn
	}
	return p
}

// ReadCSV reads a flux CSV table from a reader.
func ReadCSV(r stdio.Reader, mem memory.Allocator, opts ...IOOption) (*Table, error) {
	f, err := fluxio.NewCSVReader(r, csvOptions(opts), mem).Read()
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// ReadCSVFile reads a flux CSV table from a file.
func ReadCSVFile(path string, mem memory.Allocator, opts ...IOOption) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("closing input file", "path", path, "error", closeErr)
		}
	}()
	return ReadCSV(file, mem, opts...)
}

// WriteCSV writes a table as flux CSV to a writer.
func WriteCSV(w stdio.Writer, t *Table, opts ...IOOption) error {
	return fluxio.NewCSVWriter(w, csvOptions(opts)).Write(t.f)
}

// WriteCSVFile writes a table as flux CSV to a file.
func WriteCSVFile(path string, t *Table, opts ...IOOption) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, t, opts...); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadParquetFile reads a table from a Parquet file.
func ReadParquetFile(path string, mem memory.Allocator, opts ...IOOption) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("closing input file", "path", path, "error", closeErr)
		}
	}()

	f, err := fluxio.NewParquetReader(file, parquetOptions(opts), mem).Read()
	if err != nil {
		return nil, err
	}
	return &Table{f: f}, nil
}

// WriteParquetFile writes a table to a Parquet file.
func WriteParquetFile(path string, t *Table, opts ...IOOption) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fluxio.NewParquetWriter(file, parquetOptions(opts)).Write(t.f); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

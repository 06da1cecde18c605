// Package io reads and writes time-indexed measurement tables.
//
// The package speaks the flux-tower interchange conventions: CSV files with a
// header row, a timestamp column (TIMESTAMP_START by default, in the compact
// YYYYMMDDHHMM layout), and a numeric sentinel such as -9999 standing in for
// missing observations. Parquet support carries the same tables with the
// timestamp as a proper nanosecond column and missing values as nulls.
//
// Key components:
//   - DataReader/DataWriter interfaces for pluggable I/O backends
//   - CSVReader/CSVWriter for sentinel-aware CSV operations
//   - ParquetReader/ParquetWriter backed by Arrow's pqarrow bridge
//
// Memory management: readers allocate through the provided Arrow allocator
// and returned frames must be released with defer patterns.
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/gremau/ecoflux-tools/internal/frame"
)

// DefaultBatchSize is the default batch size for Parquet row groups.
const DefaultBatchSize = 1000

// DefaultTimeColumn is the timestamp column name used when none is configured.
const DefaultTimeColumn = "TIMESTAMP_START"

// DataReader defines the interface for reading tables from various sources
type DataReader interface {
	// Read reads data from the source and returns a time-indexed frame
	Read() (*frame.Frame, error)
}

// DataWriter defines the interface for writing tables to various destinations
type DataWriter interface {
	// Write writes the frame to the destination
	Write(f *frame.Frame) error
}

// CSVOptions configures CSV reading and writing.
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers. Reading
	// requires a header row to locate the time column.
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// TimeColumn is the name of the timestamp column
	TimeColumn string
	// TimeLayouts are the accepted timestamp layouts, tried in order when
	// reading. The first layout is used when writing.
	TimeLayouts []string
	// MissingValues are the cell contents read as missing observations.
	// The first entry is written for missing values.
	MissingValues []string
}

// DefaultCSVOptions returns CSV options for flux-tower tables: comma
// separated, TIMESTAMP_START in YYYYMMDDHHMM form and -9999 for missing.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ',',
		Comment:    0,
		Header:     true,
		TimeColumn: DefaultTimeColumn,
		TimeLayouts: []string{
			"200601021504",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04",
			"2006-01-02",
		},
		MissingValues: []string{"-9999", "-9999.0", "NA", "NaN", ""},
	}
}

// CSVReader reads CSV data and converts it to time-indexed frames
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader returns a reader that parses CSV from reader using options.
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes frames to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter returns a writer that emits CSV to writer using options.
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions configures Parquet reading and writing.
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for row groups when writing
	BatchSize int
	// TimeColumn is the name the time index travels under
	TimeColumn string
}

// DefaultParquetOptions returns snappy-compressed defaults with the standard
// timestamp column.
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
		TimeColumn:  DefaultTimeColumn,
	}
}

// ParquetReader reads Parquet data and converts it to time-indexed frames
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader returns a reader for Parquet files written by this package.
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes frames to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter returns a writer that stores frames as Parquet.
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}

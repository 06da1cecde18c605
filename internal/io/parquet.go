package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// timestampNs is the schema type the time index travels under.
var timestampNs = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

// Read reads Parquet data and returns a time-indexed frame. The configured
// time column must be present and becomes the frame index.
func (r *ParquetReader) Read() (*frame.Frame, error) {
	// Parquet needs random access, so buffer the stream
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	readerAt := bytes.NewReader(data)

	pqReader, err := file.NewParquetReader(readerAt)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToFrame(table)
}

// arrowTableToFrame converts an Arrow table to a frame, splitting off the
// time column as the index.
func (r *ParquetReader) arrowTableToFrame(table arrow.Table) (*frame.Frame, error) {
	schema := table.Schema()

	timePos := -1
	for i := 0; i < schema.NumFields(); i++ {
		if schema.Field(i).Name == r.options.TimeColumn {
			timePos = i
			break
		}
	}
	if timePos < 0 {
		return nil, errors.NewColumnNotFoundError("ReadParquet", r.options.TimeColumn)
	}

	times, err := r.columnTimes(table.Column(timePos))
	if err != nil {
		return nil, err
	}

	var seriesList []frame.ISeries
	for i := 0; i < int(table.NumCols()); i++ {
		if i == timePos {
			continue
		}
		field := schema.Field(i)
		s, err := r.columnToSeries(field.Name, table.Column(i))
		if err != nil {
			releaseSeries(seriesList)
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}

	f, err := frame.New(index.New(times), seriesList...)
	if err != nil {
		releaseSeries(seriesList)
		return nil, err
	}
	return f, nil
}

// columnTimes extracts the time index from the timestamp column.
func (r *ParquetReader) columnTimes(column *arrow.Column) ([]time.Time, error) {
	times := make([]time.Time, 0, column.Len())
	for _, chunk := range column.Data().Chunks() {
		ts, ok := chunk.(*array.Timestamp)
		if !ok {
			return nil, errors.NewValidationError("ReadParquet", r.options.TimeColumn,
				fmt.Sprintf("time column must hold timestamps, got %s", chunk.DataType().Name()))
		}
		unit := ts.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < ts.Len(); i++ {
			if ts.IsNull(i) {
				return nil, errors.NewValidationError("ReadParquet", r.options.TimeColumn,
					"time column contains nulls")
			}
			times = append(times, ts.Value(i).ToTime(unit).UTC())
		}
	}
	return times, nil
}

// columnToSeries converts an Arrow column to a series, merging chunks when
// the table arrived split.
func (r *ParquetReader) columnToSeries(name string, column *arrow.Column) (frame.ISeries, error) {
	chunks := column.Data().Chunks()
	switch len(chunks) {
	case 0:
		return r.emptySeriesByType(name, column.DataType())
	case 1:
		return r.arrayToSeries(name, chunks[0])
	default:
		merged, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, fmt.Errorf("merging chunks: %w", err)
		}
		defer merged.Release()
		return r.arrayToSeries(name, merged)
	}
}

// emptySeriesByType creates an empty series based on Arrow data type.
func (r *ParquetReader) emptySeriesByType(name string, dataType arrow.DataType) (frame.ISeries, error) {
	switch dataType.ID() {
	case arrow.FLOAT64:
		return series.New(name, []float64{}, r.mem), nil
	case arrow.INT64:
		return series.New(name, []int64{}, r.mem), nil
	case arrow.STRING:
		return series.New(name, []string{}, r.mem), nil
	case arrow.BOOL:
		return series.New(name, []bool{}, r.mem), nil
	case arrow.TIMESTAMP:
		return series.New(name, []time.Time{}, r.mem), nil
	default:
		return nil, errors.NewUnsupportedTypeError("ReadParquet", dataType.Name())
	}
}

// arrayToSeries wraps an Arrow array in a typed series, nulls preserved.
func (r *ParquetReader) arrayToSeries(name string, arr arrow.Array) (frame.ISeries, error) {
	switch arr.(type) {
	case *array.Float64:
		return series.FromArrow[float64](name, arr), nil
	case *array.Int64:
		return series.FromArrow[int64](name, arr), nil
	case *array.String:
		return series.FromArrow[string](name, arr), nil
	case *array.Boolean:
		return series.FromArrow[bool](name, arr), nil
	case *array.Timestamp:
		return series.FromArrow[time.Time](name, arr), nil
	default:
		return nil, errors.NewUnsupportedTypeError("ReadParquet", arr.DataType().Name())
	}
}

// Write writes the frame to Parquet format with the time index as the first
// column.
func (w *ParquetWriter) Write(f *frame.Frame) error {
	table, err := w.frameToArrowTable(f)
	if err != nil {
		return fmt.Errorf("converting frame to Arrow table: %w", err)
	}
	defer table.Release()

	var compression compress.Compression
	switch w.options.Compression {
	case "snappy":
		compression = compress.Codecs.Snappy
	case "gzip":
		compression = compress.Codecs.Gzip
	case "lz4":
		compression = compress.Codecs.Lz4Raw
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(w.options.BatchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))

	writer, err := pqarrow.NewFileWriter(table.Schema(), w.writer, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	chunkSize := int64(f.Len())
	if chunkSize == 0 {
		chunkSize = 1
	}
	if err := writer.WriteTable(table, chunkSize); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

// frameToArrowTable converts a frame to an Arrow table for writing.
func (w *ParquetWriter) frameToArrowTable(f *frame.Frame) (arrow.Table, error) {
	mem := memory.NewGoAllocator()

	fields := make([]arrow.Field, 0, f.Width()+1)
	columns := make([]arrow.Column, 0, f.Width()+1)

	tsBuilder := array.NewTimestampBuilder(mem, timestampNs)
	defer tsBuilder.Release()
	for _, t := range f.Index().Times() {
		tsBuilder.Append(arrow.Timestamp(t.UnixNano()))
	}
	tsArr := tsBuilder.NewArray()
	tsField := arrow.Field{Name: w.options.TimeColumn, Type: timestampNs}
	tsChunked := arrow.NewChunked(timestampNs, []arrow.Array{tsArr})
	tsArr.Release()
	tsColumn := arrow.NewColumn(tsField, tsChunked)
	tsChunked.Release()
	fields = append(fields, tsField)
	columns = append(columns, *tsColumn)

	for _, name := range f.Columns() {
		col, ok := f.Column(name)
		if !ok {
			continue
		}
		arr := col.Array()
		field := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()
		column := arrow.NewColumn(field, chunked)
		chunked.Release()
		fields = append(fields, field)
		columns = append(columns, *column)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewTable(schema, columns, int64(f.Len())), nil
}

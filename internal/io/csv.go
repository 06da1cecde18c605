package io

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// Inferred column type names
const (
	intType    = "int"
	floatType  = "float"
	stringType = "string"
)

// Read reads CSV data and returns a time-indexed frame. The time column is
// parsed with the configured layouts and becomes the frame index; every cell
// matching a configured missing token becomes a null.
func (r *CSVReader) Read() (*frame.Frame, error) {
	if !r.options.Header {
		return nil, errors.NewInvalidInputError("ReadCSV",
			"a header row is required to locate the time column")
	}

	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.NewInvalidInputError("ReadCSV", "input contains no rows")
	}

	headers := records[0]
	dataRows := records[1:]

	timePos := -1
	for i, header := range headers {
		if header == r.options.TimeColumn {
			timePos = i
			break
		}
	}
	if timePos < 0 {
		return nil, errors.NewColumnNotFoundError("ReadCSV", r.options.TimeColumn)
	}

	times, err := r.parseTimes(dataRows, timePos)
	if err != nil {
		return nil, err
	}

	// Transpose the remaining cells to work with columns
	columns := make(map[string][]string, len(headers)-1)
	var order []string
	for i, header := range headers {
		if i == timePos {
			continue
		}
		cells := make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				cells[j] = row[i]
			}
		}
		columns[header] = cells
		order = append(order, header)
	}

	seriesList := make([]frame.ISeries, 0, len(order))
	for _, header := range order {
		s, err := r.columnFromStrings(header, columns[header])
		if err != nil {
			releaseSeries(seriesList)
			return nil, fmt.Errorf("creating series for column %s: %w", header, err)
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

// parseTimes parses the time column, trying each configured layout in order.
func (r *CSVReader) parseTimes(rows [][]string, timePos int) ([]time.Time, error) {
	times := make([]time.Time, len(rows))
	for i, row := range rows {
		if timePos >= len(row) {
			return nil, errors.NewValidationError("ReadCSV", r.options.TimeColumn,
				fmt.Sprintf("row %d has no timestamp", i+1))
		}
		t, err := r.parseTime(row[timePos])
		if err != nil {
			return nil, errors.NewValidationError("ReadCSV", r.options.TimeColumn,
				fmt.Sprintf("cannot parse timestamp %q at row %d", row[timePos], i+1))
		}
		times[i] = t
	}
	return times, nil
}

func (r *CSVReader) parseTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range r.options.TimeLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no time layouts configured")
	}
	return time.Time{}, lastErr
}

// columnFromStrings creates a series from string cells, inferring the type.
// Integer columns stay int64 only when complete; a single missing observation
// promotes them to float64, the way numeric tables usually travel.
func (r *CSVReader) columnFromStrings(name string, cells []string) (frame.ISeries, error) {
	inferred, hasMissing := r.inferColumnType(cells)

	switch {
	case inferred == intType && !hasMissing:
		return r.buildIntColumn(name, cells), nil
	case inferred == intType || inferred == floatType:
		return r.buildFloatColumn(name, cells), nil
	default:
		return r.buildStringColumn(name, cells), nil
	}
}

// inferColumnType determines the narrowest type holding every non-missing
// cell, and whether any cell is missing. All-missing columns infer as float.
func (r *CSVReader) inferColumnType(cells []string) (string, bool) {
	canBeInt := true
	canBeFloat := true
	hasMissing := false
	hasValue := false

	for _, cell := range cells {
		if r.isMissing(cell) {
			hasMissing = true
			continue
		}
		hasValue = true

		if canBeInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	if !hasValue {
		return floatType, hasMissing
	}
	if canBeInt {
		return intType, hasMissing
	}
	if canBeFloat {
		return floatType, hasMissing
	}
	return stringType, hasMissing
}

func (r *CSVReader) isMissing(cell string) bool {
	for _, token := range r.options.MissingValues {
		if cell == token {
			return true
		}
	}
	return false
}

func (r *CSVReader) buildIntColumn(name string, cells []string) frame.ISeries {
	values := make([]int64, len(cells))
	for i, cell := range cells {
		v, _ := strconv.ParseInt(cell, 10, 64)
		values[i] = v
	}
	return series.New(name, values, r.mem)
}

func (r *CSVReader) buildFloatColumn(name string, cells []string) frame.ISeries {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if r.isMissing(cell) {
			values[i] = math.NaN()
			continue
		}
		v, _ := strconv.ParseFloat(cell, 64)
		values[i] = v
	}
	return series.New(name, values, r.mem)
}

func (r *CSVReader) buildStringColumn(name string, cells []string) frame.ISeries {
	values := make([]string, len(cells))
	valid := make([]bool, len(cells))
	for i, cell := range cells {
		if r.isMissing(cell) {
			continue
		}
		values[i] = cell
		valid[i] = true
	}
	return series.NewNullable(name, values, valid, r.mem)
}

func releaseSeries(list []frame.ISeries) {
	for _, s := range list {
		s.Release()
	}
}

// Write writes the frame to CSV format. The time index travels first under
// the configured column name; nulls are written as the missing sentinel.
func (w *CSVWriter) Write(f *frame.Frame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = w.options.Delimiter

	names := f.Columns()

	if w.options.Header {
		header := append([]string{w.options.TimeColumn}, names...)
		if err := csvWriter.Write(header); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	layout := "200601021504"
	if len(w.options.TimeLayouts) > 0 {
		layout = w.options.TimeLayouts[0]
	}
	sentinel := ""
	if len(w.options.MissingValues) > 0 {
		sentinel = w.options.MissingValues[0]
	}

	idx := f.Index()
	for i := 0; i < f.Len(); i++ {
		row := make([]string, 0, len(names)+1)
		row = append(row, idx.At(i).UTC().Format(layout))
		for _, name := range names {
			column, ok := f.Column(name)
			if !ok || column.IsNull(i) {
				row = append(row, sentinel)
				continue
			}
			row = append(row, column.GetAsString(i))
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// Package testutil provides common testing utilities to reduce code
// duplication across test files.
//
// The package consolidates the patterns flux-table tests repeat:
// - Memory allocator setup and cleanup
// - Standard half-hourly test frame creation
// - Resource lifecycle management
// - Frame equality assertions
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
)

const (
	// defaultRowCount is one day of half-hourly rows.
	defaultRowCount = 48

	halfHour = 30 * time.Minute
)

// StartTime is the first timestamp of every generated test frame.
var StartTime = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

// TestMemoryContext bundles the allocator a test builds Arrow values from
// with the teardown to run once the test is done with them.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release runs the teardown hook, if any.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest returns the memory context for one test. Pair every call
// with a deferred Release:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	// The Go allocator frees through the garbage collector, so there is no
	// teardown to register.
	return &TestMemoryContext{Allocator: memory.NewGoAllocator()}
}

// TestFrameOption configures test frame creation.
type TestFrameOption func(*testFrameConfig)

type testFrameConfig struct {
	rowCount  int
	withGaps  bool
	withFlags bool
}

// WithGaps punches missing values into the measurement columns.
func WithGaps() TestFrameOption {
	return func(cfg *testFrameConfig) {
		cfg.withGaps = true
	}
}

// WithRowCount sets the number of half-hourly rows in test data.
func WithRowCount(count int) TestFrameOption {
	return func(cfg *testFrameConfig) {
		cfg.rowCount = count
	}
}

// WithFlagColumn includes an integer FC_FLAG quality column.
func WithFlagColumn() TestFrameOption {
	return func(cfg *testFrameConfig) {
		cfg.withFlags = true
	}
}

// CreateTestFrame creates a standard half-hourly tower frame starting at
// StartTime.
//
// Default frame includes:
// - TA_1_1_1 (float64): diurnal air temperature curve
// - RH_1_1_1 (float64): relative humidity, anti-phase to temperature
// - P_1_1_1 (float64): precipitation, zero with two afternoon bursts
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
//	f := testutil.CreateTestFrame(t, mem.Allocator, testutil.WithGaps())
//	defer f.Release()
func CreateTestFrame(tb testing.TB, allocator memory.Allocator, opts ...TestFrameOption) *frame.Frame {
	tb.Helper()

	cfg := &testFrameConfig{
		rowCount:  defaultRowCount,
		withGaps:  false,
		withFlags: false,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	idx := index.Range(StartTime, halfHour, cfg.rowCount)

	seriesList := []frame.ISeries{
		series.New("TA_1_1_1", generateAirTemps(cfg.rowCount, cfg.withGaps), allocator),
		series.New("RH_1_1_1", generateHumidity(cfg.rowCount, cfg.withGaps), allocator),
		series.New("P_1_1_1", generatePrecip(cfg.rowCount), allocator),
	}

	if cfg.withFlags {
		seriesList = append(seriesList,
			series.New("FC_FLAG", generateFlags(cfg.rowCount), allocator))
	}

	f, err := frame.New(idx, seriesList...)
	require.NoError(tb, err, "creating test frame")
	return f
}

// CreateSimpleTestFrame creates a short two-column frame for basic testing.
func CreateSimpleTestFrame(tb testing.TB, allocator memory.Allocator) *frame.Frame {
	tb.Helper()

	idx := index.Range(StartTime, halfHour, 4)
	ta := series.New("TA_1_1_1", []float64{18.0, 18.5, 19.1, 19.4}, allocator)
	p := series.New("P_1_1_1", []float64{0, 0, 0.2, 0}, allocator)

	f, err := frame.New(idx, ta, p)
	require.NoError(tb, err, "creating simple test frame")
	return f
}

// AssertFrameEqual performs value-wise equality comparison of frames,
// including index timestamps and null positions.
func AssertFrameEqual(t *testing.T, expected, actual *frame.Frame) {
	t.Helper()

	require.NotNil(t, expected, "expected frame should not be nil")
	require.NotNil(t, actual, "actual frame should not be nil")

	assert.Equal(t, expected.Len(), actual.Len(), "frame lengths should match")
	assert.Equal(t, expected.Width(), actual.Width(), "frame widths should match")
	assert.Equal(t, expected.Columns(), actual.Columns(), "frame columns should match")
	assert.True(t, expected.Index().Equal(actual.Index()), "frame indices should match")

	for _, colName := range expected.Columns() {
		expectedCol, expectedExists := expected.Column(colName)
		actualCol, actualExists := actual.Column(colName)

		require.True(t, expectedExists, "expected column %s should exist", colName)
		require.True(t, actualExists, "actual column %s should exist", colName)

		for i := 0; i < expected.Len(); i++ {
			assert.Equal(t, expectedCol.IsNull(i), actualCol.IsNull(i),
				"column %s null state should match at row %d", colName, i)
			if !expectedCol.IsNull(i) {
				assert.Equal(t, expectedCol.GetAsString(i), actualCol.GetAsString(i),
					"column %s value should match at row %d", colName, i)
			}
		}
	}
}

// AssertFrameHasColumns verifies that a frame has the expected columns.
func AssertFrameHasColumns(t *testing.T, f *frame.Frame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, f, "frame should not be nil")

	actualColumns := f.Columns()
	assert.Len(t, actualColumns, len(expectedColumns), "column count should match")

	for _, col := range expectedColumns {
		assert.True(t, f.HasColumn(col), "frame should have column %s", col)
	}
}

// AssertFrameNotEmpty verifies that a frame has rows and columns.
func AssertFrameNotEmpty(t *testing.T, f *frame.Frame) {
	t.Helper()

	require.NotNil(t, f, "frame should not be nil")
	assert.Positive(t, f.Len(), "frame should not be empty")
	assert.Positive(t, f.Width(), "frame should have columns")
}

// Helper functions for generating test data

// generateAirTemps builds a diurnal temperature curve peaking mid-afternoon.
// Gaps land on every eleventh row when requested.
func generateAirTemps(count int, withGaps bool) []float64 {
	temps := make([]float64, count)
	for i := range count {
		hourOfDay := float64(i%48) / 2.0
		temps[i] = 18.0 + 8.0*math.Sin((hourOfDay-9.0)*math.Pi/12.0)
		if withGaps && i%11 == 5 {
			temps[i] = math.NaN()
		}
	}
	return temps
}

// generateHumidity builds a humidity curve anti-phase to temperature.
func generateHumidity(count int, withGaps bool) []float64 {
	humidity := make([]float64, count)
	for i := range count {
		hourOfDay := float64(i%48) / 2.0
		humidity[i] = 55.0 - 25.0*math.Sin((hourOfDay-9.0)*math.Pi/12.0)
		if withGaps && i%13 == 7 {
			humidity[i] = math.NaN()
		}
	}
	return humidity
}

// generatePrecip is mostly dry with two afternoon bursts per day.
func generatePrecip(count int) []float64 {
	precip := make([]float64, count)
	for i := range count {
		switch i % 48 {
		case 30:
			precip[i] = 1.2
		case 31:
			precip[i] = 0.4
		}
	}
	return precip
}

func generateFlags(count int) []int64 {
	flags := make([]int64, count)
	for i := range count {
		if i%9 == 4 {
			flags[i] = 1
		}
	}
	return flags
}

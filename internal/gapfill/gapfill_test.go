package gapfill_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/gapfill"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
	"github.com/gremau/ecoflux-tools/internal/testutil"
)

var testStart = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(t *testing.T, name string, idx *index.Index, values []float64) *frame.TimeSeries {
	t.Helper()
	mem := memory.NewGoAllocator()
	ts, err := frame.NewTimeSeries(idx, series.New(name, values, mem))
	require.NoError(t, err)
	return ts
}

func TestFill(t *testing.T) {
	idx := index.Range(testStart, 30*time.Minute, 5)

	t.Run("fills gaps from the filler series", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21.0, math.NaN(), 20.0, math.NaN(), 19.0})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{21.1, 21.6, 20.1, 19.4, 19.1})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler)
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.Equal(t, []string{"TA_F_gf", "TA_F_gfFLAG"}, res.Frame.Columns())
		assert.Equal(t, 2, res.Gaps)
		assert.Equal(t, 2, res.Filled)
		assert.False(t, res.SoftFailed)

		filled, err := res.Frame.TimeSeries("TA_F_gf")
		require.NoError(t, err)
		defer filled.Release()
		assert.Equal(t, []float64{21.0, 21.6, 20.0, 19.4, 19.0}, filled.Values())

		flag, ok := res.Frame.Column("TA_F_gfFLAG")
		require.True(t, ok)
		wantFlags := []bool{false, true, false, true, false}
		for i, want := range wantFlags {
			assert.Equal(t, want, flag.GetAsString(i) == "true", "flag at %d", i)
		}
	})

	t.Run("gap stays missing when the filler is missing too", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21.0, math.NaN(), 20.0, 19.5, 19.0})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{21.1, math.NaN(), 20.1, 19.4, 19.1})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler)
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.Equal(t, 1, res.Gaps)
		assert.Equal(t, 0, res.Filled)

		filled, err := res.Frame.TimeSeries("TA_F_gf")
		require.NoError(t, err)
		defer filled.Release()
		assert.True(t, filled.IsMissing(1))

		// The flag still marks the original gap.
		flag, ok := res.Frame.Column("TA_F_gfFLAG")
		require.True(t, ok)
		assert.Equal(t, "true", flag.GetAsString(1))
	})

	t.Run("series without gaps passes through", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21.0, 21.5, 20.0, 19.5, 19.0})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{0, 0, 0, 0, 0})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler)
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.Equal(t, 0, res.Gaps)
		assert.Equal(t, 0, res.Filled)

		filled, err := res.Frame.TimeSeries("TA_F_gf")
		require.NoError(t, err)
		defer filled.Release()
		assert.Equal(t, []float64{21.0, 21.5, 20.0, 19.5, 19.0}, filled.Values())
	})

	t.Run("nil series is an error", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21.0, 21.5, 20.0, 19.5, 19.0})
		defer withGaps.Release()

		_, err := gapfill.Fill(withGaps, nil)
		require.Error(t, err)
		_, err = gapfill.Fill(nil, withGaps)
		require.Error(t, err)
	})
}

func TestFill_IndexMismatch(t *testing.T) {
	idx := index.Range(testStart, 30*time.Minute, 4)
	shifted := index.Range(testStart.Add(30*time.Minute), 30*time.Minute, 4)

	t.Run("is an error by default", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21, math.NaN(), 20, 19})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", shifted, []float64{1, 2, 3, 4})
		defer filler.Release()

		_, err := gapfill.Fill(withGaps, filler)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrIndexMismatch)
	})

	t.Run("soft-fail returns the original column and logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		withGaps := makeSeries(t, "TA_F", idx, []float64{21, math.NaN(), 20, 19})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", shifted, []float64{1, 2, 3, 4})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler,
			gapfill.WithSoftFail(), gapfill.WithLogger(logger))
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.True(t, res.SoftFailed)
		assert.Equal(t, 1, res.Gaps)
		assert.Equal(t, 0, res.Filled)

		// No fill happened: only the original column, under its original name.
		assert.Equal(t, []string{"TA_F"}, res.Frame.Columns())
		original, err := res.Frame.TimeSeries("TA_F")
		require.NoError(t, err)
		defer original.Release()
		assert.True(t, original.IsMissing(1))

		assert.Contains(t, buf.String(), "indices are not the same")
	})
}

type recordingPlotter struct {
	calls    int
	title    string
	filled   []float64
	original []float64
	err      error
}

func (p *recordingPlotter) Plot(title string, filled, filler, original *frame.TimeSeries) error {
	p.calls++
	p.title = title
	p.filled = filled.Values()
	p.original = original.Values()
	return p.err
}

func TestFill_Plotter(t *testing.T) {
	idx := index.Range(testStart, 30*time.Minute, 3)

	t.Run("not invoked by default", func(t *testing.T) {
		withGaps := makeSeries(t, "TA_F", idx, []float64{21, math.NaN(), 20})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{1, 2, 3})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler)
		require.NoError(t, err)
		res.Frame.Release()
	})

	t.Run("receives title and series", func(t *testing.T) {
		p := &recordingPlotter{}

		withGaps := makeSeries(t, "TA_F", idx, []float64{21, math.NaN(), 20})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{1, 2, 3})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler, gapfill.WithPlotter(p))
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.Equal(t, 1, p.calls)
		assert.Equal(t, "TA_F", p.title)
		assert.Equal(t, []float64{21, 2, 20}, p.filled)
		assert.Equal(t, 21.0, p.original[0])
		assert.True(t, math.IsNaN(p.original[1]))
	})

	t.Run("plot errors are logged, not returned", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		p := &recordingPlotter{err: fmt.Errorf("no display")}

		withGaps := makeSeries(t, "TA_F", idx, []float64{21, math.NaN(), 20})
		defer withGaps.Release()
		filler := makeSeries(t, "TA_ERA", idx, []float64{1, 2, 3})
		defer filler.Release()

		res, err := gapfill.Fill(withGaps, filler,
			gapfill.WithPlotter(p), gapfill.WithLogger(logger))
		require.NoError(t, err)
		defer res.Frame.Release()

		assert.Equal(t, 1, p.calls)
		assert.Contains(t, buf.String(), "plotting failed")
	})
}

func TestFill_StandardTowerFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	gappy := testutil.CreateTestFrame(t, mem.Allocator, testutil.WithGaps())
	defer gappy.Release()
	complete := testutil.CreateTestFrame(t, mem.Allocator)
	defer complete.Release()

	target, err := gappy.TimeSeries("TA_1_1_1")
	require.NoError(t, err)
	defer target.Release()

	filler, err := complete.TimeSeries("TA_1_1_1")
	require.NoError(t, err)
	defer filler.Release()

	res, err := gapfill.Fill(target, filler)
	require.NoError(t, err)
	defer res.Frame.Release()

	// One day of half-hourly rows drops out on every eleventh position.
	assert.Equal(t, 4, res.Gaps)
	assert.Equal(t, res.Gaps, res.Filled)
	testutil.AssertFrameHasColumns(t, res.Frame, []string{"TA_1_1_1_gf", "TA_1_1_1_gfFLAG"})

	filled, err := res.Frame.TimeSeries("TA_1_1_1_gf")
	require.NoError(t, err)
	defer filled.Release()
	assert.Zero(t, filled.MissingCount())
}

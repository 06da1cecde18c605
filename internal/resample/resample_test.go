package resample_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/frame"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/resample"
	"github.com/gremau/ecoflux-tools/internal/series"
	"github.com/gremau/ecoflux-tools/internal/testutil"
)

var testStart = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

// twoDayFrame builds two full days of half-hourly tower data with known
// aggregates per day.
func twoDayFrame(t *testing.T) *frame.Frame {
	t.Helper()
	mem := memory.NewGoAllocator()

	const n = 96
	ta := make([]float64, n)
	pf := make([]float64, n)
	vpd := make([]float64, n)
	le := make([]float64, n)
	h := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < 48 {
			ta[i] = 20.0
		} else {
			ta[i] = 10.0
		}
		pf[i] = 1.0
		vpd[i] = float64(i) / 4
		le[i] = float64(i)
		h[i] = -float64(i)
	}
	// A couple of gaps must not skew the day-one average.
	ta[5] = math.NaN()
	ta[10] = math.NaN()

	f, err := frame.New(index.Range(testStart, 30*time.Minute, n),
		series.New("TA_F", ta, mem),
		series.New("P_F", pf, mem),
		series.New("VPD_F", vpd, mem),
		series.New("LE_F", le, mem),
		series.New("H_F", h, mem),
	)
	require.NoError(t, err)
	return f
}

func seriesValues(t *testing.T, f *frame.Frame, name string) []float64 {
	t.Helper()
	ts, err := f.TimeSeries(name)
	require.NoError(t, err)
	defer ts.Release()
	return ts.Values()
}

func TestResample_DailyDefaults(t *testing.T) {
	f := twoDayFrame(t)
	defer f.Release()

	out, err := resample.Resample(f, resample.Daily(), resample.DefaultRules())
	require.NoError(t, err)
	defer out.Frame.Release()

	assert.False(t, out.Partial)
	assert.NoError(t, out.Cause)

	// One bucket per day, labeled by day start.
	require.Equal(t, 2, out.Frame.Len())
	assert.Equal(t, testStart, out.Frame.Index().At(0))
	assert.Equal(t, testStart.AddDate(0, 0, 1), out.Frame.Index().At(1))

	// Group order: sum, avg, min, max. A column listed in two groups shows
	// up once per group under distinct suffixes.
	assert.Equal(t, []string{"P_F_sum", "TA_F_avg", "TA_F_min", "VPD_F_min", "LE_F_max", "H_F_max"},
		out.Frame.Columns())

	// 48 half-hours of 1.0 mm each.
	assert.Equal(t, []float64{48, 48}, seriesValues(t, out.Frame, "P_F_sum"))
	// Averages skip the two missing half-hours.
	assert.Equal(t, []float64{20, 10}, seriesValues(t, out.Frame, "TA_F_avg"))
	assert.Equal(t, []float64{20, 10}, seriesValues(t, out.Frame, "TA_F_min"))
	assert.Equal(t, []float64{0, 12}, seriesValues(t, out.Frame, "VPD_F_min"))
	assert.Equal(t, []float64{47, 95}, seriesValues(t, out.Frame, "LE_F_max"))
	assert.Equal(t, []float64{0, -48}, seriesValues(t, out.Frame, "H_F_max"))
}

func TestResample_EmptyBuckets(t *testing.T) {
	mem := memory.NewGoAllocator()

	// Day one and day three, nothing on day two.
	times := append(index.Range(testStart, 30*time.Minute, 48).Times(),
		index.Range(testStart.AddDate(0, 0, 2), 30*time.Minute, 48).Times()...)

	ta := make([]float64, 96)
	pf := make([]float64, 96)
	for i := range ta {
		if i < 48 {
			ta[i] = 20.0
		} else {
			ta[i] = 10.0
		}
		pf[i] = 1.0
	}

	f, err := frame.New(index.New(times),
		series.New("TA_F", ta, mem),
		series.New("P_F", pf, mem),
	)
	require.NoError(t, err)
	defer f.Release()

	out, err := resample.Resample(f, resample.Daily(),
		resample.Rules{Sum: []string{"P_F"}, Avg: []string{"TA_F"}})
	require.NoError(t, err)
	defer out.Frame.Release()

	// The empty day appears in the bucket range.
	require.Equal(t, 3, out.Frame.Len())
	assert.Equal(t, testStart.AddDate(0, 0, 1), out.Frame.Index().At(1))

	// An empty bucket totals zero but has no average.
	sums := seriesValues(t, out.Frame, "P_F_sum")
	assert.Equal(t, []float64{48, 0, 48}, sums)

	avgs, err := out.Frame.TimeSeries("TA_F_avg")
	require.NoError(t, err)
	defer avgs.Release()
	assert.Equal(t, 20.0, avgs.Value(0))
	assert.True(t, avgs.IsMissing(1))
	assert.Equal(t, 10.0, avgs.Value(2))
}

func TestResample_Integral(t *testing.T) {
	mem := memory.NewGoAllocator()

	pf := make([]float64, 48)
	for i := range pf {
		pf[i] = 1.0
	}
	f, err := frame.New(index.Range(testStart, 30*time.Minute, 48),
		series.New("P_F", pf, mem))
	require.NoError(t, err)
	defer f.Release()

	t.Run("scale inferred from index spacing", func(t *testing.T) {
		out, err := resample.Resample(f, resample.Daily(),
			resample.Rules{Int: []string{"P_F"}})
		require.NoError(t, err)
		defer out.Frame.Release()

		// 48 samples of 1.0 over 1800-second steps.
		assert.Equal(t, []float64{48 * 1800}, seriesValues(t, out.Frame, "P_F_int"))
	})

	t.Run("explicit scale override", func(t *testing.T) {
		out, err := resample.Resample(f, resample.Daily(),
			resample.Rules{Int: []string{"P_F"}},
			resample.WithIntegralScale(60))
		require.NoError(t, err)
		defer out.Frame.Release()

		assert.Equal(t, []float64{48 * 60}, seriesValues(t, out.Frame, "P_F_int"))
	})
}

func TestResample_Monthly(t *testing.T) {
	mem := memory.NewGoAllocator()

	times := []time.Time{
		time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2018, 1, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2018, 2, 3, 0, 0, 0, 0, time.UTC),
	}
	f, err := frame.New(index.New(times),
		series.New("P_F", []float64{1, 2, 4}, mem))
	require.NoError(t, err)
	defer f.Release()

	out, err := resample.Resample(f, resample.Months(1),
		resample.Rules{Sum: []string{"P_F"}})
	require.NoError(t, err)
	defer out.Frame.Release()

	require.Equal(t, 2, out.Frame.Len())
	assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), out.Frame.Index().At(0))
	assert.Equal(t, time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC), out.Frame.Index().At(1))
	assert.Equal(t, []float64{3, 4}, seriesValues(t, out.Frame, "P_F_sum"))
}

func TestResample_GuardedFallback(t *testing.T) {
	t.Run("missing avg column empties all non-sum groups", func(t *testing.T) {
		f := twoDayFrame(t)
		defer f.Release()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		out, err := resample.Resample(f, resample.Daily(), resample.Rules{
			Sum: []string{"P_F"},
			Avg: []string{"SW_IN_F"}, // not in the frame
			Min: []string{"TA_F"},
			Max: []string{"LE_F"},
		}, resample.WithLogger(logger))
		require.NoError(t, err)
		defer out.Frame.Release()

		// The run still succeeds, but only sums survive.
		assert.True(t, out.Partial)
		assert.ErrorIs(t, out.Cause, errors.ErrColumnNotFound)
		assert.Equal(t, []string{"P_F_sum"}, out.Frame.Columns())
		assert.Equal(t, []float64{48, 48}, seriesValues(t, out.Frame, "P_F_sum"))
		assert.Contains(t, buf.String(), "substituting empty results")
	})

	t.Run("failure in a later group still empties earlier ones", func(t *testing.T) {
		f := twoDayFrame(t)
		defer f.Release()

		out, err := resample.Resample(f, resample.Daily(), resample.Rules{
			Sum: []string{"P_F"},
			Avg: []string{"TA_F"},
			Max: []string{"SW_IN_F"},
		})
		require.NoError(t, err)
		defer out.Frame.Release()

		assert.True(t, out.Partial)
		assert.Equal(t, []string{"P_F_sum"}, out.Frame.Columns())
	})

	t.Run("non-numeric guarded column triggers the fallback", func(t *testing.T) {
		mem := memory.NewGoAllocator()
		f, err := frame.New(index.Range(testStart, 30*time.Minute, 4),
			series.New("P_F", []float64{1, 1, 1, 1}, mem),
			series.New("P_F_gfFLAG", []bool{false, true, false, false}, mem),
		)
		require.NoError(t, err)
		defer f.Release()

		out, err := resample.Resample(f, resample.Daily(), resample.Rules{
			Sum: []string{"P_F"},
			Avg: []string{"P_F_gfFLAG"},
		})
		require.NoError(t, err)
		defer out.Frame.Release()

		assert.True(t, out.Partial)
		require.Error(t, out.Cause)
		assert.Contains(t, out.Cause.Error(), "non-numeric")
		assert.Equal(t, []string{"P_F_sum"}, out.Frame.Columns())
	})
}

func TestResample_SumErrorsPropagate(t *testing.T) {
	f := twoDayFrame(t)
	defer f.Release()

	_, err := resample.Resample(f, resample.Daily(), resample.Rules{
		Sum: []string{"P_F", "SNOW_D"},
		Avg: []string{"TA_F"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "SNOW_D")
}

func TestResample_UnsortedIndex(t *testing.T) {
	mem := memory.NewGoAllocator()

	times := []time.Time{
		testStart.Add(time.Hour),
		testStart, // out of order
	}
	f, err := frame.New(index.New(times), series.New("P_F", []float64{1, 2}, mem))
	require.NoError(t, err)
	defer f.Release()

	_, err = resample.Resample(f, resample.Daily(), resample.Rules{Sum: []string{"P_F"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsortedIndex)
}

func TestResample_ZeroFrequencyDefaultsToDaily(t *testing.T) {
	f := twoDayFrame(t)
	defer f.Release()

	out, err := resample.Resample(f, resample.Frequency{}, resample.Rules{Sum: []string{"P_F"}})
	require.NoError(t, err)
	defer out.Frame.Release()

	assert.Equal(t, 2, out.Frame.Len())
}

func TestResample_EmptyInputs(t *testing.T) {
	t.Run("empty rules keep the bucket index", func(t *testing.T) {
		f := twoDayFrame(t)
		defer f.Release()

		out, err := resample.Resample(f, resample.Daily(), resample.Rules{})
		require.NoError(t, err)
		defer out.Frame.Release()

		assert.Equal(t, 2, out.Frame.Len())
		assert.Equal(t, 0, out.Frame.Width())
	})

	t.Run("zero-row frame yields a zero-row output", func(t *testing.T) {
		f := frame.Empty(index.New(nil))
		defer f.Release()

		out, err := resample.Resample(f, resample.Daily(), resample.Rules{})
		require.NoError(t, err)
		defer out.Frame.Release()

		assert.Equal(t, 0, out.Frame.Len())
	})

	t.Run("nil frame is an error", func(t *testing.T) {
		_, err := resample.Resample(nil, resample.Daily(), resample.Rules{})
		assert.Error(t, err)
	})
}

func TestDefaultRules(t *testing.T) {
	rules := resample.DefaultRules()

	assert.Equal(t, []string{"P_F"}, rules.Sum)
	assert.Equal(t, []string{"TA_F"}, rules.Avg)
	assert.Equal(t, []string{"TA_F", "VPD_F"}, rules.Min)
	assert.Equal(t, []string{"LE_F", "H_F"}, rules.Max)
	assert.Empty(t, rules.Int)
	assert.False(t, rules.IsEmpty())
}

func TestRulesColumns(t *testing.T) {
	rules := resample.Rules{
		Sum: []string{"P_F"},
		Avg: []string{"TA_F"},
		Min: []string{"TA_F", "VPD_F"},
	}
	assert.Equal(t, []string{"P_F", "TA_F", "VPD_F"}, rules.Columns())
	assert.True(t, resample.Rules{}.IsEmpty())
}

func TestAggKind(t *testing.T) {
	assert.Equal(t, "_sum", resample.AggSum.Suffix())
	assert.Equal(t, "_avg", resample.AggAvg.Suffix())
	assert.Equal(t, "_min", resample.AggMin.Suffix())
	assert.Equal(t, "_max", resample.AggMax.Suffix())
	assert.Equal(t, "_int", resample.AggInt.Suffix())
	assert.Equal(t, "avg", resample.AggAvg.String())
}

func TestResample_StandardTowerFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	f := testutil.CreateTestFrame(t, mem.Allocator,
		testutil.WithRowCount(96), testutil.WithGaps())
	defer f.Release()

	out, err := resample.Resample(f, resample.Daily(), resample.Rules{
		Sum: []string{"P_1_1_1"},
		Avg: []string{"TA_1_1_1", "RH_1_1_1"},
		Min: []string{"TA_1_1_1"},
		Max: []string{"TA_1_1_1"},
	})
	require.NoError(t, err)
	defer out.Frame.Release()

	assert.False(t, out.Partial)
	assert.Equal(t, 2, out.Frame.Len())
	testutil.AssertFrameHasColumns(t, out.Frame, []string{
		"P_1_1_1_sum", "TA_1_1_1_avg", "RH_1_1_1_avg", "TA_1_1_1_min", "TA_1_1_1_max",
	})

	sums, err := out.Frame.TimeSeries("P_1_1_1_sum")
	require.NoError(t, err)
	defer sums.Release()
	// Two bursts of 1.2 and 0.4 per day.
	assert.InDelta(t, 1.6, sums.Value(0), 1e-9)
	assert.InDelta(t, 1.6, sums.Value(1), 1e-9)

	avgs, err := out.Frame.TimeSeries("TA_1_1_1_avg")
	require.NoError(t, err)
	defer avgs.Release()
	mins, err := out.Frame.TimeSeries("TA_1_1_1_min")
	require.NoError(t, err)
	defer mins.Release()
	maxs, err := out.Frame.TimeSeries("TA_1_1_1_max")
	require.NoError(t, err)
	defer maxs.Release()

	for day := 0; day < 2; day++ {
		require.False(t, avgs.IsMissing(day))
		assert.LessOrEqual(t, mins.Value(day), avgs.Value(day))
		assert.LessOrEqual(t, avgs.Value(day), maxs.Value(day))
	}
}

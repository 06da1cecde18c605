package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func halfHourly(start time.Time, n int) []time.Time {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * 30 * time.Minute)
	}
	return times
}

func TestNew(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	times := halfHourly(start, 4)

	idx := New(times)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, start, idx.At(0))
	assert.Equal(t, start.Add(90*time.Minute), idx.At(3))

	// The constructor copies its input.
	times[0] = times[0].Add(time.Hour)
	assert.Equal(t, start, idx.At(0))
}

func TestAt_OutOfRange(t *testing.T) {
	idx := New(halfHourly(time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC), 2))

	assert.True(t, idx.At(-1).IsZero())
	assert.True(t, idx.At(2).IsZero())
}

func TestRange(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	idx := Range(start, time.Hour, 3)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, start.Add(2*time.Hour), idx.At(2))
}

func TestTimes_ReturnsCopy(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)
	idx := New(halfHourly(start, 3))

	out := idx.Times()
	out[1] = out[1].Add(time.Hour)
	assert.Equal(t, start.Add(30*time.Minute), idx.At(1))
}

func TestEqual(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("identical indices are equal", func(t *testing.T) {
		a := New(halfHourly(start, 48))
		b := New(halfHourly(start, 48))
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("different lengths differ", func(t *testing.T) {
		a := New(halfHourly(start, 48))
		b := New(halfHourly(start, 47))
		assert.False(t, a.Equal(b))
	})

	t.Run("shifted start differs", func(t *testing.T) {
		a := New(halfHourly(start, 48))
		b := New(halfHourly(start.Add(30*time.Minute), 48))
		assert.False(t, a.Equal(b))
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("same instants across zones are equal", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		a := New([]time.Time{start, start.Add(time.Hour)})
		b := New([]time.Time{start.In(loc), start.Add(time.Hour).In(loc)})
		assert.True(t, a.Equal(b))
	})

	t.Run("nil and empty are equal", func(t *testing.T) {
		var a *Index
		b := New(nil)
		assert.True(t, a.Equal(b))
		assert.True(t, b.Equal(a))
		assert.Equal(t, 0, a.Len())
	})
}

func TestIsSorted(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

	sorted := New(halfHourly(start, 10))
	assert.True(t, sorted.IsSorted())

	times := halfHourly(start, 10)
	times[4], times[5] = times[5], times[4]
	assert.False(t, New(times).IsSorted())

	// Duplicate timestamps still count as sorted.
	dup := New([]time.Time{start, start, start.Add(time.Hour)})
	assert.True(t, dup.IsSorted())
}

func TestMedianStep(t *testing.T) {
	start := time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("regular half-hourly spacing", func(t *testing.T) {
		idx := New(halfHourly(start, 48))
		assert.Equal(t, 30*time.Minute, idx.MedianStep())
	})

	t.Run("tolerates an occasional gap", func(t *testing.T) {
		times := halfHourly(start, 10)
		times = append(times, times[len(times)-1].Add(5*time.Hour))
		times = append(times, halfHourly(times[len(times)-1].Add(30*time.Minute), 10)...)
		assert.Equal(t, 30*time.Minute, New(times).MedianStep())
	})

	t.Run("too few entries", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), New(nil).MedianStep())
		assert.Equal(t, time.Duration(0), New([]time.Time{start}).MedianStep())
	})

	t.Run("even diff count averages the middle pair", func(t *testing.T) {
		times := []time.Time{
			start,
			start.Add(10 * time.Minute),
			start.Add(40 * time.Minute),
		}
		assert.Equal(t, 20*time.Minute, New(times).MedianStep())
	})
}

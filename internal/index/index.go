// Package index provides the ordered time index shared by series and frames.
// An Index is immutable once built and carries a cached xxhash fingerprint of
// its timestamps so equality checks can reject mismatched indices without an
// elementwise scan.
package index

import (
	"encoding/binary"
	"sort"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
)

// Index is an immutable, ordered sequence of time row labels.
type Index struct {
	times       []time.Time
	fingerprint uint64
}

// New creates an index from the given timestamps. The slice is copied.
func New(times []time.Time) *Index {
	copied := make([]time.Time, len(times))
	copy(copied, times)
	return &Index{
		times:       copied,
		fingerprint: fingerprint(copied),
	}
}

// Range creates a regularly spaced index of n timestamps starting at start.
func Range(start time.Time, step time.Duration, n int) *Index {
	times := make([]time.Time, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * step)
	}
	return &Index{
		times:       times,
		fingerprint: fingerprint(times),
	}
}

// Len returns the number of row labels in the index.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.times)
}

// At returns the timestamp at position i, or the zero time if i is out of range.
func (idx *Index) At(i int) time.Time {
	if idx == nil || i < 0 || i >= len(idx.times) {
		return time.Time{}
	}
	return idx.times[i]
}

// Times returns a copy of the index timestamps.
func (idx *Index) Times() []time.Time {
	if idx == nil {
		return nil
	}
	copied := make([]time.Time, len(idx.times))
	copy(copied, idx.times)
	return copied
}

// Fingerprint returns the cached xxhash digest of the index timestamps.
func (idx *Index) Fingerprint() uint64 {
	if idx == nil {
		return 0
	}
	return idx.fingerprint
}

// Equal reports whether two indices hold the same instants in the same order.
// The cached fingerprints serve as a fast reject before elementwise comparison.
func (idx *Index) Equal(other *Index) bool {
	if idx == nil || other == nil {
		return idx.Len() == 0 && other.Len() == 0
	}
	if len(idx.times) != len(other.times) {
		return false
	}
	if idx.fingerprint != other.fingerprint {
		return false
	}
	for i, t := range idx.times {
		if !t.Equal(other.times[i]) {
			return false
		}
	}
	return true
}

// IsSorted reports whether the index timestamps are monotonically non-decreasing.
func (idx *Index) IsSorted() bool {
	if idx == nil {
		return true
	}
	for i := 1; i < len(idx.times); i++ {
		if idx.times[i].Before(idx.times[i-1]) {
			return false
		}
	}
	return true
}

// MedianStep returns the median spacing between consecutive timestamps.
// It is robust against occasional gaps in otherwise regular sampling and
// returns zero for indices with fewer than two entries.
func (idx *Index) MedianStep() time.Duration {
	if idx == nil || len(idx.times) < 2 {
		return 0
	}
	diffs := make([]time.Duration, 0, len(idx.times)-1)
	for i := 1; i < len(idx.times); i++ {
		diffs = append(diffs, idx.times[i].Sub(idx.times[i-1]))
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	mid := len(diffs) / 2
	if len(diffs)%2 == 0 {
		return (diffs[mid-1] + diffs[mid]) / 2
	}
	return diffs[mid]
}

// fingerprint hashes the epoch-nanosecond encoding of each timestamp in order,
// so indices covering the same instants compare equal across time zones.
func fingerprint(times []time.Time) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, t := range times {
		binary.LittleEndian.PutUint64(buf[:], uint64(t.UnixNano()))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

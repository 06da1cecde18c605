package frame

import (
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gremau/ecoflux-tools/internal/errors"
	"github.com/gremau/ecoflux-tools/internal/index"
	"github.com/gremau/ecoflux-tools/internal/series"
)

// wrapArray wraps an Arrow array as a typed series, retaining a reference.
func wrapArray(name string, arr arrow.Array) (ISeries, error) {
	switch arr.(type) {
	case *array.Float64:
		return series.FromArrow[float64](name, arr), nil
	case *array.Boolean:
		return series.FromArrow[bool](name, arr), nil
	case *array.String:
		return series.FromArrow[string](name, arr), nil
	case *array.Int64:
		return series.FromArrow[int64](name, arr), nil
	case *array.Timestamp:
		return series.FromArrow[time.Time](name, arr), nil
	default:
		return nil, errors.NewUnsupportedTypeError("frame", arr.DataType().String())
	}
}

// shareSeries returns a new series handle on the same storage, so source and
// result frames can be released independently.
func shareSeries(s ISeries) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()
	return wrapArray(s.Name(), arr)
}

// unionIndex builds the sorted union of all frame indices, deduplicated by
// instant.
func unionIndex(frames []*Frame) *index.Index {
	var all []time.Time
	for _, fr := range frames {
		all = append(all, fr.index.Times()...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })

	out := all[:0]
	for i, t := range all {
		if i == 0 || !t.Equal(all[i-1]) {
			out = append(out, t)
		}
	}
	return index.New(out)
}

// positionMap maps each union index position to the corresponding source index
// position, or -1 where the source has no such row label. Duplicate labels in
// the source map to their first occurrence.
func positionMap(src, union *index.Index) []int {
	byNano := make(map[int64]int, src.Len())
	for i := 0; i < src.Len(); i++ {
		nano := src.At(i).UnixNano()
		if _, exists := byNano[nano]; !exists {
			byNano[nano] = i
		}
	}

	mapping := make([]int, union.Len())
	for i := range mapping {
		if pos, exists := byNano[union.At(i).UnixNano()]; exists {
			mapping[i] = pos
		} else {
			mapping[i] = -1
		}
	}
	return mapping
}

// alignSeries rebuilds a series along the given position mapping, preserving
// nulls and inserting nulls at unmapped positions.
func alignSeries(s ISeries, mapping []int) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()

	mem := memory.NewGoAllocator()

	switch arr.(type) {
	case *array.Float64:
		return alignTypedSeries(s.Name(), arr, mapping, mem, func(a arrow.Array, i int) float64 {
			return a.(*array.Float64).Value(i)
		}), nil
	case *array.Boolean:
		return alignTypedSeries(s.Name(), arr, mapping, mem, func(a arrow.Array, i int) bool {
			return a.(*array.Boolean).Value(i)
		}), nil
	case *array.String:
		return alignTypedSeries(s.Name(), arr, mapping, mem, func(a arrow.Array, i int) string {
			return a.(*array.String).Value(i)
		}), nil
	case *array.Int64:
		return alignTypedSeries(s.Name(), arr, mapping, mem, func(a arrow.Array, i int) int64 {
			return a.(*array.Int64).Value(i)
		}), nil
	case *array.Timestamp:
		return alignTypedSeries(s.Name(), arr, mapping, mem, func(a arrow.Array, i int) time.Time {
			return time.Unix(0, int64(a.(*array.Timestamp).Value(i))).UTC()
		}), nil
	default:
		return nil, errors.NewUnsupportedTypeError("frame", arr.DataType().String())
	}
}

// alignTypedSeries is a generic helper for realigning typed series
func alignTypedSeries[T any](
	name string, arr arrow.Array, mapping []int, mem memory.Allocator,
	getValue func(arrow.Array, int) T,
) ISeries {
	values := make([]T, len(mapping))
	valid := make([]bool, len(mapping))
	for ui, si := range mapping {
		if si >= 0 && si < arr.Len() && !arr.IsNull(si) {
			values[ui] = getValue(arr, si)
			valid[ui] = true
		}
	}
	return series.NewNullable(name, values, valid, mem)
}

// Package series provides typed measurement columns backed by Apache Arrow.
// Missing observations are represented as Arrow nulls; for float64 columns the
// constructors accept NaN as missing and the accessors hand NaN back, so the
// two conventions stay interchangeable at the boundary.
package series

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// timestampType is the storage type for time columns. All instants are
// normalized to UTC nanoseconds.
var timestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

// Series represents a typed data column with Apache Arrow backend
type Series[T any] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values. For float64 values, NaN
// entries are stored as nulls.
func New[T any](name string, values []T, mem memory.Allocator) *Series[T] {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var arr arrow.Array

	// Use type switching to create appropriate Arrow array
	switch v := any(values).(type) {
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for _, val := range v {
			if math.IsNaN(val) {
				builder.AppendNull()
			} else {
				builder.Append(val)
			}
		}
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for _, val := range v {
			builder.Append(val)
		}
		arr = builder.NewArray()
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for _, val := range v {
			builder.Append(val)
		}
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for _, val := range v {
			builder.Append(val)
		}
		arr = builder.NewArray()
	case []time.Time:
		builder := array.NewTimestampBuilder(mem, timestampType)
		defer builder.Release()
		for _, val := range v {
			builder.Append(arrow.Timestamp(val.UnixNano()))
		}
		arr = builder.NewArray()
	default:
		panic(fmt.Sprintf("unsupported type: %T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// NewNullable creates a new Series with an explicit validity mask; positions
// where valid is false become nulls. The mask must match values in length.
func NewNullable[T any](name string, values []T, valid []bool, mem memory.Allocator) *Series[T] {
	if len(valid) != len(values) {
		panic(fmt.Sprintf("validity mask length %d does not match %d values", len(valid), len(values)))
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		for i, val := range v {
			if !valid[i] || math.IsNaN(val) {
				builder.AppendNull()
			} else {
				builder.Append(val)
			}
		}
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		for i, val := range v {
			if !valid[i] {
				builder.AppendNull()
			} else {
				builder.Append(val)
			}
		}
		arr = builder.NewArray()
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		for i, val := range v {
			if !valid[i] {
				builder.AppendNull()
			} else {
				builder.Append(val)
			}
		}
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		for i, val := range v {
			if !valid[i] {
				builder.AppendNull()
			} else {
				builder.Append(val)
			}
		}
		arr = builder.NewArray()
	case []time.Time:
		builder := array.NewTimestampBuilder(mem, timestampType)
		defer builder.Release()
		for i, val := range v {
			if !valid[i] {
				builder.AppendNull()
			} else {
				builder.Append(arrow.Timestamp(val.UnixNano()))
			}
		}
		arr = builder.NewArray()
	default:
		panic(fmt.Sprintf("unsupported type: %T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// FromArrow wraps an existing Arrow array as a Series, retaining a reference.
func FromArrow[T any](name string, arr arrow.Array) *Series[T] {
	arr.Retain()
	return &Series[T]{
		name:  name,
		array: arr,
	}
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Rename returns a series sharing this series' storage under a new name.
func (s *Series[T]) Rename(name string) *Series[T] {
	s.array.Retain()
	return &Series[T]{
		name:  name,
		array: s.array,
	}
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// Values returns the data as a Go slice. Null positions come back as NaN for
// float64 series, the zero time for time series, and zero values otherwise.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())

	switch arr := s.array.(type) {
	case *array.Float64:
		if values, ok := any(result).([]float64); ok {
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					values[i] = math.NaN()
				} else {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Boolean:
		if values, ok := any(result).([]bool); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.String:
		if values, ok := any(result).([]string); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Int64:
		if values, ok := any(result).([]int64); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = arr.Value(i)
				}
			}
		}
	case *array.Timestamp:
		if values, ok := any(result).([]time.Time); ok {
			for i := 0; i < arr.Len(); i++ {
				if !arr.IsNull(i) {
					values[i] = time.Unix(0, int64(arr.Value(i))).UTC()
				}
			}
		}
	default:
		panic(fmt.Sprintf("unsupported array type: %T", arr))
	}

	return result
}

// Value returns the value at the given index
func (s *Series[T]) Value(index int) T {
	var result T
	if index < 0 || index >= s.array.Len() {
		return result
	}

	switch arr := s.array.(type) {
	case *array.Float64:
		if v, ok := any(&result).(*float64); ok {
			if arr.IsNull(index) {
				*v = math.NaN()
			} else {
				*v = arr.Value(index)
			}
		}
	case *array.Boolean:
		if v, ok := any(&result).(*bool); ok && !arr.IsNull(index) {
			*v = arr.Value(index)
		}
	case *array.String:
		if v, ok := any(&result).(*string); ok && !arr.IsNull(index) {
			*v = arr.Value(index)
		}
	case *array.Int64:
		if v, ok := any(&result).(*int64); ok && !arr.IsNull(index) {
			*v = arr.Value(index)
		}
	case *array.Timestamp:
		if v, ok := any(&result).(*time.Time); ok && !arr.IsNull(index) {
			*v = time.Unix(0, int64(arr.Value(index))).UTC()
		}
	}

	return result
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// NullCount returns the number of missing values in the series.
func (s *Series[T]) NullCount() int {
	return s.array.NullN()
}

// GetAsString returns the value at index formatted as a string, or the empty
// string for nulls and out-of-range indices.
func (s *Series[T]) GetAsString(index int) string {
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return ""
	}

	switch arr := s.array.(type) {
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(index), 'g', -1, 64)
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(index))
	case *array.String:
		return arr.Value(index)
	case *array.Int64:
		return strconv.FormatInt(arr.Value(index), 10)
	case *array.Timestamp:
		return time.Unix(0, int64(arr.Value(index))).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d, nulls=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len(),
		s.NullCount())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}

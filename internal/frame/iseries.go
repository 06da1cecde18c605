package frame

import "github.com/apache/arrow-go/v18/arrow"

// ISeries defines the interface for Series types used by Frame
type ISeries interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
	GetAsString(index int) string
}

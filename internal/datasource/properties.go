package datasource

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Partitioning describes the output partitioning of a plan.
// Only the unknown kind exists: rows are not routed by key.
type Partitioning struct {
	Count int
}

// UnknownPartitioning declares n partitions with no guarantee about which rows land where.
func UnknownPartitioning(n int) Partitioning {
	return Partitioning{Count: n}
}

// PartitionCount returns the number of output partitions.
func (p Partitioning) PartitionCount() int {
	return p.Count
}

func (p Partitioning) String() string {
	return fmt.Sprintf("UnknownPartitioning(%d)", p.Count)
}

// ExecutionMode tells the engine whether a plan terminates.
type ExecutionMode int

const (
	ExecutionModeBounded ExecutionMode = iota
	ExecutionModeUnbounded
)

func (m ExecutionMode) String() string {
	if m == ExecutionModeUnbounded {
		return "Unbounded"
	}
	return "Bounded"
}

// SortField is one key of a declared output ordering.
type SortField struct {
	Column     string
	Descending bool
}

// PlanProperties is the cached summary a plan node reports to the engine.
type PlanProperties struct {
	Schema       *arrow.Schema
	Partitioning Partitioning
	Mode         ExecutionMode
	// Ordering is nil when the plan makes no ordering guarantee.
	Ordering []SortField
}

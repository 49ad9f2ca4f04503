package datasource

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ExecutionPlan is a node of the engine's physical plan.
type ExecutionPlan interface {
	Name() string
	Schema() *arrow.Schema
	Properties() PlanProperties
	Children() []ExecutionPlan
	WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error)
	// Execute starts producing the given partition.
	Execute(ctx context.Context, partition int) (RecordBatchStream, error)
	String() string
}

// ScanExec is the leaf plan reading a MemSource.
type ScanExec struct {
	source     *MemSource
	projection []int
	schema     *arrow.Schema
	props      PlanProperties
}

// NewScanExec validates the projection against the source descriptor and caches the plan properties.
func NewScanExec(source *MemSource, projection []int) (*ScanExec, error) {
	projected, err := source.descriptor.Project(projection)
	if err != nil {
		return nil, err
	}
	schema, err := projected.ArrowSchema()
	if err != nil {
		return nil, err
	}
	var proj []int
	if projection != nil {
		proj = append([]int(nil), projection...)
	}
	return &ScanExec{
		source:     source,
		projection: proj,
		schema:     schema,
		props:      computeProperties(schema),
	}, nil
}

func computeProperties(schema *arrow.Schema) PlanProperties {
	return PlanProperties{
		Schema:       schema,
		Partitioning: UnknownPartitioning(1),
		Mode:         ExecutionModeBounded,
	}
}

func (s *ScanExec) Name() string {
	return "ScanExec"
}

func (s *ScanExec) Schema() *arrow.Schema {
	return s.schema
}

func (s *ScanExec) Properties() PlanProperties {
	return s.props
}

// Projection returns the column indices read from the source; nil means all.
func (s *ScanExec) Projection() []int {
	return s.projection
}

func (s *ScanExec) Children() []ExecutionPlan {
	return nil
}

func (s *ScanExec) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if len(children) > 0 {
		return nil, fmt.Errorf("%w: %s got %d", ErrChildrenNotSupported, s.Name(), len(children))
	}
	return s, nil
}

// Execute snapshots the projected columns and returns a stream of a single batch.
func (s *ScanExec) Execute(ctx context.Context, partition int) (RecordBatchStream, error) {
	if partition != 0 {
		return nil, fmt.Errorf("%w: %d, %s has 1 partition", ErrInvalidPartition, partition, s.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arrays, rows, err := s.source.store.Snapshot(s.projection)
	if err != nil {
		return nil, err
	}
	return newMemoryStream(s.schema, arrays, rows), nil
}

func (s *ScanExec) String() string {
	proj := "*"
	if s.projection != nil {
		parts := make([]string, 0, len(s.projection))
		for _, f := range s.schema.Fields() {
			parts = append(parts, f.Name)
		}
		proj = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("ScanExec: table=%s, projection=[%s], partitions=%d",
		s.source.descriptor.Name, proj, s.props.Partitioning.PartitionCount())
}

package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
)

// ScanExecutor lê todas as partições de um plano físico, em ordem.
type ScanExecutor struct {
	plan      datasource.ExecutionPlan
	partition int
	stream    datasource.RecordBatchStream
}

func NewScanExecutor(plan datasource.ExecutionPlan) *ScanExecutor {
	return &ScanExecutor{plan: plan}
}

func (s *ScanExecutor) Schema() *arrow.Schema {
	return s.plan.Schema()
}

func (s *ScanExecutor) Next(ctx context.Context) (arrow.Record, error) {
	partitions := s.plan.Properties().Partitioning.PartitionCount()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.stream == nil {
			if s.partition >= partitions {
				return nil, ErrNoMoreBatches
			}
			stream, err := s.plan.Execute(ctx, s.partition)
			if err != nil {
				return nil, err
			}
			s.stream = stream
			s.partition++
		}
		if s.stream.Next() {
			rec := s.stream.RecordBatch()
			rec.Retain()
			return rec, nil
		}
		err := s.stream.Err()
		s.stream.Release()
		s.stream = nil
		if err != nil {
			return nil, err
		}
	}
}

func (s *ScanExecutor) Close() error {
	if s.stream != nil {
		s.stream.Release()
		s.stream = nil
	}
	return nil
}

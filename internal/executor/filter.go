package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FilterExecutor aplica um predicado sobre batches do filho.
type FilterExecutor struct {
	child     Executor
	predicate Predicate
	mem       memory.Allocator
}

func NewFilterExecutor(child Executor, predicate Predicate) *FilterExecutor {
	return &FilterExecutor{child: child, predicate: predicate, mem: memory.DefaultAllocator}
}

func (f *FilterExecutor) Schema() *arrow.Schema {
	return f.child.Schema()
}

func (f *FilterExecutor) Next(ctx context.Context) (arrow.Record, error) {
	for {
		batch, err := f.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if f.predicate == nil {
			return batch, nil
		}
		filtered, err := f.apply(ctx, batch)
		batch.Release()
		if err != nil {
			return nil, err
		}
		if filtered.NumRows() == 0 {
			filtered.Release()
			continue
		}
		return filtered, nil
	}
}

// apply monta a máscara booleana linha a linha e delega a seleção ao kernel de filtro.
func (f *FilterExecutor) apply(ctx context.Context, batch arrow.Record) (arrow.Record, error) {
	mask := array.NewBooleanBuilder(f.mem)
	defer mask.Release()
	mask.Reserve(int(batch.NumRows()))

	row := batchRow{rec: batch}
	for i := 0; i < int(batch.NumRows()); i++ {
		row.index = i
		ok, err := f.predicate(row)
		if err != nil {
			return nil, fmt.Errorf("filtro na linha %d: %w", i, err)
		}
		mask.Append(ok)
	}
	maskArr := mask.NewBooleanArray()
	defer maskArr.Release()

	return compute.FilterRecordBatch(ctx, batch, maskArr, compute.DefaultFilterOptions())
}

func (f *FilterExecutor) Close() error {
	return f.child.Close()
}

package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// SortKey define cada coluna usada na ordenação.
// Nulos ficam depois dos valores em ordem ascendente e antes em descendente.
type SortKey struct {
	Column    int
	Ascending bool
}

// SortExecutor agrega todas as linhas em memória e ordena antes de devolver batches.
type SortExecutor struct {
	child     Executor
	keys      []SortKey
	batchSize int64
	mem       memory.Allocator

	buffer arrow.Record
	offset int64
	loaded bool
}

func NewSortExecutor(child Executor, keys []SortKey, batchSize int) *SortExecutor {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &SortExecutor{
		child:     child,
		keys:      keys,
		batchSize: int64(batchSize),
		mem:       memory.DefaultAllocator,
	}
}

func (s *SortExecutor) Schema() *arrow.Schema {
	return s.child.Schema()
}

func (s *SortExecutor) Next(ctx context.Context) (arrow.Record, error) {
	if !s.loaded {
		if err := s.loadAndSort(ctx); err != nil {
			return nil, err
		}
		s.loaded = true
	}
	if s.buffer == nil || s.offset >= s.buffer.NumRows() {
		return nil, ErrNoMoreBatches
	}
	end := min(s.offset+s.batchSize, s.buffer.NumRows())
	out := s.buffer.NewSlice(s.offset, end)
	s.offset = end
	return out, nil
}

func (s *SortExecutor) loadAndSort(ctx context.Context) error {
	batches, err := Drain(ctx, s.child)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}
	combined, err := concatRecords(batches, s.mem)
	for _, b := range batches {
		b.Release()
	}
	if err != nil {
		return err
	}
	defer combined.Release()

	n := int(combined.NumRows())
	keyValues := make([][]columnar.Value, len(s.keys))
	for k, key := range s.keys {
		if key.Column < 0 || key.Column >= int(combined.NumCols()) {
			return fmt.Errorf("chave de ordenação inválida: coluna %d", key.Column)
		}
		vals := make([]columnar.Value, n)
		for i := 0; i < n; i++ {
			v, err := columnar.ValueAt(combined.Column(key.Column), i)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		keyValues[k] = vals
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		for k, key := range s.keys {
			comp := columnar.CompareNullsLast(keyValues[k][order[i]], keyValues[k][order[j]])
			if comp == 0 {
				continue
			}
			if key.Ascending {
				return comp < 0
			}
			return comp > 0
		}
		return false
	})

	ib := array.NewInt64Builder(s.mem)
	defer ib.Release()
	ib.Reserve(n)
	for _, idx := range order {
		ib.Append(int64(idx))
	}
	indices := ib.NewArray()
	defer indices.Release()

	cols := make([]arrow.Array, 0, combined.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for _, col := range combined.Columns() {
		taken, err := compute.TakeArray(ctx, col, indices)
		if err != nil {
			return fmt.Errorf("ordenação: %w", err)
		}
		cols = append(cols, taken)
	}
	s.buffer = array.NewRecord(combined.Schema(), cols, int64(n))
	return nil
}

func (s *SortExecutor) Close() error {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
	return s.child.Close()
}

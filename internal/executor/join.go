package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// JoinType representa o tipo de join suportado.
type JoinType string

const (
	JoinTypeInner JoinType = "INNER"
	JoinTypeLeft  JoinType = "LEFT"
)

// JoinCondition lista pares de colunas comparadas por igualdade, por posição.
type JoinCondition struct {
	LeftColumns  []int
	RightColumns []int
}

// HashJoinExecutor carrega o lado direito numa tabela hash e percorre o esquerdo,
// mantendo a ordem das linhas da esquerda. Chaves com NULL nunca casam.
type HashJoinExecutor struct {
	left      Executor
	right     Executor
	joinType  JoinType
	condition JoinCondition
	schema    *arrow.Schema
	mem       memory.Allocator

	built     bool
	build     arrow.Record
	hashTable map[string][]int64
}

func NewHashJoinExecutor(left, right Executor, joinType JoinType, cond JoinCondition) (*HashJoinExecutor, error) {
	if len(cond.LeftColumns) == 0 || len(cond.LeftColumns) != len(cond.RightColumns) {
		return nil, fmt.Errorf("join: condição com %d e %d colunas", len(cond.LeftColumns), len(cond.RightColumns))
	}
	ls, rs := left.Schema(), right.Schema()
	for i := range cond.LeftColumns {
		l, r := cond.LeftColumns[i], cond.RightColumns[i]
		if l < 0 || l >= ls.NumFields() || r < 0 || r >= rs.NumFields() {
			return nil, fmt.Errorf("join: chave %d fora do schema", i)
		}
		if !arrow.TypeEqual(ls.Field(l).Type, rs.Field(r).Type) {
			return nil, fmt.Errorf("join: tipos diferentes em %s = %s", ls.Field(l).Name, rs.Field(r).Name)
		}
	}
	fields := append([]arrow.Field(nil), ls.Fields()...)
	for _, f := range rs.Fields() {
		if joinType == JoinTypeLeft {
			f.Nullable = true
		}
		fields = append(fields, f)
	}
	return &HashJoinExecutor{
		left:      left,
		right:     right,
		joinType:  joinType,
		condition: cond,
		schema:    arrow.NewSchema(fields, nil),
		mem:       memory.DefaultAllocator,
	}, nil
}

func (j *HashJoinExecutor) Schema() *arrow.Schema {
	return j.schema
}

func (j *HashJoinExecutor) Next(ctx context.Context) (arrow.Record, error) {
	if !j.built {
		if err := j.buildHashTable(ctx); err != nil {
			return nil, err
		}
		j.built = true
	}
	for {
		leftBatch, err := j.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		result, err := j.probe(ctx, leftBatch)
		leftBatch.Release()
		if err != nil {
			return nil, err
		}
		if result.NumRows() > 0 {
			return result, nil
		}
		result.Release()
	}
}

func (j *HashJoinExecutor) buildHashTable(ctx context.Context) error {
	batches, err := Drain(ctx, j.right)
	if err != nil {
		return err
	}
	j.hashTable = map[string][]int64{}
	if len(batches) == 0 {
		return nil
	}
	j.build, err = concatRecords(batches, j.mem)
	for _, b := range batches {
		b.Release()
	}
	if err != nil {
		return err
	}
	row := batchRow{rec: j.build}
	for i := 0; i < int(j.build.NumRows()); i++ {
		row.index = i
		key, ok, err := joinKey(row, j.condition.RightColumns)
		if err != nil {
			return err
		}
		if ok {
			j.hashTable[key] = append(j.hashTable[key], int64(i))
		}
	}
	return nil
}

// joinKey concatena os valores das chaves; ok=false quando alguma é NULL.
func joinKey(row batchRow, columns []int) (string, bool, error) {
	var sb strings.Builder
	for _, c := range columns {
		v, err := row.Value(c)
		if err != nil {
			return "", false, err
		}
		if v.IsNull() {
			return "", false, nil
		}
		sb.WriteString(v.String())
		sb.WriteByte(0)
	}
	return sb.String(), true, nil
}

func (j *HashJoinExecutor) probe(ctx context.Context, batch arrow.Record) (arrow.Record, error) {
	leftIdx := array.NewInt64Builder(j.mem)
	defer leftIdx.Release()
	rightIdx := array.NewInt64Builder(j.mem)
	defer rightIdx.Release()

	row := batchRow{rec: batch}
	for i := 0; i < int(batch.NumRows()); i++ {
		row.index = i
		key, ok, err := joinKey(row, j.condition.LeftColumns)
		if err != nil {
			return nil, err
		}
		var matches []int64
		if ok {
			matches = j.hashTable[key]
		}
		for _, m := range matches {
			leftIdx.Append(int64(i))
			rightIdx.Append(m)
		}
		if len(matches) == 0 && j.joinType == JoinTypeLeft {
			leftIdx.Append(int64(i))
			rightIdx.AppendNull()
		}
	}
	li := leftIdx.NewArray()
	defer li.Release()
	ri := rightIdx.NewArray()
	defer ri.Release()

	cols := make([]arrow.Array, 0, j.schema.NumFields())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for _, col := range batch.Columns() {
		taken, err := compute.TakeArray(ctx, col, li)
		if err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		cols = append(cols, taken)
	}
	rightFields := j.schema.Fields()[batch.NumCols():]
	for c, f := range rightFields {
		if j.build == nil {
			// lado direito vazio: só LEFT JOIN chega aqui com linhas
			cols = append(cols, array.MakeArrayOfNull(j.mem, f.Type, li.Len()))
			continue
		}
		taken, err := compute.TakeArray(ctx, j.build.Column(c), ri)
		if err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		cols = append(cols, taken)
	}
	return array.NewRecord(j.schema, cols, int64(li.Len())), nil
}

func (j *HashJoinExecutor) Close() error {
	if j.build != nil {
		j.build.Release()
		j.build = nil
	}
	lerr := j.left.Close()
	if err := j.right.Close(); err != nil {
		return err
	}
	return lerr
}

// concatRecords junta os batches num único record; com um só batch apenas o retém.
func concatRecords(batches []arrow.Record, mem memory.Allocator) (arrow.Record, error) {
	if len(batches) == 1 {
		batches[0].Retain()
		return batches[0], nil
	}
	schema := batches[0].Schema()
	cols := make([]arrow.Array, schema.NumFields())
	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	for c := range cols {
		parts := make([]arrow.Array, 0, len(batches))
		for _, b := range batches {
			parts = append(parts, b.Column(c))
		}
		merged, err := array.Concatenate(parts, mem)
		if err != nil {
			for _, m := range cols[:c] {
				m.Release()
			}
			return nil, err
		}
		cols[c] = merged
	}
	rec := array.NewRecord(schema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	return rec, nil
}

package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ComputedColumn aplica Fn à coluna de texto Arg. ok=false vira NULL.
type ComputedColumn struct {
	Name string
	Arg  int
	Fn   func(string) (string, bool)
}

// ComputeExecutor acrescenta colunas calculadas ao fim de cada batch do filho.
type ComputeExecutor struct {
	child   Executor
	columns []ComputedColumn
	schema  *arrow.Schema
	mem     memory.Allocator
}

func NewComputeExecutor(child Executor, columns []ComputedColumn) (*ComputeExecutor, error) {
	in := child.Schema()
	fields := append([]arrow.Field(nil), in.Fields()...)
	for _, col := range columns {
		if col.Arg < 0 || col.Arg >= in.NumFields() {
			return nil, fmt.Errorf("coluna calculada %s: argumento %d de %d", col.Name, col.Arg, in.NumFields())
		}
		if in.Field(col.Arg).Type.ID() != arrow.STRING {
			return nil, fmt.Errorf("coluna calculada %s: argumento %s não é texto", col.Name, in.Field(col.Arg).Name)
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	return &ComputeExecutor{
		child:   child,
		columns: columns,
		schema:  arrow.NewSchema(fields, nil),
		mem:     memory.DefaultAllocator,
	}, nil
}

func (c *ComputeExecutor) Schema() *arrow.Schema {
	return c.schema
}

func (c *ComputeExecutor) Next(ctx context.Context) (arrow.Record, error) {
	batch, err := c.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	cols := append([]arrow.Array(nil), batch.Columns()...)
	computed := make([]arrow.Array, 0, len(c.columns))
	defer func() {
		for _, a := range computed {
			a.Release()
		}
	}()
	for _, col := range c.columns {
		computed = append(computed, c.eval(col, batch.Column(col.Arg).(*array.String)))
	}
	return array.NewRecord(c.schema, append(cols, computed...), batch.NumRows()), nil
}

func (c *ComputeExecutor) eval(col ComputedColumn, in *array.String) arrow.Array {
	b := array.NewStringBuilder(c.mem)
	defer b.Release()
	b.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		if in.IsNull(i) {
			b.AppendNull()
			continue
		}
		if v, ok := col.Fn(in.Value(i)); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
	return b.NewArray()
}

func (c *ComputeExecutor) Close() error {
	return c.child.Close()
}

package executor

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ProjectColumn seleciona a coluna Index do filho e a expõe como Name.
type ProjectColumn struct {
	Index int
	Name  string
}

// ProjectExecutor reordena, duplica e renomeia colunas sem copiar dados.
type ProjectExecutor struct {
	child   Executor
	columns []ProjectColumn
	schema  *arrow.Schema
}

func NewProjectExecutor(child Executor, columns []ProjectColumn) (*ProjectExecutor, error) {
	in := child.Schema()
	fields := make([]arrow.Field, 0, len(columns))
	for _, col := range columns {
		if col.Index < 0 || col.Index >= in.NumFields() {
			return nil, fmt.Errorf("projeção inválida: coluna %d de %d", col.Index, in.NumFields())
		}
		f := in.Field(col.Index)
		fields = append(fields, arrow.Field{Name: col.Name, Type: f.Type, Nullable: f.Nullable})
	}
	return &ProjectExecutor{
		child:   child,
		columns: columns,
		schema:  arrow.NewSchema(fields, nil),
	}, nil
}

func (p *ProjectExecutor) Schema() *arrow.Schema {
	return p.schema
}

func (p *ProjectExecutor) Next(ctx context.Context) (arrow.Record, error) {
	batch, err := p.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Release()
	cols := make([]arrow.Array, 0, len(p.columns))
	for _, col := range p.columns {
		cols = append(cols, batch.Column(col.Index))
	}
	return array.NewRecord(p.schema, cols, batch.NumRows()), nil
}

func (p *ProjectExecutor) Close() error {
	return p.child.Close()
}

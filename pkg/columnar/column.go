package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column representa uma coluna de dados homogêneos.
// Os valores ficam num array Arrow imutável; índices nulos são marcados no bitmap de validade.
type Column struct {
	Name string
	Type DataType
	data arrow.Array
}

// NewColumn embrulha um array Arrow já construído
func NewColumn(name string, arr arrow.Array) (*Column, error) {
	dt, err := FromArrowType(arr.DataType())
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &Column{Name: name, Type: dt, data: arr}, nil
}

// Array retorna o array Arrow subjacente (sem incrementar a contagem de referências)
func (c *Column) Array() arrow.Array {
	return c.data
}

// Len retorna o número de elementos na coluna
func (c *Column) Len() int {
	if c.data == nil {
		return 0
	}
	return c.data.Len()
}

// NullCount retorna o número de posições nulas
func (c *Column) NullCount() int {
	if c.data == nil {
		return 0
	}
	return c.data.NullN()
}

// Get retorna o valor na posição especificada
func (c *Column) Get(index int) (Value, error) {
	if index < 0 || index >= c.Len() {
		return Value{}, fmt.Errorf("index out of bounds: %d (len: %d)", index, c.Len())
	}
	return ValueAt(c.data, index)
}

// Retain incrementa a contagem de referências do array
func (c *Column) Retain() {
	if c.data != nil {
		c.data.Retain()
	}
}

// Release decrementa a contagem de referências do array
func (c *Column) Release() {
	if c.data != nil {
		c.data.Release()
	}
}

// ValueAt lê a posição i de um array Arrow de um dos tipos suportados
func ValueAt(arr arrow.Array, i int) (Value, error) {
	dt, err := FromArrowType(arr.DataType())
	if err != nil {
		return Value{}, err
	}
	if arr.IsNull(i) {
		return NewNullValue(dt), nil
	}
	switch a := arr.(type) {
	case *array.Uint64:
		return NewUint64Value(a.Value(i)), nil
	case *array.Timestamp:
		return NewTimestampMillis(int64(a.Value(i))), nil
	case *array.String:
		return NewStringValue(a.Value(i)), nil
	default:
		return Value{}, fmt.Errorf("unsupported array %T", arr)
	}
}

// Builder acumula valores de uma coluna até Finish.
// Cada Append corresponde a exatamente uma linha, inclusive para nulos.
type Builder struct {
	name    string
	typ     DataType
	builder array.Builder
}

// NewBuilder cria um builder para a coluna informada
func NewBuilder(mem memory.Allocator, name string, dt DataType) (*Builder, error) {
	at, err := dt.ArrowType()
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &Builder{
		name:    name,
		typ:     dt,
		builder: array.NewBuilder(mem, at),
	}, nil
}

// Len retorna quantas linhas já foram adicionadas
func (b *Builder) Len() int {
	return b.builder.Len()
}

// Reserve pré-aloca espaço para n valores
func (b *Builder) Reserve(n int) {
	b.builder.Reserve(n)
}

// Append adiciona um valor à coluna. Valores nulos viram AppendNull, nunca são ignorados.
func (b *Builder) Append(value Value) error {
	if value.Type != b.typ {
		return fmt.Errorf("type mismatch: column is %s, got %s", b.typ, value.Type)
	}
	if value.Null {
		b.builder.AppendNull()
		return nil
	}

	switch bb := b.builder.(type) {
	case *array.Uint64Builder:
		bb.Append(value.Data.(uint64))
	case *array.TimestampBuilder:
		bb.Append(arrow.Timestamp(value.Data.(int64)))
	case *array.StringBuilder:
		bb.Append(value.Data.(string))
	default:
		return fmt.Errorf("unsupported type: %s", b.typ)
	}
	return nil
}

// Finish congela o builder numa coluna imutável. O builder não deve ser reutilizado.
func (b *Builder) Finish() *Column {
	arr := b.builder.NewArray()
	b.builder.Release()
	return &Column{Name: b.name, Type: b.typ, data: arr}
}

// Release descarta o builder sem produzir coluna
func (b *Builder) Release() {
	b.builder.Release()
}

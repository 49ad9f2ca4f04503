package storage

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// ColumnSchema describes a single column of the table descriptor.
type ColumnSchema struct {
	Name     string            `json:"name"`
	Type     columnar.DataType `json:"type"`
	Nullable bool              `json:"nullable"`
	Comment  string            `json:"comment,omitempty"`
}

// TableSchema is the ordered field list describing a columnar store.
// Column order defines column index.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// Validate ensures the schema definition is sane.
func (ts TableSchema) Validate() error {
	if strings.TrimSpace(ts.Name) == "" {
		return fmt.Errorf("table name is required")
	}
	if len(ts.Columns) == 0 {
		return fmt.Errorf("table %s must have at least one column", ts.Name)
	}
	seen := map[string]struct{}{}
	for _, col := range ts.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("table %s has a column without name", ts.Name)
		}
		lower := strings.ToLower(col.Name)
		if _, ok := seen[lower]; ok {
			return fmt.Errorf("duplicated column %s in table %s", col.Name, ts.Name)
		}
		seen[lower] = struct{}{}
		if _, err := col.Type.ArrowType(); err != nil {
			return fmt.Errorf("table %s column %s: %w", ts.Name, col.Name, err)
		}
	}
	return nil
}

// Len returns the number of fields.
func (ts TableSchema) Len() int {
	return len(ts.Columns)
}

// ColumnNames returns the ordered list of column names defined in the schema.
func (ts TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(ts.Columns))
	for _, col := range ts.Columns {
		names = append(names, col.Name)
	}
	return names
}

// ColumnIndex returns the position of the named column, ignoring case, or -1.
func (ts TableSchema) ColumnIndex(name string) int {
	for i, col := range ts.Columns {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// Project selects the requested column indices, in the given order.
// A nil projection keeps every column in its original order.
func (ts TableSchema) Project(projection []int) (TableSchema, error) {
	if projection == nil {
		return ts, nil
	}
	out := TableSchema{
		Name:    ts.Name,
		Columns: make([]ColumnSchema, 0, len(projection)),
	}
	for _, idx := range projection {
		if idx < 0 || idx >= len(ts.Columns) {
			return TableSchema{}, fmt.Errorf("%w: index %d, table %s has %d columns", ErrInvalidProjection, idx, ts.Name, len(ts.Columns))
		}
		out.Columns = append(out.Columns, ts.Columns[idx])
	}
	return out, nil
}

// ArrowSchema converts the descriptor to an arrow schema.
func (ts TableSchema) ArrowSchema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(ts.Columns))
	for _, col := range ts.Columns {
		at, err := col.Type.ArrowType()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: at, Nullable: col.Nullable})
	}
	md := arrow.NewMetadata([]string{"table"}, []string{ts.Name})
	return arrow.NewSchema(fields, &md), nil
}

// ParseSchema reads a compact schema spec such as
// "eq_id:uint64?,created_date:timestamp?,full_name:text".
// A trailing '?' marks the column as nullable.
func ParseSchema(table, spec string) (TableSchema, error) {
	spec = strings.Trim(strings.TrimSpace(spec), "{}")
	schema := TableSchema{Name: table}
	if spec == "" {
		return schema, fmt.Errorf("empty schema spec for table %s", table)
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		name, typ, ok := strings.Cut(part, ":")
		if !ok {
			return TableSchema{}, fmt.Errorf("invalid column spec %q, expected name:type", part)
		}
		nullable := strings.HasSuffix(typ, "?")
		dt, err := ParseColumnType(strings.TrimSuffix(typ, "?"))
		if err != nil {
			return TableSchema{}, fmt.Errorf("column %s: %w", name, err)
		}
		schema.Columns = append(schema.Columns, ColumnSchema{
			Name:     strings.ToLower(strings.TrimSpace(name)),
			Type:     dt,
			Nullable: nullable,
		})
	}
	if err := schema.Validate(); err != nil {
		return TableSchema{}, err
	}
	return schema, nil
}

// ParseColumnType resolves a type name used in schema specs.
func ParseColumnType(name string) (columnar.DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UINT64", "U64":
		return columnar.TypeUint64, nil
	case "TIMESTAMP", "UTC", "DATETIME":
		return columnar.TypeTimestamp, nil
	case "TEXT", "STRING", "UTF8":
		return columnar.TypeString, nil
	default:
		return 0, fmt.Errorf("type %s not supported", name)
	}
}

// Row is a single positional tuple; index i holds the value of schema column i.
type Row []columnar.Value

// ValidateRow ensures that the provided row matches the schema definition.
func (ts TableSchema) ValidateRow(row Row) error {
	if len(row) != len(ts.Columns) {
		return fmt.Errorf("%w: row has %d values, schema %s has %d columns", ErrSchemaMismatch, len(row), ts.Name, len(ts.Columns))
	}
	for i, col := range ts.Columns {
		val := row[i]
		if val.Type != col.Type {
			return fmt.Errorf("%w: column %s expects %s but received %s", ErrSchemaMismatch, col.Name, col.Type, val.Type)
		}
		if val.Null && !col.Nullable {
			return fmt.Errorf("%w: column %s is not nullable", ErrSchemaMismatch, col.Name)
		}
	}
	return nil
}

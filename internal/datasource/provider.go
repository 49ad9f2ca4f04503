package datasource

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

// TableType classifies a registered relation.
type TableType int

const (
	TableBase TableType = iota
	TableView
	TableTemporary
)

func (t TableType) String() string {
	switch t {
	case TableView:
		return "VIEW"
	case TableTemporary:
		return "TEMPORARY"
	default:
		return "BASE"
	}
}

// TableProvider is what the engine sees of a registered table.
type TableProvider interface {
	// Schema returns the full, unprojected schema.
	Schema() *arrow.Schema
	TableType() TableType
	// Scan builds a plan producing the projected columns. Filters and limit are hints;
	// a provider may ignore them and the engine re-applies both.
	Scan(ctx context.Context, projection []int, filters []query.Expression, limit *int64) (ExecutionPlan, error)
}

// MemSource serves a columnar store built once from decoded rows.
type MemSource struct {
	descriptor storage.TableSchema
	schema     *arrow.Schema
	store      *storage.Store
}

// NewMemSource builds the store and descriptor from rows. The data is immutable afterwards.
func NewMemSource(schema storage.TableSchema, rows []storage.Row, opts ...storage.StoreOption) (*MemSource, error) {
	arrowSchema, err := schema.ArrowSchema()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(schema, rows, opts...)
	if err != nil {
		return nil, fmt.Errorf("build store for %s: %w", schema.Name, err)
	}
	return &MemSource{
		descriptor: schema,
		schema:     arrowSchema,
		store:      store,
	}, nil
}

func (m *MemSource) Schema() *arrow.Schema {
	return m.schema
}

func (m *MemSource) TableType() TableType {
	return TableBase
}

// Descriptor returns the table descriptor.
func (m *MemSource) Descriptor() storage.TableSchema {
	return m.descriptor
}

// NumRows returns the number of loaded rows.
func (m *MemSource) NumRows() int64 {
	return m.store.NumRows()
}

// Statistics returns per-column count, null count and min/max.
func (m *MemSource) Statistics() map[string]storage.ColumnStats {
	return m.store.Stats()
}

// Metadata summarizes the table for catalogs.
func (m *MemSource) Metadata(source string) storage.TableMetadata {
	return m.store.Metadata(source)
}

// Scan resolves the projected schema and returns a plan pointing back at this source.
// It never reads the store.
func (m *MemSource) Scan(_ context.Context, projection []int, _ []query.Expression, _ *int64) (ExecutionPlan, error) {
	return NewScanExec(m, projection)
}

// Close releases the store's columns. Streams already handed out stay readable.
func (m *MemSource) Close() error {
	return m.store.Close()
}

package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// Store is the immutable columnar copy of a loaded dataset.
// Every column has exactly NumRows entries; index i across columns is the same logical row.
type Store struct {
	schema TableSchema
	rows   int64
	stats  map[string]ColumnStats
	built  time.Time

	mu       sync.Mutex
	columns  []*columnar.Column
	poisoned bool
	closed   bool
}

// StoreOption customizes store construction.
type StoreOption func(*storeOptions)

type storeOptions struct {
	mem memory.Allocator
}

// WithAllocator sets the arrow allocator used for the column buffers.
func WithAllocator(mem memory.Allocator) StoreOption {
	return func(o *storeOptions) {
		o.mem = mem
	}
}

// NewStore builds one column per schema field from row-oriented data.
// A row that does not match the schema aborts the build; no partial store is returned.
func NewStore(schema TableSchema, rows []Row, opts ...StoreOption) (*Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	o := storeOptions{mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(&o)
	}

	builders := make([]*columnar.Builder, 0, len(schema.Columns))
	release := func() {
		for _, b := range builders {
			b.Release()
		}
	}
	for _, col := range schema.Columns {
		b, err := columnar.NewBuilder(o.mem, col.Name, col.Type)
		if err != nil {
			release()
			return nil, err
		}
		b.Reserve(len(rows))
		builders = append(builders, b)
	}

	for i, row := range rows {
		// validate the whole row first so builders never diverge in length
		if err := schema.ValidateRow(row); err != nil {
			release()
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		for c, b := range builders {
			if err := b.Append(row[c]); err != nil {
				release()
				return nil, fmt.Errorf("row %d column %s: %w", i, schema.Columns[c].Name, err)
			}
		}
	}

	columns := make([]*columnar.Column, 0, len(builders))
	for _, b := range builders {
		columns = append(columns, b.Finish())
	}
	return &Store{
		schema:  schema,
		rows:    int64(len(rows)),
		columns: columns,
		stats:   computeStats(columns),
		built:   time.Now().UTC(),
	}, nil
}

// Schema returns the descriptor the store was built from.
func (s *Store) Schema() TableSchema {
	return s.schema
}

// NumRows returns the row count shared by every column.
func (s *Store) NumRows() int64 {
	return s.rows
}

// Stats returns per-column statistics computed at build time.
func (s *Store) Stats() map[string]ColumnStats {
	out := make(map[string]ColumnStats, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// Metadata summarizes the store for catalogs and manifests.
func (s *Store) Metadata(source string) TableMetadata {
	return TableMetadata{
		Name:      s.schema.Name,
		Schema:    s.schema,
		RowCount:  s.rows,
		Stats:     s.Stats(),
		Source:    source,
		CreatedAt: s.built,
	}
}

// Snapshot retains and returns the arrays for the requested column indices, in order.
// A nil projection returns every column. The lock is held only while the handles are cloned;
// callers own the returned references and must Release them.
func (s *Store) Snapshot(projection []int) ([]arrow.Array, int64, error) {
	var arrays []arrow.Array
	err := s.withLock(func() error {
		if s.closed {
			return ErrStoreClosed
		}
		indices := projection
		if indices == nil {
			indices = make([]int, len(s.columns))
			for i := range indices {
				indices[i] = i
			}
		}
		arrays = make([]arrow.Array, 0, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= len(s.columns) {
				for _, a := range arrays {
					a.Release()
				}
				arrays = nil
				return fmt.Errorf("%w: index %d, store has %d columns", ErrInvalidProjection, idx, len(s.columns))
			}
			arr := s.columns[idx].Array()
			arr.Retain()
			arrays = append(arrays, arr)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return arrays, s.rows, nil
}

func (s *Store) Close() error {
	return s.withLock(func() error {
		if s.closed {
			return nil
		}
		for _, col := range s.columns {
			col.Release()
		}
		s.columns = nil
		s.closed = true
		return nil
	})
}

// withLock runs fn under the store mutex. A panic inside fn poisons the store
// before it propagates, so later readers fail instead of trusting the columns.
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return ErrStorePoisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			panic(r)
		}
	}()
	return fn()
}

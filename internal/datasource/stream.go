package datasource

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// RecordBatchStream is a finite, one-shot sequence of record batches.
type RecordBatchStream interface {
	array.RecordReader
}

// memoryStream yields at most one record. It never reads the store again.
type memoryStream struct {
	refs   atomic.Int64
	schema *arrow.Schema
	rec    arrow.RecordBatch
	cur    arrow.RecordBatch
	done   bool
}

func newMemoryStream(schema *arrow.Schema, arrays []arrow.Array, rows int64) *memoryStream {
	s := &memoryStream{schema: schema}
	s.refs.Store(1)
	if rows > 0 {
		s.rec = array.NewRecordBatch(schema, arrays, rows)
	}
	// the record holds its own references
	for _, a := range arrays {
		a.Release()
	}
	return s
}

func (s *memoryStream) Schema() *arrow.Schema {
	return s.schema
}

// Next advances to the single batch. Past the end the previous batch is released
// and RecordBatch returns nil.
func (s *memoryStream) Next() bool {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	if s.done {
		return false
	}
	s.done = true
	if s.rec == nil {
		return false
	}
	s.cur, s.rec = s.rec, nil
	return true
}

// RecordBatch returns the current batch; it stays valid until the next call to Next or Release.
func (s *memoryStream) RecordBatch() arrow.RecordBatch {
	return s.cur
}

// Deprecated: use RecordBatch.
func (s *memoryStream) Record() arrow.Record {
	return s.RecordBatch()
}

func (s *memoryStream) Err() error {
	return nil
}

func (s *memoryStream) Retain() {
	s.refs.Add(1)
}

func (s *memoryStream) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if s.rec != nil {
		s.rec.Release()
		s.rec = nil
	}
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
}

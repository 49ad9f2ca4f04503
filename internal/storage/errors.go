package storage

import "errors"

var (
	// ErrTableExists indicates that a table with the same name already exists in the catalog.
	ErrTableExists = errors.New("storage: table already exists")
	// ErrTableNotFound indicates that the referenced table is not registered.
	ErrTableNotFound = errors.New("storage: table not found")
	// ErrSchemaMismatch indicates that row data does not align with the declared field list.
	ErrSchemaMismatch = errors.New("storage: row does not match schema")
	// ErrInvalidProjection indicates a projection index outside the table descriptor.
	ErrInvalidProjection = errors.New("storage: invalid projection")
	// ErrStorePoisoned indicates that a previous holder of the store lock panicked.
	ErrStorePoisoned = errors.New("storage: store lock poisoned")
	// ErrStoreClosed indicates that the store already released its columns.
	ErrStoreClosed = errors.New("storage: store closed")
)

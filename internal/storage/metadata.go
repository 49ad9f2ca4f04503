package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// TableMetadata describes a loaded table: its schema, size and per-column statistics.
type TableMetadata struct {
	Name      string                 `json:"name"`
	Schema    TableSchema            `json:"schema"`
	RowCount  int64                  `json:"rowCount"`
	Stats     map[string]ColumnStats `json:"stats"`
	Source    string                 `json:"source,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ColumnStats stores basic min/max/NULL counts.
type ColumnStats struct {
	Count     int          `json:"count"`
	NullCount int          `json:"nullCount"`
	Min       *ScalarValue `json:"min,omitempty"`
	Max       *ScalarValue `json:"max,omitempty"`
}

// ScalarValue is a JSON-friendly representation of columnar.Value.
type ScalarValue struct {
	Type      columnar.DataType `json:"type"`
	Uint64    *uint64           `json:"uint64,omitempty"`
	Timestamp *int64            `json:"timestampMillis,omitempty"`
	String    *string           `json:"string,omitempty"`
}

// FromValue converts a columnar.Value into a ScalarValue. Nulls have no scalar form.
func FromValue(v columnar.Value) *ScalarValue {
	if v.Null {
		return nil
	}
	result := &ScalarValue{Type: v.Type}
	switch v.Type {
	case columnar.TypeUint64:
		u, _ := v.AsUint64()
		result.Uint64 = &u
	case columnar.TypeTimestamp:
		ms, _ := v.AsTimestampMillis()
		result.Timestamp = &ms
	case columnar.TypeString:
		s, _ := v.AsString()
		result.String = &s
	default:
		return nil
	}
	return result
}

// ToValue converts a ScalarValue back to columnar.Value.
func (s *ScalarValue) ToValue() columnar.Value {
	if s == nil {
		return columnar.Value{}
	}
	switch s.Type {
	case columnar.TypeUint64:
		if s.Uint64 != nil {
			return columnar.NewUint64Value(*s.Uint64)
		}
	case columnar.TypeTimestamp:
		if s.Timestamp != nil {
			return columnar.NewTimestampMillis(*s.Timestamp)
		}
	case columnar.TypeString:
		if s.String != nil {
			return columnar.NewStringValue(*s.String)
		}
	}
	return columnar.NewNullValue(s.Type)
}

// SortedColumns returns column names with statistics, sorted.
func (tm TableMetadata) SortedColumns() []string {
	names := make([]string, 0, len(tm.Stats))
	for name := range tm.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveManifest writes the metadata of the given tables as json.
func SaveManifest(path string, tables []TableMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		Tables []TableMetadata `json:"tables"`
	}{Tables: tables}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadManifest reads a manifest written by SaveManifest. A missing file yields no tables.
func LoadManifest(path string) ([]TableMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var manifest struct {
		Tables []TableMetadata `json:"tables"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return manifest.Tables, nil
}

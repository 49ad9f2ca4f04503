package storage

import (
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

func computeStats(columns []*columnar.Column) map[string]ColumnStats {
	stats := make(map[string]ColumnStats, len(columns))
	for _, col := range columns {
		stats[col.Name] = summarizeColumn(col)
	}
	return stats
}

func summarizeColumn(col *columnar.Column) ColumnStats {
	if col == nil || col.Array() == nil {
		return ColumnStats{}
	}

	stats := ColumnStats{Count: col.Len(), NullCount: col.NullCount()}
	switch arr := col.Array().(type) {
	case *array.Uint64:
		summarizeUint64(arr, &stats)
	case *array.Timestamp:
		summarizeTimestamp(arr, &stats)
	case *array.String:
		summarizeString(arr, &stats)
	}
	return stats
}

func summarizeUint64(arr *array.Uint64, stats *ColumnStats) {
	var min, max uint64
	seen := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := arr.Value(i)
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
	}
	if seen {
		stats.Min = FromValue(columnar.NewUint64Value(min))
		stats.Max = FromValue(columnar.NewUint64Value(max))
	}
}

func summarizeTimestamp(arr *array.Timestamp, stats *ColumnStats) {
	var min, max int64
	seen := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := int64(arr.Value(i))
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
	}
	if seen {
		stats.Min = FromValue(columnar.NewTimestampMillis(min))
		stats.Max = FromValue(columnar.NewTimestampMillis(max))
	}
}

func summarizeString(arr *array.String, stats *ColumnStats) {
	var min, max string
	seen := false
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := arr.Value(i)
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
	}
	if seen {
		stats.Min = FromValue(columnar.NewStringValue(min))
		stats.Max = FromValue(columnar.NewStringValue(max))
	}
}

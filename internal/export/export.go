package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// Format identifies an output encoding.
type Format int

const (
	FormatParquet Format = iota
	FormatCSV
)

// FormatFromPath picks the format from the file extension; anything not
// ending in .parquet is written as CSV.
func FormatFromPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".parquet") {
		return FormatParquet
	}
	return FormatCSV
}

// Write encodes records in the given format.
func Write(w io.Writer, format Format, schema *arrow.Schema, records []arrow.Record) error {
	switch format {
	case FormatParquet:
		return WriteParquet(w, schema, records)
	case FormatCSV:
		return WriteCSV(w, schema, records)
	default:
		return fmt.Errorf("unknown export format %d", format)
	}
}

// WriteParquet writes records as a single snappy compressed parquet file.
func WriteParquet(w io.Writer, schema *arrow.Schema, records []arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			_ = writer.Close()
			return fmt.Errorf("failed to write record to parquet: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// WriteCSV writes a header followed by one line per row. Nulls are empty
// cells and timestamps use columnar.TimestampLayout.
func WriteCSV(w io.Writer, schema *arrow.Schema, records []arrow.Record) error {
	writer := csv.NewWriter(w)

	headers := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		headers[i] = field.Name
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, schema.NumFields())
	for _, rec := range records {
		for r := 0; r < int(rec.NumRows()); r++ {
			for c, col := range rec.Columns() {
				cell, err := formatValue(col, r)
				if err != nil {
					return err
				}
				row[c] = cell
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(col arrow.Array, pos int) (string, error) {
	if col.IsNull(pos) {
		return "", nil
	}
	v, err := columnar.ValueAt(col, pos)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

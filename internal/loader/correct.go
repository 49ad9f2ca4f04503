package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// EpochDate replaces missing timestamps in corrected files.
const EpochDate = "1970-01-01 00:00:00"

// CorrectFile rewrites in so every cell parses against schema: null tokens and
// zero dates in timestamp columns become EpochDate, null tokens elsewhere become "".
// The output is gzip compressed when out ends in .gz.
func CorrectFile(in, out string, schema storage.TableSchema, opts Options) (int, error) {
	src, err := os.Open(in)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	r, closeFn, err := openReader(in, src)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	dst, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	var w io.Writer = dst
	var gz *gzip.Writer
	if IsGzip(out) {
		gz = gzip.NewWriter(dst)
		w = gz
	}
	bw := bufio.NewWriter(w)

	n, err := Correct(r, bw, schema, opts)
	if err == nil {
		err = bw.Flush()
	}
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("%s: %w", in, err)
	}
	opts.withDefaults().Logger.Info("file corrected",
		"in", in, "out", out, "rows", n)
	return n, nil
}

// Correct copies delimited records from r to w, normalizing missing values.
// The header, if any, is copied untouched. It returns the number of data rows.
func Correct(r io.Reader, w io.Writer, schema storage.TableSchema, opts Options) (int, error) {
	opts = opts.withDefaults()
	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = len(schema.Columns)
	writer := csv.NewWriter(w)
	writer.Comma = opts.Delimiter

	rows, line := 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return rows, fmt.Errorf("%w: line %d: %v", ErrBadRecord, line, err)
		}
		if !(line == 1 && opts.HasHeader) {
			for i, col := range schema.Columns {
				record[i] = correctCell(record[i], col, opts)
			}
			rows++
		}
		if err := writer.Write(record); err != nil {
			return rows, err
		}
	}
	writer.Flush()
	return rows, writer.Error()
}

func correctCell(raw string, col storage.ColumnSchema, opts Options) string {
	missing := isNullToken(raw, opts.NullTokens)
	if col.Type == columnar.TypeTimestamp {
		if missing || raw == ZeroDate || raw == "" {
			return EpochDate
		}
		return raw
	}
	if missing {
		return ""
	}
	return raw
}

package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// CustomerSchemaSpec is the layout of the customer export files.
const CustomerSchemaSpec = "eq_id:uint64?,sponsor_eq_id:uint64?,parent_eq_id:uint64?," +
	"created_date:timestamp?,change_date:timestamp?," +
	"full_name:text,invoice_phone_number:text,delivery_phone_number:text," +
	"invoice_address:text,shipping_address:text"

// ZeroDate is the placeholder some exports use for a missing timestamp.
const ZeroDate = "0000-00-00 00:00:00"

// ErrBadRecord indicates a CSV record that cannot be decoded against the schema.
var ErrBadRecord = errors.New("loader: bad record")

// Options control how a delimited file is decoded.
type Options struct {
	Delimiter rune
	HasHeader bool
	// NullTokens are cell values read as NULL. The empty cell is always NULL for
	// uint64 and timestamp columns.
	NullTokens []string
	TimeLayout string
	// Strict turns unparsable cells in nullable columns into errors instead of NULLs.
	Strict bool
	Logger *slog.Logger
}

// DefaultOptions matches the customer export: comma separated, with header, "NULL" as null.
func DefaultOptions() Options {
	return Options{
		Delimiter:  ',',
		HasHeader:  true,
		NullTokens: []string{"NULL"},
		TimeLayout: columnar.TimestampLayout,
	}
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.TimeLayout == "" {
		o.TimeLayout = columnar.TimestampLayout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Stats summarizes one load.
type Stats struct {
	Rows int
	// Coerced counts cells that could not be parsed and were stored as NULL.
	Coerced int
}

// LoadFile reads path, transparently decompressing it when it ends in .gz.
func LoadFile(path string, schema storage.TableSchema, opts Options) ([]storage.Row, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()

	r, closeFn, err := openReader(path, f)
	if err != nil {
		return nil, Stats{}, err
	}
	defer closeFn()

	rows, stats, err := Load(r, schema, opts)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	opts.withDefaults().Logger.Info("file loaded",
		slog.String("path", path),
		slog.String("table", schema.Name),
		slog.Int("rows", stats.Rows),
		slog.Int("coerced", stats.Coerced),
	)
	return rows, stats, nil
}

func openReader(path string, f *os.File) (io.Reader, func(), error) {
	br := bufio.NewReader(f)
	if !IsGzip(path) {
		return br, func() {}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return gz, func() { _ = gz.Close() }, nil
}

// IsGzip reports whether path names a gzip file.
func IsGzip(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gz.csv")
}

// Load decodes delimited records into rows matching schema.
func Load(r io.Reader, schema storage.TableSchema, opts Options) ([]storage.Row, Stats, error) {
	if err := schema.Validate(); err != nil {
		return nil, Stats{}, err
	}
	opts = opts.withDefaults()

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = len(schema.Columns)
	reader.ReuseRecord = true

	var (
		rows  []storage.Row
		stats Stats
		line  int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: %v", ErrBadRecord, line, err)
		}
		if line == 1 && opts.HasHeader {
			continue
		}
		row := make(storage.Row, len(schema.Columns))
		for i, col := range schema.Columns {
			v, coerced, err := parseCell(record[i], col, opts)
			if err != nil {
				return nil, stats, fmt.Errorf("%w: line %d column %s: %v", ErrBadRecord, line, col.Name, err)
			}
			if coerced {
				stats.Coerced++
			}
			row[i] = v
		}
		rows = append(rows, row)
		stats.Rows++
	}
	return rows, stats, nil
}

// ParseField converts a single textual cell for col.
func ParseField(raw string, col storage.ColumnSchema, opts Options) (columnar.Value, error) {
	v, _, err := parseCell(raw, col, opts.withDefaults())
	return v, err
}

func parseCell(raw string, col storage.ColumnSchema, opts Options) (columnar.Value, bool, error) {
	if isNullToken(raw, opts.NullTokens) || (col.Type != columnar.TypeString && strings.TrimSpace(raw) == "") {
		return nullFor(col)
	}
	switch col.Type {
	case columnar.TypeUint64:
		u, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return coerce(col, opts, err)
		}
		return columnar.NewUint64Value(u), false, nil
	case columnar.TypeTimestamp:
		if raw == ZeroDate {
			return nullFor(col)
		}
		t, err := time.ParseInLocation(opts.TimeLayout, strings.TrimSpace(raw), time.UTC)
		if err != nil {
			return coerce(col, opts, err)
		}
		return columnar.NewTimestampValue(t), false, nil
	case columnar.TypeString:
		return columnar.NewStringValue(raw), false, nil
	default:
		return columnar.Value{}, false, fmt.Errorf("unsupported type %s", col.Type)
	}
}

// nullFor returns NULL, or "" for a required text column.
func nullFor(col storage.ColumnSchema) (columnar.Value, bool, error) {
	if col.Nullable {
		return columnar.NewNullValue(col.Type), false, nil
	}
	if col.Type == columnar.TypeString {
		return columnar.NewStringValue(""), false, nil
	}
	return columnar.Value{}, false, fmt.Errorf("null in required column")
}

func coerce(col storage.ColumnSchema, opts Options, cause error) (columnar.Value, bool, error) {
	if opts.Strict || !col.Nullable {
		return columnar.Value{}, false, cause
	}
	return columnar.NewNullValue(col.Type), true, nil
}

func isNullToken(raw string, tokens []string) bool {
	for _, tok := range tokens {
		if raw == tok {
			return true
		}
	}
	return false
}

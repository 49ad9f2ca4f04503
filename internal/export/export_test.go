package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

func sampleRecords(t *testing.T) (*arrow.Schema, []arrow.Record) {
	t.Helper()
	schema := storage.TableSchema{
		Name: "customer",
		Columns: []storage.ColumnSchema{
			{Name: "eq_id", Type: columnar.TypeUint64},
			{Name: "created_date", Type: columnar.TypeTimestamp, Nullable: true},
			{Name: "full_name", Type: columnar.TypeString, Nullable: true},
		},
	}
	store, err := storage.NewStore(schema, []storage.Row{
		{columnar.NewUint64Value(1), columnar.NewTimestampValue(time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)), columnar.NewStringValue("Ana, S.")},
		{columnar.NewUint64Value(2), columnar.NewNullValue(columnar.TypeTimestamp), columnar.NewNullValue(columnar.TypeString)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	arrowSchema, err := schema.ArrowSchema()
	require.NoError(t, err)
	cols, rows, err := store.Snapshot(nil)
	require.NoError(t, err)
	rec := array.NewRecord(arrowSchema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	t.Cleanup(rec.Release)
	return arrowSchema, []arrow.Record{rec}
}

func TestWriteCSV(t *testing.T) {
	schema, records := sampleRecords(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, schema, records))
	assert.Equal(t,
		"eq_id,created_date,full_name\n1,2019-03-01 10:00:00,\"Ana, S.\"\n2,,\n",
		buf.String())
}

func TestWriteParquetRoundTrip(t *testing.T) {
	schema, records := sampleRecords(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatParquet, schema, records))

	pf, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()), file.WithReadProps(&parquet.ReaderProperties{}))
	require.NoError(t, err)
	defer pf.Close()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	table, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	assert.EqualValues(t, 2, table.NumRows())
	for i, f := range schema.Fields() {
		assert.Equal(t, f.Name, table.Schema().Field(i).Name)
		assert.True(t, arrow.TypeEqual(f.Type, table.Schema().Field(i).Type), f.Name)
	}
	names := table.Column(2).Data().Chunk(0).(*array.String)
	assert.Equal(t, "Ana, S.", names.Value(0))
	assert.True(t, names.IsNull(1))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatParquet, FormatFromPath("out/result.PARQUET"))
	assert.Equal(t, FormatCSV, FormatFromPath("out/result.csv"))
}

package datasource

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

func pairSchema() storage.TableSchema {
	return storage.TableSchema{
		Name: "pairs",
		Columns: []storage.ColumnSchema{
			{Name: "id", Type: columnar.TypeUint64},
			{Name: "name", Type: columnar.TypeString, Nullable: true},
		},
	}
}

func pairRows() []storage.Row {
	return []storage.Row{
		{columnar.NewUint64Value(1), columnar.NewStringValue("a")},
		{columnar.NewUint64Value(2), columnar.NewNullValue(columnar.TypeString)},
	}
}

func newPairSource(t *testing.T) *MemSource {
	t.Helper()
	src, err := NewMemSource(pairSchema(), pairRows())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

// collect drains partition 0 of the plan and returns its records.
func collect(t *testing.T, plan ExecutionPlan) []arrow.Record {
	t.Helper()
	stream, err := plan.Execute(context.Background(), 0)
	require.NoError(t, err)
	defer stream.Release()

	var out []arrow.Record
	for stream.Next() {
		rec := stream.RecordBatch()
		rec.Retain()
		out = append(out, rec)
	}
	require.NoError(t, stream.Err())
	require.False(t, stream.Next())
	return out
}

func valueAt(t *testing.T, rec arrow.Record, col, row int) columnar.Value {
	t.Helper()
	v, err := columnar.ValueAt(rec.Column(col), row)
	require.NoError(t, err)
	return v
}

func TestScanAllColumns(t *testing.T) {
	src := newPairSource(t)

	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	recs := collect(t, plan)
	require.Len(t, recs, 1)
	rec := recs[0]
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	require.EqualValues(t, 2, rec.NumCols())
	assert.True(t, rec.Schema().Equal(src.Schema()))

	assert.Equal(t, "1", valueAt(t, rec, 0, 0).String())
	assert.Equal(t, "2", valueAt(t, rec, 0, 1).String())
	assert.Equal(t, "a", valueAt(t, rec, 1, 0).String())
	assert.True(t, valueAt(t, rec, 1, 1).IsNull())
}

func TestScanProjection(t *testing.T) {
	src := newPairSource(t)

	plan, err := src.Scan(context.Background(), []int{1}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Schema().NumFields())
	assert.Equal(t, "name", plan.Schema().Field(0).Name)

	recs := collect(t, plan)
	require.Len(t, recs, 1)
	defer recs[0].Release()
	require.EqualValues(t, 1, recs[0].NumCols())
	assert.Equal(t, "a", valueAt(t, recs[0], 0, 0).String())
	assert.True(t, valueAt(t, recs[0], 0, 1).IsNull())
}

func TestScanReorderAndDuplicateProjection(t *testing.T) {
	src := newPairSource(t)

	plan, err := src.Scan(context.Background(), []int{1, 0, 0}, nil, nil)
	require.NoError(t, err)
	recs := collect(t, plan)
	require.Len(t, recs, 1)
	defer recs[0].Release()

	names := []string{}
	for _, f := range recs[0].Schema().Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "id", "id"}, names)
	assert.Equal(t, "2", valueAt(t, recs[0], 2, 1).String())
}

func TestScanEmptyProjection(t *testing.T) {
	src := newPairSource(t)

	plan, err := src.Scan(context.Background(), []int{}, nil, nil)
	require.NoError(t, err)
	recs := collect(t, plan)
	require.Len(t, recs, 1)
	defer recs[0].Release()
	assert.EqualValues(t, 0, recs[0].NumCols())
	assert.EqualValues(t, 2, recs[0].NumRows())
}

func TestScanInvalidProjection(t *testing.T) {
	src := newPairSource(t)

	_, err := src.Scan(context.Background(), []int{len(pairSchema().Columns)}, nil, nil)
	require.ErrorIs(t, err, storage.ErrInvalidProjection)
}

func TestScanIgnoresFiltersAndLimit(t *testing.T) {
	src := newPairSource(t)
	limit := int64(1)

	plan, err := src.Scan(context.Background(), nil, nil, &limit)
	require.NoError(t, err)
	recs := collect(t, plan)
	require.Len(t, recs, 1)
	defer recs[0].Release()
	assert.EqualValues(t, 2, recs[0].NumRows())
}

func TestExecuteInvalidPartition(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	_, err = plan.Execute(context.Background(), 1)
	require.ErrorIs(t, err, ErrInvalidPartition)
}

func TestExecuteCancelledContext(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = plan.Execute(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecuteIsRepeatable(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), []int{0}, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		recs := collect(t, plan)
		require.Len(t, recs, 1)
		assert.EqualValues(t, 2, recs[0].NumRows())
		recs[0].Release()
	}
}

func TestSchemaIsStable(t *testing.T) {
	src := newPairSource(t)
	first := src.Schema()
	for i := 0; i < 3; i++ {
		assert.True(t, first.Equal(src.Schema()))
	}
	assert.Equal(t, TableBase, src.TableType())
	assert.EqualValues(t, 2, src.NumRows())
	assert.Equal(t, 1, src.Statistics()["name"].NullCount)
}

func TestEmptySourceYieldsNoBatches(t *testing.T) {
	src, err := NewMemSource(pairSchema(), nil)
	require.NoError(t, err)
	defer src.Close()

	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	recs := collect(t, plan)
	assert.Empty(t, recs)
}

func TestNewMemSourceRejectsBadRows(t *testing.T) {
	rows := []storage.Row{{columnar.NewStringValue("x"), columnar.NewStringValue("a")}}
	src, err := NewMemSource(pairSchema(), rows)
	require.Nil(t, src)
	require.ErrorIs(t, err, storage.ErrSchemaMismatch)
}

func TestScanExecIsLeaf(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, plan.Children())
	same, err := plan.WithNewChildren(nil)
	require.NoError(t, err)
	assert.Same(t, plan, same)

	_, err = plan.WithNewChildren([]ExecutionPlan{plan})
	require.ErrorIs(t, err, ErrChildrenNotSupported)
}

func TestScanExecProperties(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), []int{1}, nil, nil)
	require.NoError(t, err)

	props := plan.Properties()
	assert.Equal(t, 1, props.Partitioning.PartitionCount())
	assert.Equal(t, "UnknownPartitioning(1)", props.Partitioning.String())
	assert.Equal(t, ExecutionModeBounded, props.Mode)
	assert.Nil(t, props.Ordering)
	assert.Same(t, plan.Schema(), props.Schema)
	assert.Equal(t, "ScanExec: table=pairs, projection=[name], partitions=1", plan.String())
}

func TestConcurrentScansShareStore(t *testing.T) {
	src := newPairSource(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(proj []int) {
			defer wg.Done()
			plan, err := src.Scan(context.Background(), proj, nil, nil)
			if !assert.NoError(t, err) {
				return
			}
			stream, err := plan.Execute(context.Background(), 0)
			if !assert.NoError(t, err) {
				return
			}
			defer stream.Release()
			rows := int64(0)
			for stream.Next() {
				rows += stream.RecordBatch().NumRows()
			}
			assert.EqualValues(t, 2, rows)
		}([]int{i % 2})
	}
	wg.Wait()
}

func TestStreamSurvivesSourceClose(t *testing.T) {
	src, err := NewMemSource(pairSchema(), pairRows())
	require.NoError(t, err)
	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	stream, err := plan.Execute(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	require.True(t, stream.Next())
	assert.Equal(t, "a", valueAt(t, stream.RecordBatch(), 1, 0).String())
	stream.Release()

	_, err = plan.Execute(context.Background(), 0)
	require.ErrorIs(t, err, storage.ErrStoreClosed)
}

func TestScanDoesNotReadStore(t *testing.T) {
	src, err := NewMemSource(pairSchema(), pairRows())
	require.NoError(t, err)
	require.NoError(t, src.Close())

	// schema and projection come from the descriptor only
	plan, err := src.Scan(context.Background(), []int{1}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "name", plan.Schema().Field(0).Name)
	assert.Equal(t, 1, plan.Properties().Partitioning.PartitionCount())

	_, err = plan.Execute(context.Background(), 0)
	require.ErrorIs(t, err, storage.ErrStoreClosed)
}

func TestStreamRecordNilPastEnd(t *testing.T) {
	src := newPairSource(t)
	plan, err := src.Scan(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	stream, err := plan.Execute(context.Background(), 0)
	require.NoError(t, err)
	defer stream.Release()

	assert.Nil(t, stream.RecordBatch())
	require.True(t, stream.Next())
	require.NotNil(t, stream.RecordBatch())
	require.False(t, stream.Next())
	assert.Nil(t, stream.RecordBatch())
	assert.Nil(t, stream.Record())
}

package columnar

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestBuilderKeepsNullsAligned(t *testing.T) {
	b, err := NewBuilder(memory.NewGoAllocator(), "eq_id", TypeUint64)
	require.NoError(t, err)

	require.NoError(t, b.Append(NewUint64Value(1)))
	require.NoError(t, b.Append(NewNullValue(TypeUint64)))
	require.NoError(t, b.Append(NewUint64Value(3)))
	require.Equal(t, 3, b.Len())

	col := b.Finish()
	defer col.Release()

	require.Equal(t, 3, col.Len())
	require.Equal(t, 1, col.NullCount())

	v, err := col.Get(1)
	require.NoError(t, err)
	require.True(t, v.IsNull())
	require.Equal(t, TypeUint64, v.Type)

	v, err = col.Get(2)
	require.NoError(t, err)
	got, err := v.AsUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(3), got)
}

func TestBuilderRejectsTypeMismatch(t *testing.T) {
	b, err := NewBuilder(memory.NewGoAllocator(), "full_name", TypeString)
	require.NoError(t, err)
	defer b.Release()

	err = b.Append(NewUint64Value(7))
	require.Error(t, err)
	require.Contains(t, err.Error(), "type mismatch")
	require.Equal(t, 0, b.Len())
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2021, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

	b, err := NewBuilder(memory.NewGoAllocator(), "created_date", TypeTimestamp)
	require.NoError(t, err)
	require.NoError(t, b.Append(NewTimestampValue(ts)))
	col := b.Finish()
	defer col.Release()

	v, err := col.Get(0)
	require.NoError(t, err)
	got, err := v.AsTime()
	require.NoError(t, err)
	require.True(t, ts.Equal(got))
	require.Equal(t, "2021-03-14 15:09:26", v.String())
}

func TestGetOutOfBounds(t *testing.T) {
	b, err := NewBuilder(memory.NewGoAllocator(), "x", TypeString)
	require.NoError(t, err)
	col := b.Finish()
	defer col.Release()

	_, err = col.Get(0)
	require.Error(t, err)
}

func TestValueAccessorsOnNull(t *testing.T) {
	v := NewNullValue(TypeString)
	_, err := v.AsString()
	require.Error(t, err)
	require.Nil(t, v.Interface())
	require.Equal(t, "NULL", v.String())
}

package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/internal/parser"
	"github.com/Jonatan852/columnar-datasource/internal/planner"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

type catalog map[string]datasource.TableProvider

func (c catalog) Table(name string) (datasource.TableProvider, error) {
	if p, ok := c[name]; ok {
		return p, nil
	}
	return nil, storage.ErrTableNotFound
}

func newCatalog(t *testing.T) catalog {
	t.Helper()
	schema := storage.TableSchema{
		Name: "events",
		Columns: []storage.ColumnSchema{
			{Name: "user_id", Type: columnar.TypeUint64},
			{Name: "country", Type: columnar.TypeString, Nullable: true},
			{Name: "seen", Type: columnar.TypeTimestamp, Nullable: true},
		},
	}
	day := func(d int) columnar.Value {
		return columnar.NewTimestampValue(time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC))
	}
	rows := []storage.Row{
		{columnar.NewUint64Value(1), columnar.NewStringValue("BR"), day(1)},
		{columnar.NewUint64Value(2), columnar.NewStringValue("US"), day(2)},
		{columnar.NewUint64Value(1), columnar.NewStringValue("BR"), day(3)},
		{columnar.NewUint64Value(3), columnar.NewNullValue(columnar.TypeString), columnar.NewNullValue(columnar.TypeTimestamp)},
	}
	src, err := datasource.NewMemSource(schema, rows)
	require.NoError(t, err)
	return catalog{"events": src, "customers": customers(t), "cities": cities(t)}
}

func text(s string) columnar.Value { return columnar.NewStringValue(s) }

func customers(t *testing.T) datasource.TableProvider {
	schema := storage.TableSchema{
		Name: "customers",
		Columns: []storage.ColumnSchema{
			{Name: "full_name", Type: columnar.TypeString},
			{Name: "shipping_address", Type: columnar.TypeString, Nullable: true},
		},
	}
	src, err := datasource.NewMemSource(schema, []storage.Row{
		{text("Zoe Park"), text("Keizersgracht 1, 1015 CJ, Amsterdam, North Holland, NL")},
		{text("Ana Lima"), text("Rua A 10, 01000-000, São Paulo, SP, BR")},
		{text("Bo Chen"), text("nowhere")},
		{text("Cy Ortiz"), columnar.NewNullValue(columnar.TypeString)},
		{text("Di Moss"), text("1 Main St, 10001, Springfield, IL, US")},
	})
	require.NoError(t, err)
	return src
}

func cities(t *testing.T) datasource.TableProvider {
	schema := storage.TableSchema{
		Name: "cities",
		Columns: []storage.ColumnSchema{
			{Name: "name", Type: columnar.TypeString},
			{Name: "country_code", Type: columnar.TypeString},
			{Name: "population", Type: columnar.TypeUint64},
		},
	}
	src, err := datasource.NewMemSource(schema, []storage.Row{
		{text("Amsterdam"), text("NL"), columnar.NewUint64Value(921402)},
		{text("São Paulo"), text("BR"), columnar.NewUint64Value(12325232)},
		{text("Springfield"), text("MO"), columnar.NewUint64Value(169176)},
	})
	require.NoError(t, err)
	return src
}

func run(t *testing.T, sql string) (*Result, error) {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	plan, err := planner.New(newCatalog(t)).Build(context.Background(), stmt)
	if err != nil {
		return nil, err
	}
	return New(2).Execute(context.Background(), plan)
}

func TestRunnerExecuteSimpleSelect(t *testing.T) {
	result, err := run(t, `SELECT user_id, country FROM events WHERE user_id = 1 LIMIT 1`)
	require.NoError(t, err)
	defer result.Release()

	rows, err := result.Maps()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0]["user_id"])
	assert.Equal(t, "BR", rows[0]["country"])
}

func TestRunnerNullSemantics(t *testing.T) {
	result, err := run(t, `SELECT user_id FROM events WHERE country <> 'BR'`)
	require.NoError(t, err)
	defer result.Release()
	rows, err := result.Rows()
	require.NoError(t, err)
	// NULL <> 'BR' is unknown, so user 3 is filtered out
	assert.Equal(t, [][]interface{}{{uint64(2)}}, rows)

	result, err = run(t, `SELECT user_id FROM events WHERE NOT (country = 'BR') OR country IS NULL`)
	require.NoError(t, err)
	defer result.Release()
	rows, err = result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{uint64(2)}, {uint64(3)}}, rows)
}

func TestRunnerTimestampComparison(t *testing.T) {
	result, err := run(t, `SELECT seen FROM events WHERE seen >= '2020-01-02' ORDER BY seen DESC`)
	require.NoError(t, err)
	defer result.Release()
	rows, err := result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"2020-01-03 00:00:00"}, {"2020-01-02 00:00:00"}}, rows)

	_, err = run(t, `SELECT seen FROM events WHERE seen > 'yesterday'`)
	require.Error(t, err)
}

func TestRunnerOrderLimitAlias(t *testing.T) {
	result, err := run(t, `SELECT country AS c, user_id FROM events ORDER BY user_id DESC, c LIMIT 3`)
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, []string{"c", "user_id"}, result.Columns)
	assert.Equal(t, "c", result.Schema.Field(0).Name)
	rows, err := result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{nil, uint64(3)},
		{"US", uint64(2)},
		{"BR", uint64(1)},
	}, rows)
}

func TestRunnerBetweenAndLike(t *testing.T) {
	result, err := run(t, `SELECT user_id FROM events WHERE user_id BETWEEN 2 AND 3 OR country LIKE 'B%'`)
	require.NoError(t, err)
	defer result.Release()
	assert.EqualValues(t, 4, result.NumRows())

	result, err = run(t, `SELECT user_id FROM events WHERE user_id NOT BETWEEN 1 AND 2`)
	require.NoError(t, err)
	defer result.Release()
	rows, err := result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{uint64(3)}}, rows)
}

func TestRunnerTypeErrors(t *testing.T) {
	_, err := run(t, `SELECT * FROM events WHERE user_id = 'x'`)
	require.Error(t, err)
}

func TestRunnerLeftJoinCitiesByExtractedAddress(t *testing.T) {
	result, err := run(t, `SELECT full_name, extract_city(shipping_address) AS city, extract_country(shipping_address) AS country, cities.population
		FROM customers
		LEFT JOIN cities ON cities.name = city AND cities.country_code = country
		ORDER BY full_name ASC LIMIT 1000000`)
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, []string{"full_name", "city", "country", "population"}, result.Columns)
	rows, err := result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{"Ana Lima", "São Paulo", "BR", uint64(12325232)},
		{"Bo Chen", nil, "nowhere", nil},
		{"Cy Ortiz", nil, nil, nil},
		// Springfield existe, mas com outro country_code
		{"Di Moss", "Springfield", "US", nil},
		{"Zoe Park", "Amsterdam", "NL", uint64(921402)},
	}, rows)
}

func TestRunnerInnerJoinWithFunctionFilter(t *testing.T) {
	result, err := run(t, `SELECT c.full_name, t.population FROM customers c
		JOIN cities t ON t.name = extract_city(c.shipping_address)
		WHERE extract_country(c.shipping_address) = 'NL' OR t.population > 1000000
		ORDER BY t.population DESC`)
	require.NoError(t, err)
	defer result.Release()

	rows, err := result.Rows()
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{
		{"Ana Lima", uint64(12325232)},
		{"Zoe Park", uint64(921402)},
	}, rows)
}

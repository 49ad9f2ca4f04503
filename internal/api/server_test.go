package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(Config{
		Session: session.NewContext(session.WithLogger(logger)),
		Logger:  logger,
		Loader:  loader.DefaultOptions(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func loadPeople(t *testing.T, ts *httptest.Server) {
	t.Helper()
	resp, body := post(t, ts.URL+"/tables", map[string]interface{}{
		"table":  "people",
		"schema": "id:u64,name:text?,joined:timestamp?",
		"rows": []map[string]interface{}{
			{"id": 1, "name": "ana", "joined": "2020-01-01 00:00:00"},
			{"id": 2, "name": nil, "joined": nil},
			{"id": "3", "name": "caio"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.EqualValues(t, 3, body["rows"])
}

func TestHealthAndTables(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	loadPeople(t, ts)

	resp, err = http.Get(ts.URL + "/tables")
	require.NoError(t, err)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{"people"}, list["tables"])

	resp, err = http.Get(ts.URL + "/tables/people")
	require.NoError(t, err)
	var meta map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	resp.Body.Close()
	assert.EqualValues(t, 3, meta["rowCount"])

	resp, err = http.Get(ts.URL + "/tables/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoadConflictsAndErrors(t *testing.T) {
	ts := newTestServer(t)
	loadPeople(t, ts)

	resp, _ := post(t, ts.URL+"/tables", map[string]interface{}{
		"table": "PEOPLE", "schema": "id:u64", "rows": []map[string]interface{}{{"id": 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := post(t, ts.URL+"/tables", map[string]interface{}{
		"table": "bad", "schema": "id:u64", "rows": []map[string]interface{}{{"id": -1}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "coluna id")
}

func TestLoadKeepsFullUint64Range(t *testing.T) {
	ts := newTestServer(t)
	body := `{"table":"big","schema":"id:u64","rows":[{"id":9007199254740993},{"ID":18446744073709551615}]}`
	resp, err := http.Post(ts.URL+"/tables", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"sql":"SELECT id FROM big"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Rows [][]json.Number `json:"rows"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out))
	assert.Equal(t, [][]json.Number{{"9007199254740993"}, {"18446744073709551615"}}, out.Rows)
}

func TestLoadRejectsOutOfRangeAndUnknownColumns(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name string
		body string
		want string
	}{
		{"overflow", `{"table":"t","schema":"id:u64","rows":[{"id":18446744073709551616}]}`, "64 bits"},
		{"fraction", `{"table":"t","schema":"id:u64","rows":[{"id":1.5}]}`, "64 bits"},
		{"number in text column", `{"table":"t","schema":"name:text","rows":[{"name":7}]}`, "não é"},
		{"unknown column", `{"table":"t","schema":"id:u64","rows":[{"id":1,"idd":2}]}`, "esperadas: id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/tables", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Contains(t, out["error"], tc.want)
		})
	}
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t)
	loadPeople(t, ts)

	resp, body := post(t, ts.URL+"/query", map[string]string{
		"sql": "SELECT name, id FROM people WHERE joined IS NULL ORDER BY id DESC",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, []interface{}{"name", "id"}, body["columns"])
	assert.Equal(t, []interface{}{
		[]interface{}{"caio", float64(3)},
		[]interface{}{nil, float64(2)},
	}, body["rows"])
	assert.NotEmpty(t, body["query_id"])

	resp, _ = post(t, ts.URL+"/query", map[string]string{"sql": "SELECT * FROM ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/query", map[string]string{"sql": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExplain(t *testing.T) {
	ts := newTestServer(t)
	loadPeople(t, ts)

	resp, body := post(t, ts.URL+"/query/explain", map[string]string{"sql": "SELECT name FROM people LIMIT 1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body["physical"], "ScanExec: table=people, projection=[name]")
	assert.NotNil(t, body["logical"])

	data, _ := json.Marshal(map[string]string{"sql": "SELECT name FROM people"})
	raw, err := http.Post(ts.URL+"/query/explain?format=dot", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	dot, _ := io.ReadAll(raw.Body)
	raw.Body.Close()
	assert.Contains(t, string(dot), "digraph Plan {")

	resp, _ = post(t, ts.URL+"/query/explain?format=xml", map[string]string{"sql": "SELECT name FROM people"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteTable(t *testing.T) {
	ts := newTestServer(t)
	loadPeople(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/tables/people", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/query", map[string]string{"sql": "SELECT * FROM people"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSwagger(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/swagger/openapi.yaml")
	require.NoError(t, err)
	spec, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(spec), "/query/explain")
}

package httpd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/damiani91/aprende/metrics"
	"github.com/damiani91/aprende/rpc"
	"github.com/damiani91/aprende/store"
)

const filterBody = `{
	"method": "std_dev",
	"id_column": "id",
	"params": {"num_sd": 1},
	"columns": [
		{"name": "id", "type": "string", "values": ["a", "b", "c", "d", "e"]},
		{"name": "amount", "type": "float", "values": [1, 2, 3, 4, 100]}
	]
}`

func setup(t *testing.T) (http.Handler, *store.DB) {
	db, err := store.Open(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err, "open")
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	srv := rpc.NewServer(rpc.WithLogger(log), rpc.WithMetrics(metrics.New(reg)))
	return New(srv, db, reg, log), db
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestFilter(t *testing.T) {
	require := require.New(t)
	h, _ := setup(t)

	w := do(h, http.MethodPost, "/filter", filterBody)
	require.Equal(http.StatusOK, w.Code, w.Body.String())

	var reply struct {
		Columns []struct {
			Name   string
			Type   string
			Values []any
		}
	}
	require.NoError(json.NewDecoder(w.Body).Decode(&reply), "decode")
	require.Len(reply.Columns, 2, "columns")
	require.Equal("id", reply.Columns[0].Name, "name")
	require.Equal([]any{"a", "b", "c", "d"}, reply.Columns[0].Values, "ids")

	w = do(h, http.MethodGet, "/metrics", "")
	require.Equal(http.StatusOK, w.Code, "metrics")
	require.Contains(w.Body.String(), `outliers_filter_requests_total{code="OK",method="std_dev"} 1`, "metrics")
}

func TestFilterErrors(t *testing.T) {
	h, _ := setup(t)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{"method": `, http.StatusBadRequest},
		{"bad method", strings.Replace(filterBody, "std_dev", "bogus", 1), http.StatusBadRequest},
		{"missing id column", strings.Replace(filterBody, `"id_column": "id",`, "", 1), http.StatusUnprocessableEntity},
		{"no columns", `{"method": "iqr"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/filter", tc.body)
			require.Equal(t, tc.code, w.Code, w.Body.String())
			require.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestTableFilter(t *testing.T) {
	require := require.New(t)
	h, db := setup(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	df := dataframe.New(
		series.New(ids, series.String, "id"),
		series.New([]float64{1, 2, 3, 4, 5, 6, 7, 100}, series.Float, "amount"),
		series.New([]float64{1, 1, 1, 1, 1, 1, 1, 1}, series.Float, "weight"),
	)
	require.NoError(db.Save(ctx, "contacts", df), "save")

	w := do(h, http.MethodPost, "/tables/contacts/filter?method=iqr&id_column=id&exclude=weight", "")
	require.Equal(http.StatusOK, w.Code, w.Body.String())

	var reply struct {
		Table   string `json:"table"`
		RowsIn  int    `json:"rows_in"`
		RowsOut int    `json:"rows_out"`
	}
	require.NoError(json.NewDecoder(w.Body).Decode(&reply), "decode")
	require.Equal("contacts_clean", reply.Table, "table")
	require.Equal(8, reply.RowsIn, "rows in")
	require.Equal(7, reply.RowsOut, "rows out")

	clean, err := db.Load(ctx, "contacts_clean")
	require.NoError(err, "load")
	require.Equal(ids[:7], clean.Col("id").Records(), "ids")

	w = do(h, http.MethodGet, "/tables", "")
	require.Equal(http.StatusOK, w.Code, "tables")
	require.JSONEq(`{"tables": ["contacts", "contacts_clean"]}`, w.Body.String(), "tables")

	w = do(h, http.MethodPost, "/tables/nope/filter?id_column=id", "")
	require.Equal(http.StatusNotFound, w.Code, "missing table")

	w = do(h, http.MethodPost, "/tables/contacts/filter?id_column=id&bogus=1", "")
	require.Equal(http.StatusBadRequest, w.Code, "unknown param")

	w = do(h, http.MethodPost, "/tables/contacts/filter?out=contacts", "")
	require.Equal(http.StatusBadRequest, w.Code, "same table")
}

func TestNoDatabase(t *testing.T) {
	h := New(rpc.NewServer(), nil, prometheus.NewRegistry(), nil)

	w := do(h, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
}

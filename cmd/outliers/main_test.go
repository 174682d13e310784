package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/damiani91/aprende/outliers"
	"github.com/damiani91/aprende/rpc"
	"github.com/damiani91/aprende/store"
)

const contactsCSV = `id,amount,note
a,1,x
b,2,y
c,3,z
d,4,w
e,100,v
`

func execute(ctx context.Context, t *testing.T, stdin string, args ...string) (string, error) {
	t.Setenv("LOG_LEVEL", "")

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func writeFile(t *testing.T, name, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644), "write %s", name)
	return path
}

func csvIDs(t *testing.T, data string) []string {
	df := dataframe.ReadCSV(strings.NewReader(data))
	require.NoError(t, df.Err, "read output")
	return df.Col("id").Records()
}

func TestFilterCSV(t *testing.T) {
	require := require.New(t)

	cfg := writeFile(t, "outliers.yaml", "method: std_dev\nnum_sd: 1\n")
	in := writeFile(t, "contacts.csv", contactsCSV)

	out, err := execute(context.Background(), t, "", "filter", "--config", cfg, "--id-column", "id", "--in", in)
	require.NoError(err, "filter")
	require.Equal([]string{"a", "b", "c", "d"}, csvIDs(t, out), "ids")
}

func TestFilterStdinToFile(t *testing.T) {
	require := require.New(t)

	cfg := writeFile(t, "outliers.yaml", "num_sd: 1\nid_column: id\n")
	out := filepath.Join(t.TempDir(), "clean.csv")

	_, err := execute(context.Background(), t, contactsCSV, "filter", "-q", "--config", cfg, "--out", out)
	require.NoError(err, "filter")

	data, err := os.ReadFile(out)
	require.NoError(err, "read")
	require.Equal([]string{"a", "b", "c", "d"}, csvIDs(t, string(data)), "ids")
}

func TestFilterInvalidMethod(t *testing.T) {
	_, err := execute(context.Background(), t, contactsCSV, "filter", "--method", "bogus", "--id-column", "id")
	require.ErrorIs(t, err, outliers.ErrInvalidMethod)
}

func TestFilterTable(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	dbFile := filepath.Join(t.TempDir(), "data.db")
	db, err := store.Open(dbFile)
	require.NoError(err, "open")
	defer db.Close()

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	df := dataframe.New(
		series.New(ids, series.String, "id"),
		series.New([]float64{1, 2, 3, 4, 5, 6, 7, 100}, series.Float, "amount"),
	)
	require.NoError(db.Save(ctx, "contacts", df), "save")

	_, err = execute(ctx, t, "",
		"filter", "--method", "iqr", "--id-column", "id",
		"--db", dbFile, "--table", "contacts", "--out-table", "clean",
	)
	require.NoError(err, "filter")

	clean, err := db.Load(ctx, "clean")
	require.NoError(err, "load")
	require.Equal(ids[:7], clean.Col("id").Records(), "ids")
}

func TestFilterRemote(t *testing.T) {
	require := require.New(t)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err, "listen")
	srv := grpc.NewServer()
	rpc.Register(srv, rpc.NewServer())
	go srv.Serve(lis)
	defer srv.Stop()

	cfg := writeFile(t, "outliers.yaml", "num_sd: 1\nid_column: id\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := execute(ctx, t, contactsCSV, "filter", "--config", cfg, "--server", lis.Addr().String())
	require.NoError(err, "filter")
	require.Equal([]string{"a", "b", "c", "d"}, csvIDs(t, out), "ids")
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	db := filepath.Join(t.TempDir(), "data.db")
	_, err := execute(ctx, t, "", "serve", "--addr", "127.0.0.1:0", "--http-addr", "127.0.0.1:0", "--db", db)
	require.NoError(t, err, "serve")
}

func TestVersion(t *testing.T) {
	out, err := execute(context.Background(), t, "", "version")
	require.NoError(t, err, "version")
	require.True(t, strings.HasPrefix(out, "outliers dev"), out)
}

package outliers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func frame(ids []string, values []float64) dataframe.DataFrame {
	return dataframe.New(
		series.New(ids, series.String, "id"),
		series.New(values, series.Float, "value"),
	)
}

func seqIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}
	return ids
}

func TestStdDev(t *testing.T) {
	require := require.New(t)

	df := frame([]string{"a", "b", "c", "d", "e"}, []float64{1, 2, 3, 4, 100})
	out, err := Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(1), quiet)
	require.NoError(err, "remove")
	require.Equal([]string{"a", "b", "c", "d"}, out.Col("id").Records(), "ids")

	b, err := StdDevBound([]float64{1, 2, 3, 4, 100}, 1)
	require.NoError(err, "bound")
	require.InDelta(22-43.62, b.Lower, 0.01, "lower")
	require.InDelta(22+43.62, b.Upper, 0.01, "upper")
}

func TestIQR(t *testing.T) {
	require := require.New(t)

	values := []float64{1, 2, 3, 4, 5, 6, 7, 100}
	b, err := IQRBound(values, 1.5)
	require.NoError(err, "bound")
	require.InDelta(-2.5, b.Lower, 1e-9, "lower")
	require.InDelta(11.5, b.Upper, 1e-9, "upper")

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	out, err := Remove(frame(ids, values), "iqr", WithIDColumn("id"), quiet)
	require.NoError(err, "remove")
	require.Equal(ids[:7], out.Col("id").Records(), "ids")
}

func TestInvalidMethod(t *testing.T) {
	require := require.New(t)

	df := frame([]string{"a", "b"}, []float64{1, 2})
	before := df.Records()

	_, err := Remove(df, "bogus", WithIDColumn("id"), quiet)
	require.Error(err, "bogus")
	require.True(errors.Is(err, ErrInvalidMethod), "is")
	var methodErr *InvalidMethodError
	require.True(errors.As(err, &methodErr), "as")
	require.Equal("bogus", methodErr.Method, "method")
	require.Equal(before, df.Records(), "input changed")

	_, err = NewFilter(Method(42))
	require.ErrorIs(err, ErrInvalidMethod, "out of range")

	_, err = NewFilter(0)
	require.ErrorIs(err, ErrInvalidMethod, "zero")
}

func TestParseMethod(t *testing.T) {
	require := require.New(t)

	for _, m := range []Method{StdDev, Percentiles, ZScore, IQR, IsolationForest} {
		parsed, err := ParseMethod(m.String())
		require.NoError(err, m.String())
		require.Equal(m, parsed, m.String())
	}

	for _, name := range []string{"", "STD_DEV", "zscore", "isolation forest"} {
		_, err := ParseMethod(name)
		require.ErrorIs(err, ErrInvalidMethod, name)
	}
}

func TestPercentiles(t *testing.T) {
	require := require.New(t)

	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	b, err := PercentileBound(values, 5, 95)
	require.NoError(err, "bound")
	require.InDelta(5.95, b.Lower, 1e-9, "lower")
	require.InDelta(95.05, b.Upper, 1e-9, "upper")

	ids := seqIDs(len(values))
	f, err := NewFilter(Percentiles, WithIDColumn("id"), WithPercentiles(5, 95), quiet)
	require.NoError(err, "new")

	found, err := f.Detect(frame(ids, values))
	require.NoError(err, "detect")
	require.Equal(10, found.Len(), "flagged")
	for _, i := range []int{0, 1, 2, 3, 4, 95, 96, 97, 98, 99} {
		require.True(found.Has(ids[i]), "missing %s", ids[i])
	}
}

func TestZScore(t *testing.T) {
	require := require.New(t)

	values := []float64{1, 2, 3, 4, 100}
	b, ok, err := ZScoreBound(values, 1)
	require.NoError(err, "bound")
	require.True(ok, "ok")
	require.Equal(Bound{Lower: 1, Upper: 4}, b, "empirical bound")

	df := frame([]string{"a", "b", "c", "d", "e"}, values)
	out, err := Remove(df, "z_score", WithIDColumn("id"), WithZScoreThreshold(1), quiet)
	require.NoError(err, "remove")
	require.Equal([]string{"a", "b", "c", "d"}, out.Col("id").Records(), "ids")
}

func TestZScoreEmptyBound(t *testing.T) {
	require := require.New(t)

	// Both values are ~0.7 sd away from the mean
	df := frame([]string{"a", "b"}, []float64{0, 10})

	out, err := Remove(df, "z_score", WithIDColumn("id"), WithZScoreThreshold(0.1), quiet)
	require.NoError(err, "lenient")
	require.Equal(2, out.Nrow(), "rows")

	_, err = Remove(df, "z_score", WithIDColumn("id"), WithZScoreThreshold(0.1), WithStrictBounds(true), quiet)
	require.ErrorIs(err, ErrEmptyBound, "strict")
	var boundErr *EmptyBoundError
	require.True(errors.As(err, &boundErr), "as")
	require.Equal("value", boundErr.Column, "column")

	// Constant column has no spread
	out, err = Remove(frame([]string{"a", "b", "c"}, []float64{3, 3, 3}), "z_score", WithIDColumn("id"), quiet)
	require.NoError(err, "constant")
	require.Equal(3, out.Nrow(), "constant rows")
}

func TestEntityRemovedAtomically(t *testing.T) {
	require := require.New(t)

	ids := []string{"x", "x", "y", "y", "z", "z", "w", "w"}
	values := []float64{1, 100, 2, 3, 2, 3, 1, 2}
	out, err := Remove(frame(ids, values), "iqr", WithIDColumn("id"), quiet)
	require.NoError(err, "remove")
	require.Equal([]string{"y", "y", "z", "z", "w", "w"}, out.Col("id").Records(), "ids")
	require.Equal([]float64{2, 3, 2, 3, 1, 2}, out.Col("value").Float(), "values")
}

func TestOrAcrossColumns(t *testing.T) {
	require := require.New(t)

	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d", "e", "f"}, series.String, "id"),
		series.New([]float64{1, 2, 3, 4, 5, 500}, series.Float, "x"),
		series.New([]int{-900, 2, 3, 4, 5, 6}, series.Int, "y"),
	)

	out, err := Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(1.5), quiet)
	require.NoError(err, "remove")
	require.Equal([]string{"b", "c", "d", "e"}, out.Col("id").Records(), "ids")
}

func TestNonNumericPassthrough(t *testing.T) {
	require := require.New(t)

	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d", "e"}, series.String, "id"),
		series.New([]string{"x", "x", "x", "x", "zzzzzzzzzz"}, series.String, "label"),
		series.New([]bool{true, true, true, true, false}, series.Bool, "flag"),
		series.New([]float64{10, 11, 10, 11, 10}, series.Float, "value"),
	)
	before := df.Records()

	out, err := Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(2), quiet)
	require.NoError(err, "remove")
	require.Equal(df.Records(), out.Records(), "rows")
	require.Equal(df.Names(), out.Names(), "columns")
	require.Equal(before, df.Records(), "input changed")

	_, err = Remove(df.Select([]string{"id", "label", "flag"}), "iqr", WithIDColumn("id"), quiet)
	require.ErrorIs(err, ErrInsufficientData, "no numeric")
}

func TestSubsetAndInputUnchanged(t *testing.T) {
	require := require.New(t)

	values := []float64{3, -40, 5, 8, 2, 7, 90, 4, 6, 5, 3, 1}
	ids := []string{"a", "b", "c", "a", "d", "e", "f", "g", "h", "b", "i", "j"}
	df := frame(ids, values)
	before := df.Records()

	for _, m := range []string{"std_dev", "percentiles", "z_score", "iqr", "isolation_forest"} {
		f, err := NewFilter(mustParse(t, m), WithIDColumn("id"), WithNumSD(1), WithZScoreThreshold(1), WithContamination(0.1), quiet)
		require.NoError(err, m)

		flagged, err := f.Detect(df)
		require.NoError(err, m)

		out, err := f.Apply(df)
		require.NoError(err, m)
		require.Equal(before, df.Records(), "%s: input changed", m)

		// row in output <=> row in input and id not flagged, in input order
		var want [][]string
		for i, rec := range before[1:] {
			if !flagged.Has(ids[i]) {
				want = append(want, rec)
			}
		}
		got := out.Records()[1:]
		require.Equal(len(want), len(got), "%s: rows", m)
		for i := range want {
			require.Equal(want[i], got[i], "%s: row %d", m, i)
		}
	}
}

func TestNumericIDColumn(t *testing.T) {
	require := require.New(t)

	df := dataframe.New(
		series.New([]int{1, 2, 3, 4, 1000}, series.Int, "id"),
		series.New([]float64{5, 5, 5, 5, 5}, series.Float, "value"),
	)

	out, err := Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(1), quiet)
	require.NoError(err, "with id")
	require.Equal(4, out.Nrow(), "id evaluated")

	out, err = Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(1), WithExcludedColumns("id"), quiet)
	require.NoError(err, "excluded")
	require.Equal(5, out.Nrow(), "id excluded")

	_, err = Remove(df, "std_dev", WithIDColumn("id"), WithExcludedColumns("nope"), quiet)
	require.ErrorIs(err, ErrInsufficientData, "unknown excluded")
}

func TestMissingValues(t *testing.T) {
	require := require.New(t)

	df := frame([]string{"a", "b", "c", "d", "e", "f"}, []float64{1, 2, 3, 4, 100, math.NaN()})
	out, err := Remove(df, "std_dev", WithIDColumn("id"), WithNumSD(1), quiet)
	require.NoError(err, "remove")
	require.Equal([]string{"a", "b", "c", "d", "f"}, out.Col("id").Records(), "ids")

	_, err = Remove(df, "isolation_forest", WithIDColumn("id"), quiet)
	require.ErrorIs(err, ErrInsufficientData, "isolation forest")
}

func TestInsufficientData(t *testing.T) {
	r := require.New(t)

	testCases := []struct {
		name   string
		df     dataframe.DataFrame
		method string
	}{
		{"empty", frame([]string{}, []float64{}), "iqr"},
		{"single std_dev", frame([]string{"a"}, []float64{1}), "std_dev"},
		{"single z_score", frame([]string{"a"}, []float64{1}), "z_score"},
		{"single isolation_forest", frame([]string{"a"}, []float64{1}), "isolation_forest"},
		{"all missing", frame([]string{"a", "b"}, []float64{math.NaN(), math.NaN()}), "percentiles"},
		{"no id column", dataframe.New(series.New([]float64{1, 2}, series.Float, "value")), "iqr"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Remove(tc.df, tc.method, WithIDColumn("id"), quiet)
			require.New(t).ErrorIs(err, ErrInsufficientData)
		})
	}

	// Single row is enough for quantiles
	out, err := Remove(frame([]string{"a"}, []float64{1}), "percentiles", WithIDColumn("id"), quiet)
	r.NoError(err, "single percentiles")
	r.Equal(1, out.Nrow(), "single percentiles rows")
}

func TestInvalidParameter(t *testing.T) {
	testCases := []struct {
		name string
		opt  Option
	}{
		{"negative num_sd", WithNumSD(-1)},
		{"reversed percentiles", WithPercentiles(90, 10)},
		{"percentile above 100", WithPercentiles(5, 101)},
		{"negative z", WithZScoreThreshold(-3)},
		{"negative iqr", WithIQRMultiplier(-1)},
		{"contamination", WithContamination(0.9)},
		{"zero contamination", WithContamination(0)},
		{"trees", WithTrees(0)},
		{"sample size", WithSampleSize(-1)},
		{"id column", WithIDColumn("")},
		{"NaN num_sd", WithNumSD(math.NaN())},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFilter(StdDev, tc.opt)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestDefaults(t *testing.T) {
	require := require.New(t)

	f, err := NewFilter(StdDev)
	require.NoError(err, "new")
	p := f.Params()
	require.Equal(DefaultIDColumn, p.IDColumn, "id column")
	require.Equal(4.0, p.NumSD, "num_sd")
	require.Equal(5.0, p.LowerPercentile, "lower")
	require.Equal(95.0, p.UpperPercentile, "upper")
	require.Equal(3.0, p.ZScoreThreshold, "z")
	require.Equal(1.5, p.IQRMultiplier, "iqr")
	require.Equal(0.03, p.Contamination, "contamination")
	require.Equal(int64(42), p.Seed, "seed")
}

func TestExcludeNotShared(t *testing.T) {
	require := require.New(t)

	exclude := make([]string, 1, 4)
	exclude[0] = "age"
	p := DefaultParams()
	p.Exclude = exclude

	f, err := NewFilter(StdDev, WithParams(p), WithExcludedColumns("score"))
	require.NoError(err, "new")
	require.Equal([]string{"age", "score"}, f.Params().Exclude, "filter exclude")
	require.Equal("", exclude[:2][1], "caller array written")

	got := f.Params()
	got.Exclude[0] = "changed"
	require.Equal("age", f.Params().Exclude[0], "params copy")
}

func TestPercentile(t *testing.T) {
	require := require.New(t)

	sorted := []float64{1, 2, 3, 4}
	require.Equal(1.0, Percentile(sorted, 0), "0")
	require.Equal(4.0, Percentile(sorted, 100), "100")
	require.InDelta(2.5, Percentile(sorted, 50), 1e-12, "50")
	require.InDelta(1.75, Percentile(sorted, 25), 1e-12, "25")
	require.Equal(7.0, Percentile([]float64{7}, 30), "single")
}

func TestIDSet(t *testing.T) {
	require := require.New(t)

	a := IDSet{}
	a.Add("x")
	b := IDSet{}
	b.Add("y")
	b.Add("x")

	u := a.Union(b)
	require.Equal([]string{"x", "y"}, u.Sorted(), "union")
	require.Equal(1, a.Len(), "a unchanged")
	require.False(a.Has("y"), "a unchanged")
}

func mustParse(t *testing.T, name string) Method {
	m, err := ParseMethod(name)
	require.NoError(t, err, name)
	return m
}

func BenchmarkRemove(b *testing.B) {
	const size = 10_000
	values := make([]float64, size)
	for i := range values {
		values[i] = float64(i % 100)
	}
	values[7] = 1e6
	df := frame(seqIDs(size), values)

	for _, m := range []string{"std_dev", "percentiles", "z_score", "iqr"} {
		b.Run(m, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, err := Remove(df, m, WithIDColumn("id"), quiet)
				require.NoError(b, err)
			}
		})
	}
}

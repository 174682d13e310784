package outliers

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
)

// Filter removes the rows of every entity that is an outlier on at least one
// numeric column. A Filter holds configuration only, every call computes its
// bounds from scratch. It's safe for concurrent use as long as the scorer is.
type Filter struct {
	method Method
	params Params
	scorer AnomalyScorer
	log    *slog.Logger
}

// NewFilter returns a new Filter using method.
func NewFilter(method Method, opts ...Option) (*Filter, error) {
	if !method.valid() {
		return nil, &InvalidMethodError{Method: method.String()}
	}

	f := &Filter{
		method: method,
		params: DefaultParams(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.params.Validate(); err != nil {
		return nil, err
	}

	if f.log == nil {
		f.log = slog.Default()
	}
	if f.scorer == nil {
		f.scorer = NewForest(f.params.Trees, f.params.SampleSize, f.params.Seed)
	}

	return f, nil
}

// Remove is a one call version of NewFilter + Apply with a method name.
func Remove(df dataframe.DataFrame, method string, opts ...Option) (dataframe.DataFrame, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	f, err := NewFilter(m, opts...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	return f.Apply(df)
}

// Method returns the filter method.
func (f *Filter) Method() Method { return f.method }

// Params returns a copy of the filter parameters.
func (f *Filter) Params() Params {
	p := f.params
	p.Exclude = slices.Clone(f.params.Exclude)
	return p
}

// Detect returns the identifiers of the outlier entities in df.
func (f *Filter) Detect(df dataframe.DataFrame) (IDSet, error) {
	ids, _, err := f.detect(df)
	return ids, err
}

// Apply returns a new data frame without the rows of outlier entities.
// Surviving rows keep their order and values, df is not modified.
func (f *Filter) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	flagged, keys, err := f.detect(df)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	keep := make([]int, 0, len(keys))
	for i, key := range keys {
		if !flagged.Has(key) {
			keep = append(keep, i)
		}
	}

	out := df.Subset(keep)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("subset: %w", out.Err)
	}

	f.log.Info("outliers removed",
		"method", f.method.String(),
		"entities", flagged.Len(),
		"rows_in", df.Nrow(),
		"rows_out", out.Nrow(),
	)
	return out, nil
}

// detect returns the outlier set and the identifier key of every row.
func (f *Filter) detect(df dataframe.DataFrame) (IDSet, []string, error) {
	cols, err := f.numericColumns(df)
	if err != nil {
		return nil, nil, err
	}

	keys := idKeys(df.Col(f.params.IDColumn))

	if f.method == IsolationForest {
		ids, err := f.detectJoint(df, cols, keys)
		return ids, keys, err
	}

	ids := make(IDSet)
	for _, name := range cols {
		colIDs, err := f.detectColumn(name, df.Col(name).Float(), keys)
		if err != nil {
			return nil, nil, err
		}
		ids = ids.Union(colIDs)
	}

	return ids, keys, nil
}

// numericColumns validates df and returns the names of the columns to evaluate.
func (f *Filter) numericColumns(df dataframe.DataFrame) ([]string, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("data frame: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, &InsufficientDataError{Reason: "empty data frame"}
	}

	names := df.Names()
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	if !known[f.params.IDColumn] {
		return nil, &InsufficientDataError{Column: f.params.IDColumn, Reason: "identifier column not found"}
	}

	excluded := make(map[string]bool, len(f.params.Exclude))
	for _, name := range f.params.Exclude {
		if !known[name] {
			return nil, &InsufficientDataError{Column: name, Reason: "excluded column not found"}
		}
		excluded[name] = true
	}

	var cols []string
	for i, typ := range df.Types() {
		if excluded[names[i]] {
			continue
		}
		if typ == series.Int || typ == series.Float {
			cols = append(cols, names[i])
		}
	}

	if len(cols) == 0 {
		return nil, &InsufficientDataError{Reason: "no numeric column"}
	}
	return cols, nil
}

// detectColumn returns the identifiers of rows outside the column bound.
func (f *Filter) detectColumn(name string, values []float64, keys []string) (IDSet, error) {
	b, ok, err := f.bound(values)
	if err != nil {
		var dataErr *InsufficientDataError
		if errors.As(err, &dataErr) {
			dataErr.Column = name
		}
		return nil, err
	}

	ids := make(IDSet)
	if !ok {
		if f.params.StrictBounds {
			return nil, &EmptyBoundError{Column: name, Method: f.method}
		}
		f.log.Warn("no bound for column, skipping", "column", name, "method", f.method.String())
		return ids, nil
	}

	f.log.Debug("column bound", "column", name, "method", f.method.String(), "lower", b.Lower, "upper", b.Upper)
	for i, v := range values {
		if b.Outside(v) {
			ids.Add(keys[i])
		}
	}
	return ids, nil
}

// bound computes the column bound for the per column methods.
func (f *Filter) bound(values []float64) (Bound, bool, error) {
	values = present(values)

	var (
		b   Bound
		err error
	)
	switch f.method {
	case StdDev:
		b, err = StdDevBound(values, f.params.NumSD)
	case Percentiles:
		b, err = PercentileBound(values, f.params.LowerPercentile, f.params.UpperPercentile)
	case IQR:
		b, err = IQRBound(values, f.params.IQRMultiplier)
	case ZScore:
		return ZScoreBound(values, f.params.ZScoreThreshold)
	default:
		return Bound{}, false, &InvalidMethodError{Method: f.method.String()}
	}

	if err != nil {
		return Bound{}, false, err
	}
	return b, true, nil
}

// detectJoint runs the anomaly scorer on all the numeric columns at once.
func (f *Filter) detectJoint(df dataframe.DataFrame, cols []string, keys []string) (IDSet, error) {
	nrows := df.Nrow()
	if nrows < 2 {
		return nil, &InsufficientDataError{Reason: "isolation forest needs at least 2 rows"}
	}

	X := mat.NewDense(nrows, len(cols), nil)
	for j, name := range cols {
		for i, v := range df.Col(name).Float() {
			if math.IsNaN(v) {
				return nil, &InsufficientDataError{Column: name, Reason: "missing values"}
			}
			X.Set(i, j, v)
		}
	}

	flags, err := f.scorer.FitPredict(X, f.params.Contamination)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.method, err)
	}
	if len(flags) != nrows {
		return nil, fmt.Errorf("%s: got %d flags for %d rows", f.method, len(flags), nrows)
	}

	ids := make(IDSet)
	for i, anomalous := range flags {
		if anomalous {
			ids.Add(keys[i])
		}
	}

	f.log.Debug("joint detection", "method", f.method.String(), "columns", cols, "flagged", ids.Len())
	return ids, nil
}

// idKeys returns the string form of every identifier, NA values share a key.
func idKeys(s series.Series) []string {
	keys := make([]string, s.Len())
	for i := range keys {
		keys[i] = s.Elem(i).String()
	}
	return keys
}

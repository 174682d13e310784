package outliers

import (
	"log/slog"
	"slices"
)

// DefaultIDColumn is the identifier column used when none is given.
const DefaultIDColumn = "salesforce_contact_id"

// Params are the tuning knobs of a Filter. Only the ones relevant to the
// selected method are used.
type Params struct {
	IDColumn        string
	NumSD           float64 // std_dev band multiplier
	LowerPercentile float64 // percentiles, 0-100
	UpperPercentile float64
	ZScoreThreshold float64 // max admissible |z|
	IQRMultiplier   float64
	Contamination   float64 // expected outlier fraction for isolation_forest
	Seed            int64
	Trees           int
	SampleSize      int
	StrictBounds    bool     // fail with EmptyBoundError instead of skipping the column
	Exclude         []string // numeric columns left out of the evaluation
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		IDColumn:        DefaultIDColumn,
		NumSD:           4,
		LowerPercentile: 5,
		UpperPercentile: 95,
		ZScoreThreshold: 3,
		IQRMultiplier:   1.5,
		Contamination:   0.03,
		Seed:            42,
		Trees:           100,
		SampleSize:      256,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.IDColumn == "":
		return &InvalidParameterError{Name: "id_column", Value: p.IDColumn, Reason: "empty column name"}
	case !(p.NumSD >= 0):
		return &InvalidParameterError{Name: "num_sd", Value: p.NumSD, Reason: "must be >= 0"}
	case !(p.LowerPercentile >= 0 && p.LowerPercentile <= 100):
		return &InvalidParameterError{Name: "lower_percentile", Value: p.LowerPercentile, Reason: "must be in [0, 100]"}
	case !(p.UpperPercentile >= 0 && p.UpperPercentile <= 100):
		return &InvalidParameterError{Name: "upper_percentile", Value: p.UpperPercentile, Reason: "must be in [0, 100]"}
	case p.LowerPercentile > p.UpperPercentile:
		return &InvalidParameterError{Name: "lower_percentile", Value: p.LowerPercentile, Reason: "above upper_percentile"}
	case !(p.ZScoreThreshold >= 0):
		return &InvalidParameterError{Name: "z_score_threshold", Value: p.ZScoreThreshold, Reason: "must be >= 0"}
	case !(p.IQRMultiplier >= 0):
		return &InvalidParameterError{Name: "iqr_multiplier", Value: p.IQRMultiplier, Reason: "must be >= 0"}
	case !(p.Contamination > 0 && p.Contamination <= 0.5):
		return &InvalidParameterError{Name: "contamination", Value: p.Contamination, Reason: "must be in (0, 0.5]"}
	case p.Trees <= 0:
		return &InvalidParameterError{Name: "trees", Value: p.Trees, Reason: "must be > 0"}
	case p.SampleSize <= 0:
		return &InvalidParameterError{Name: "sample_size", Value: p.SampleSize, Reason: "must be > 0"}
	}
	return nil
}

// Option configures a Filter.
type Option func(*Filter)

// WithParams replaces all parameters at once. p.Exclude is copied.
func WithParams(p Params) Option {
	return func(f *Filter) {
		f.params = p
		f.params.Exclude = slices.Clone(p.Exclude)
	}
}

// WithIDColumn sets the entity identifier column.
func WithIDColumn(name string) Option { return func(f *Filter) { f.params.IDColumn = name } }

// WithNumSD sets the standard deviation multiplier for std_dev.
func WithNumSD(n float64) Option { return func(f *Filter) { f.params.NumSD = n } }

// WithPercentiles sets the percentile band for percentiles.
func WithPercentiles(lower, upper float64) Option {
	return func(f *Filter) {
		f.params.LowerPercentile = lower
		f.params.UpperPercentile = upper
	}
}

// WithZScoreThreshold sets the maximal admissible absolute z-score.
func WithZScoreThreshold(t float64) Option { return func(f *Filter) { f.params.ZScoreThreshold = t } }

// WithIQRMultiplier sets the fence multiplier for iqr.
func WithIQRMultiplier(k float64) Option { return func(f *Filter) { f.params.IQRMultiplier = k } }

// WithContamination sets the expected outlier fraction for isolation_forest.
func WithContamination(c float64) Option { return func(f *Filter) { f.params.Contamination = c } }

// WithSeed seeds the isolation forest.
func WithSeed(seed int64) Option { return func(f *Filter) { f.params.Seed = seed } }

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option { return func(f *Filter) { f.params.Trees = n } }

// WithSampleSize sets the isolation tree subsample size.
func WithSampleSize(n int) Option { return func(f *Filter) { f.params.SampleSize = n } }

// WithStrictBounds makes columns without a bound an error.
func WithStrictBounds(strict bool) Option { return func(f *Filter) { f.params.StrictBounds = strict } }

// WithExcludedColumns leaves numeric columns out of the evaluation.
func WithExcludedColumns(names ...string) Option {
	return func(f *Filter) { f.params.Exclude = append(slices.Clip(f.params.Exclude), names...) }
}

// WithScorer replaces the default isolation forest.
func WithScorer(s AnomalyScorer) Option { return func(f *Filter) { f.scorer = s } }

// WithLogger sets the logger, default is slog.Default().
func WithLogger(log *slog.Logger) Option { return func(f *Filter) { f.log = log } }

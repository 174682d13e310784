package config

import (
	"fmt"

	"github.com/spf13/cast"
)

// FromMap builds a Config from a generic map, such as decoded JSON. Keys are
// the YAML keys, values are coerced to the field type. Missing keys keep
// their default value.
func FromMap(m map[string]any) (Config, error) {
	cfg := Default()

	for key, val := range m {
		var err error
		switch key {
		case "id_column":
			cfg.IDColumn, err = cast.ToStringE(val)
		case "method":
			cfg.Method, err = cast.ToStringE(val)
		case "num_sd":
			cfg.NumSD, err = cast.ToFloat64E(val)
		case "lower_percentile":
			cfg.LowerPercentile, err = cast.ToFloat64E(val)
		case "upper_percentile":
			cfg.UpperPercentile, err = cast.ToFloat64E(val)
		case "z_score_threshold":
			cfg.ZScoreThreshold, err = cast.ToFloat64E(val)
		case "iqr_multiplier":
			cfg.IQRMultiplier, err = cast.ToFloat64E(val)
		case "contamination":
			cfg.Contamination, err = cast.ToFloat64E(val)
		case "seed":
			cfg.Seed, err = cast.ToInt64E(val)
		case "trees":
			cfg.Trees, err = cast.ToIntE(val)
		case "sample_size":
			cfg.SampleSize, err = cast.ToIntE(val)
		case "strict_bounds":
			cfg.StrictBounds, err = cast.ToBoolE(val)
		case "exclude":
			cfg.Exclude, err = cast.ToStringSliceE(val)
		default:
			return Config{}, fmt.Errorf("unknown key %q", key)
		}

		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", key, err)
		}
	}

	return cfg, nil
}

// Map is the inverse of FromMap. Lists are []any so the map can be used
// with structpb.
func (c Config) Map() map[string]any {
	exclude := make([]any, len(c.Exclude))
	for i, name := range c.Exclude {
		exclude[i] = name
	}

	return map[string]any{
		"id_column":         c.IDColumn,
		"method":            c.Method,
		"num_sd":            c.NumSD,
		"lower_percentile":  c.LowerPercentile,
		"upper_percentile":  c.UpperPercentile,
		"z_score_threshold": c.ZScoreThreshold,
		"iqr_multiplier":    c.IQRMultiplier,
		"contamination":     c.Contamination,
		"seed":              c.Seed,
		"trees":             c.Trees,
		"sample_size":       c.SampleSize,
		"strict_bounds":     c.StrictBounds,
		"exclude":           exclude,
	}
}

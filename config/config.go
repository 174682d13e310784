// Package config loads outlier filter settings from YAML files, generic
// maps and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/damiani91/aprende/outliers"
)

// Config is the method and its parameters.
type Config struct {
	IDColumn        string   `yaml:"id_column"`
	Method          string   `yaml:"method"`
	NumSD           float64  `yaml:"num_sd"`
	LowerPercentile float64  `yaml:"lower_percentile"`
	UpperPercentile float64  `yaml:"upper_percentile"`
	ZScoreThreshold float64  `yaml:"z_score_threshold"`
	IQRMultiplier   float64  `yaml:"iqr_multiplier"`
	Contamination   float64  `yaml:"contamination"`
	Seed            int64    `yaml:"seed"`
	Trees           int      `yaml:"trees"`
	SampleSize      int      `yaml:"sample_size"`
	StrictBounds    bool     `yaml:"strict_bounds"`
	Exclude         []string `yaml:"exclude"`
}

// DefaultMethod is the method used when none is configured.
const DefaultMethod = "std_dev"

// Default returns the default configuration.
func Default() Config {
	p := outliers.DefaultParams()
	return Config{
		IDColumn:        p.IDColumn,
		Method:          DefaultMethod,
		NumSD:           p.NumSD,
		LowerPercentile: p.LowerPercentile,
		UpperPercentile: p.UpperPercentile,
		ZScoreThreshold: p.ZScoreThreshold,
		IQRMultiplier:   p.IQRMultiplier,
		Contamination:   p.Contamination,
		Seed:            p.Seed,
		Trees:           p.Trees,
		SampleSize:      p.SampleSize,
	}
}

// Parse parses YAML data, missing keys keep their default value.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Load parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Params returns the filter parameters.
func (c Config) Params() outliers.Params {
	return outliers.Params{
		IDColumn:        c.IDColumn,
		NumSD:           c.NumSD,
		LowerPercentile: c.LowerPercentile,
		UpperPercentile: c.UpperPercentile,
		ZScoreThreshold: c.ZScoreThreshold,
		IQRMultiplier:   c.IQRMultiplier,
		Contamination:   c.Contamination,
		Seed:            c.Seed,
		Trees:           c.Trees,
		SampleSize:      c.SampleSize,
		StrictBounds:    c.StrictBounds,
		Exclude:         c.Exclude,
	}
}

// Filter returns a filter for the configured method. opts are applied after
// the configuration.
func (c Config) Filter(opts ...outliers.Option) (*outliers.Filter, error) {
	m, err := outliers.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}

	opts = append([]outliers.Option{outliers.WithParams(c.Params())}, opts...)
	return outliers.NewFilter(m, opts...)
}

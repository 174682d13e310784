// Package pipeline chains data frame cleaning stages.
package pipeline

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// Stage is a step in a pipeline. *outliers.Filter is a Stage.
type Stage interface {
	Apply(df dataframe.DataFrame) (dataframe.DataFrame, error)
}

// StageFunc adapts a function to a Stage.
type StageFunc func(dataframe.DataFrame) (dataframe.DataFrame, error)

// Apply calls fn(df).
func (fn StageFunc) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return fn(df)
}

// Transform is the post cleaning transformation. It currently returns df
// unchanged.
func Transform(df dataframe.DataFrame) dataframe.DataFrame {
	return df
}

// TransformStage returns Transform as a Stage.
func TransformStage() Stage {
	return StageFunc(func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
		return Transform(df), nil
	})
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages []Stage
}

// New returns a new Pipeline.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply runs df through all the stages, it stops at the first error.
func (p *Pipeline) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	for i, stage := range p.stages {
		var err error
		df, err = stage.Apply(df)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return df, nil
}

// Package preprocess turns raw merged sample tables into model-ready feature
// matrices. Every transform learns its parameters from the training split
// alone and applies them unchanged to any later table, so statistics from
// validation or test rows can never leak into the fit.
package preprocess

import (
	"fmt"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// Transform is one stage of the feature pipeline. Fit learns parameters
// from a training table; Apply uses only those parameters and never alters
// them. Apply returns a new table and leaves its input untouched.
type Transform interface {
	Name() string
	Fit(t *dataset.Table) error
	Apply(t *dataset.Table) (*dataset.Table, error)
}

// Pipeline runs an ordered sequence of transforms as a single unit.
type Pipeline struct {
	stages []Transform
	fitted bool
}

// NewPipeline builds a pipeline over the given stages.
func NewPipeline(stages ...Transform) *Pipeline {
	return &Pipeline{stages: stages}
}

// Standard assembles the default four-stage pipeline: restrict to the
// declared numeric columns, impute missing values with training medians,
// log-damp heavily skewed features and scale by training median and IQR.
func Standard(numeric []string, skewThreshold float64, centering bool) *Pipeline {
	return NewPipeline(
		NewColumnFilter(numeric),
		NewMedianImputer(),
		NewSkewCorrector(skewThreshold),
		NewRobustScaler(centering),
	)
}

// Fit fits every stage in order. Each stage is fitted on the training table
// as transformed by the stages before it, matching what it will see at
// apply time.
func (p *Pipeline) Fit(train *dataset.Table) error {
	_, err := p.FitApply(train)
	return err
}

// FitApply fits the pipeline and returns the transformed training table.
func (p *Pipeline) FitApply(train *dataset.Table) (*dataset.Table, error) {
	cur := train
	for _, stage := range p.stages {
		if err := stage.Fit(cur); err != nil {
			return nil, fmt.Errorf("fit %s: %w", stage.Name(), err)
		}
		next, err := stage.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", stage.Name(), err)
		}
		cur = next
	}
	p.fitted = true
	return cur, nil
}

// Apply runs a table through every fitted stage.
func (p *Pipeline) Apply(t *dataset.Table) (*dataset.Table, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pipeline not fitted")
	}
	cur := t
	for _, stage := range p.stages {
		next, err := stage.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", stage.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Stages exposes the pipeline's transforms in order.
func (p *Pipeline) Stages() []Transform {
	return p.stages
}

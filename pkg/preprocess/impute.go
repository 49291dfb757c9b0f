package preprocess

import (
	"fmt"
	"math"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// MedianImputer replaces missing cells with the per-feature median of the
// training split.
type MedianImputer struct {
	medians map[string]float64
}

// NewMedianImputer builds an unfitted imputer.
func NewMedianImputer() *MedianImputer {
	return &MedianImputer{}
}

func (m *MedianImputer) Name() string { return "median_imputer" }

// Fit learns one median per feature. A feature with no observed values at
// all cannot be imputed and fails with *EmptyColumnError.
func (m *MedianImputer) Fit(t *dataset.Table) error {
	medians := make(map[string]float64, len(t.Columns))
	for i, col := range t.Columns {
		med := median(t.Column(i))
		if math.IsNaN(med) {
			return &EmptyColumnError{Feature: col}
		}
		medians[col] = med
	}
	m.medians = medians
	return nil
}

// Apply fills every missing cell with its feature's training median.
func (m *MedianImputer) Apply(t *dataset.Table) (*dataset.Table, error) {
	if m.medians == nil {
		return nil, fmt.Errorf("imputer not fitted")
	}

	fill := make([]float64, len(t.Columns))
	for i, col := range t.Columns {
		med, ok := m.medians[col]
		if !ok {
			return nil, fmt.Errorf("imputer has no median for column %q", col)
		}
		fill[i] = med
	}

	out := t.Clone()
	for _, row := range out.Rows {
		for i, v := range row {
			if math.IsNaN(v) {
				row[i] = fill[i]
			}
		}
	}
	return out, nil
}

// Medians exposes the fitted imputation values by feature name.
func (m *MedianImputer) Medians() map[string]float64 {
	out := make(map[string]float64, len(m.medians))
	for k, v := range m.medians {
		out[k] = v
	}
	return out
}

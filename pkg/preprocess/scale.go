package preprocess

import (
	"fmt"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// RobustScaler scales each feature by its training interquartile range, with
// an optional median shift. Quartiles resist the outliers that dominate
// flood-traffic features, where a mean/stddev scaler would be dragged off by
// the attack rows themselves.
type RobustScaler struct {
	centering bool
	centers   map[string]float64
	scales    map[string]float64
}

// NewRobustScaler builds a scaler. With centering enabled every feature is
// shifted by its training median before division; disabled, values are only
// divided.
func NewRobustScaler(centering bool) *RobustScaler {
	return &RobustScaler{centering: centering}
}

func (s *RobustScaler) Name() string { return "robust_scaler" }

// Fit learns the per-feature median and IQR of the training split.
func (s *RobustScaler) Fit(t *dataset.Table) error {
	centers := make(map[string]float64, len(t.Columns))
	scales := make(map[string]float64, len(t.Columns))
	for i, col := range t.Columns {
		values := t.Column(i)
		centers[col] = median(values)
		scales[col] = quantile(values, 0.75) - quantile(values, 0.25)
	}
	s.centers = centers
	s.scales = scales
	return nil
}

// Apply rescales every feature with its fitted parameters. A feature whose
// training IQR was zero maps to zero everywhere; a constant feature carries
// no signal either way, and this keeps the output finite.
func (s *RobustScaler) Apply(t *dataset.Table) (*dataset.Table, error) {
	if s.scales == nil {
		return nil, fmt.Errorf("scaler not fitted")
	}

	out := t.Clone()
	for i, col := range out.Columns {
		scale, ok := s.scales[col]
		if !ok {
			return nil, fmt.Errorf("scaler has no parameters for column %q", col)
		}
		center := 0.0
		if s.centering {
			center = s.centers[col]
		}
		for _, row := range out.Rows {
			if scale == 0 {
				row[i] = 0
				continue
			}
			row[i] = (row[i] - center) / scale
		}
	}
	return out, nil
}

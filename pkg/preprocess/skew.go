package preprocess

import (
	"fmt"
	"math"
	"sort"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// DefaultSkewThreshold marks a feature for correction once the magnitude of
// its skewness coefficient passes it.
const DefaultSkewThreshold = 0.75

// SkewCorrector damps heavily right-skewed features with a log1p transform.
// Which features get corrected is decided once, from the training split's
// adjusted Fisher-Pearson skewness, and never revisited.
type SkewCorrector struct {
	threshold float64
	marked    map[string]bool
	fitted    bool
}

// NewSkewCorrector builds a corrector with the given marking threshold.
// A threshold of 0 selects DefaultSkewThreshold.
func NewSkewCorrector(threshold float64) *SkewCorrector {
	if threshold == 0 {
		threshold = DefaultSkewThreshold
	}
	return &SkewCorrector{threshold: threshold}
}

func (s *SkewCorrector) Name() string { return "skew_corrector" }

// Fit marks every feature whose training skewness magnitude exceeds the
// threshold. Features with fewer than three observed values are never
// marked.
func (s *SkewCorrector) Fit(t *dataset.Table) error {
	marked := make(map[string]bool)
	for i, col := range t.Columns {
		if math.Abs(adjustedSkewness(t.Column(i))) > s.threshold {
			marked[col] = true
		}
	}
	s.marked = marked
	s.fitted = true
	return nil
}

// Apply replaces every marked feature's values with log1p(max(x, 0)).
// Negative inputs clamp to zero before the log, which collapses their
// magnitude.
func (s *SkewCorrector) Apply(t *dataset.Table) (*dataset.Table, error) {
	if !s.fitted {
		return nil, fmt.Errorf("skew corrector not fitted")
	}

	out := t.Clone()
	for i, col := range out.Columns {
		if !s.marked[col] {
			continue
		}
		for _, row := range out.Rows {
			v := row[i]
			if v < 0 {
				v = 0
			}
			row[i] = math.Log1p(v)
		}
	}
	return out, nil
}

// Marked returns the corrected feature names in sorted order.
func (s *SkewCorrector) Marked() []string {
	out := make([]string, 0, len(s.marked))
	for col := range s.marked {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// Package classifiers provides supervised multiclass classification models.
package classifiers

import (
	"fmt"
	"sort"
)

// Classifier is the common interface for all multiclass models. Feature
// rows are dense float64 vectors; classes are dense indices assigned by a
// LabelEncoder.
type Classifier interface {
	// Fit trains the model on feature rows x and aligned class indices y.
	Fit(x [][]float64, y []int) error

	// Predict returns the most probable class index for each row.
	Predict(x [][]float64) ([]int, error)

	// PredictProba returns a probability distribution over classes for
	// each row.
	PredictProba(x [][]float64) ([][]float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// LabelEncoder maps class names to dense indices and back. Indices are
// assigned in sorted name order so the mapping never depends on row order.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder builds an encoder over the distinct labels in the input.
func NewLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]bool)
	var classes []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Encode converts labels to class indices. An unknown label is an error:
// a model can only ever be asked about classes it was trained on.
func (e *LabelEncoder) Encode(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := e.index[l]
		if !ok {
			return nil, fmt.Errorf("unknown class label %q", l)
		}
		out[i] = idx
	}
	return out, nil
}

// Decode converts class indices back to labels.
func (e *LabelEncoder) Decode(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(e.classes) {
			return nil, fmt.Errorf("class index %d out of range [0, %d)", idx, len(e.classes))
		}
		out[i] = e.classes[idx]
	}
	return out, nil
}

// Classes returns the encoded class names in index order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// NumClasses returns the number of distinct classes.
func (e *LabelEncoder) NumClasses() int {
	return len(e.classes)
}

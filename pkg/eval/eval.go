// Package eval computes evaluation metrics and feature-importance rankings
// for trained classifiers. Everything here is a pure function of predictions
// and ground truth; nothing mutates the model under evaluation.
package eval

import (
	"fmt"
	"sort"
)

// ClassMetrics holds the per-class scores for one label.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"` // true rows of this class
}

// FeatureImportance is one entry of the importance ranking.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Gain    float64 `json:"gain"`
}

// Report is the evaluation artifact handed to reporting tooling. It is
// never mutated after Evaluate returns it.
type Report struct {
	Accuracy   float64             `json:"accuracy"`
	MacroF1    float64             `json:"macro_f1"`
	PerClass   []ClassMetrics      `json:"per_class"`
	Confusion  *ConfusionMatrix    `json:"confusion"`
	Importance []FeatureImportance `json:"importance,omitempty"`
	Rows       int                 `json:"rows"`
}

// Metrics flattens the report into a metric-name → value mapping.
func (r *Report) Metrics() map[string]float64 {
	out := map[string]float64{
		"accuracy": r.Accuracy,
		"macro_f1": r.MacroF1,
	}
	for _, c := range r.PerClass {
		out["precision_"+c.Class] = c.Precision
		out["recall_"+c.Class] = c.Recall
		out["f1_"+c.Class] = c.F1
	}
	return out
}

// Evaluate scores predicted labels against ground truth. The class set is
// the union of labels seen in either slice, in sorted order.
func Evaluate(truth, pred []string) (*Report, error) {
	cm, err := Confusion(truth, pred)
	if err != nil {
		return nil, err
	}

	perClass := cm.ClassMetrics()
	macro := 0.0
	for _, c := range perClass {
		macro += c.F1
	}
	if len(perClass) > 0 {
		macro /= float64(len(perClass))
	}

	return &Report{
		Accuracy:  cm.Accuracy(),
		MacroF1:   macro,
		PerClass:  perClass,
		Confusion: cm,
		Rows:      len(truth),
	}, nil
}

// RankImportance pairs feature names with the gains a trained ensemble
// reports and sorts them by descending gain. Name ties order
// alphabetically so the ranking is stable across runs.
func RankImportance(columns []string, gains []float64) ([]FeatureImportance, error) {
	if len(columns) != len(gains) {
		return nil, fmt.Errorf("importance: %d columns but %d gains", len(columns), len(gains))
	}
	out := make([]FeatureImportance, len(columns))
	for i, c := range columns {
		out[i] = FeatureImportance{Feature: c, Gain: gains[i]}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Gain != out[j].Gain {
			return out[i].Gain > out[j].Gain
		}
		return out[i].Feature < out[j].Feature
	})
	return out, nil
}

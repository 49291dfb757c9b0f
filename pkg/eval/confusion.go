package eval

import (
	"fmt"
	"sort"
)

// ConfusionMatrix counts predictions per (true class, predicted class)
// pair. Classes index both axes in sorted name order.
type ConfusionMatrix struct {
	Classes []string `json:"classes"`
	Counts  [][]int  `json:"counts"` // Counts[true][pred]
}

// Confusion tallies a confusion matrix from aligned truth and prediction
// slices.
func Confusion(truth, pred []string) (*ConfusionMatrix, error) {
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("confusion: %d truth labels but %d predictions", len(truth), len(pred))
	}
	if len(truth) == 0 {
		return nil, fmt.Errorf("confusion: no rows to score")
	}

	seen := make(map[string]bool)
	for _, l := range truth {
		seen[l] = true
	}
	for _, l := range pred {
		seen[l] = true
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	counts := make([][]int, len(classes))
	for i := range counts {
		counts[i] = make([]int, len(classes))
	}
	for i := range truth {
		counts[index[truth[i]]][index[pred[i]]]++
	}
	return &ConfusionMatrix{Classes: classes, Counts: counts}, nil
}

// Accuracy is the diagonal mass over the total.
func (m *ConfusionMatrix) Accuracy() float64 {
	correct, total := 0, 0
	for i, row := range m.Counts {
		for j, n := range row {
			total += n
			if i == j {
				correct += n
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// ClassMetrics derives precision, recall and F1 for every class. A zero
// denominator scores 0, so classes the model never predicts (or that never
// occur) do not poison the macro average with NaN.
func (m *ConfusionMatrix) ClassMetrics() []ClassMetrics {
	out := make([]ClassMetrics, len(m.Classes))
	for i, class := range m.Classes {
		tp := m.Counts[i][i]
		truePos, predPos := 0, 0
		for j := range m.Classes {
			truePos += m.Counts[i][j]
			predPos += m.Counts[j][i]
		}

		var precision, recall, f1 float64
		if predPos > 0 {
			precision = float64(tp) / float64(predPos)
		}
		if truePos > 0 {
			recall = float64(tp) / float64(truePos)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out[i] = ClassMetrics{
			Class:     class,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   truePos,
		}
	}
	return out
}

package gbdt

import "math"

// probEps floors probabilities inside the log so a confidently wrong
// prediction yields a large finite penalty instead of +Inf.
const probEps = 1e-15

// softmax writes the softmax of scores into probs. The maximum score is
// subtracted first so large raw scores cannot overflow the exponentials.
func softmax(scores, probs []float64) {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}

	var sum float64
	for i, s := range scores {
		p := math.Exp(s - max)
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
}

// logLoss computes the mean multiclass negative log-likelihood of the raw
// score matrix against class indices y.
func logLoss(scores [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}

	probs := make([]float64, len(scores[0]))
	var total float64
	for i, row := range scores {
		softmax(row, probs)
		p := probs[y[i]]
		if p < probEps {
			p = probEps
		}
		total -= math.Log(p)
	}
	return total / float64(len(y))
}

package gbdt

import "math"

// earlyStopper tracks the best validation loss seen so far and decides when
// training should stop. The retained model always corresponds to bestRound,
// never to the stagnated rounds that triggered the stop.
type earlyStopper struct {
	patience  int
	bestLoss  float64
	bestRound int
	sinceBest int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, bestLoss: math.Inf(1)}
}

// observe records the validation loss for a 1-based round and reports
// whether training should stop. Only a strict improvement resets the
// stagnation counter.
func (s *earlyStopper) observe(round int, loss float64) bool {
	if loss < s.bestLoss {
		s.bestLoss = loss
		s.bestRound = round
		s.sinceBest = 0
		return false
	}
	s.sinceBest++
	return s.sinceBest >= s.patience
}

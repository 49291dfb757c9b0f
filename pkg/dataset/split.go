package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// SplitFractions divides a table into the three training splits. The
// fractions must sum to 1.
type SplitFractions struct {
	Train float64
	Valid float64
	Test  float64
}

// DefaultSplit is the 70/15/15 split used when none is configured.
var DefaultSplit = SplitFractions{Train: 0.70, Valid: 0.15, Test: 0.15}

func (f SplitFractions) validate() error {
	for _, v := range []float64{f.Train, f.Valid, f.Test} {
		if v < 0 || v > 1 {
			return fmt.Errorf("split fraction %v out of range [0, 1]", v)
		}
	}
	if sum := f.Train + f.Valid + f.Test; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("split fractions sum to %v, want 1", sum)
	}
	return nil
}

// Split partitions a labeled table into train, validation and test tables by
// stratified sampling: each class is shuffled and divided separately so the
// class mix of every split tracks the mix of the whole table. The partition
// is exhaustive and disjoint, and deterministic for a fixed seed.
func Split(t *Table, frac SplitFractions, seed int64) (train, valid, test *Table, err error) {
	if err := frac.validate(); err != nil {
		return nil, nil, nil, err
	}
	if len(t.Labels) != len(t.Rows) {
		return nil, nil, nil, fmt.Errorf("split: %d labels for %d rows", len(t.Labels), len(t.Rows))
	}

	byClass := make(map[string][]int)
	for i, label := range t.Labels {
		byClass[label] = append(byClass[label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, validIdx, testIdx []int
	for _, class := range t.Classes() {
		idx := byClass[class]
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})

		n := len(idx)
		nTrain := int(math.Round(frac.Train * float64(n)))
		nValid := int(math.Round(frac.Valid * float64(n)))
		if nTrain > n {
			nTrain = n
		}
		if nTrain+nValid > n {
			nValid = n - nTrain
		}
		trainIdx = append(trainIdx, idx[:nTrain]...)
		validIdx = append(validIdx, idx[nTrain:nTrain+nValid]...)
		testIdx = append(testIdx, idx[nTrain+nValid:]...)
	}

	// Tables built class by class would feed the trainer long runs of a
	// single label; shuffle each split once more.
	for _, idx := range [][]int{trainIdx, validIdx, testIdx} {
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
	}

	return t.Select(trainIdx), t.Select(validIdx), t.Select(testIdx), nil
}

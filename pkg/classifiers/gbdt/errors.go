package gbdt

import (
	"errors"
	"fmt"
)

// TrainingDivergedError reports a non-finite training or validation loss.
// The model keeps every round that was completed and measured finite before
// the divergence, so the last good ensemble stays usable.
type TrainingDivergedError struct {
	Round    int     // 1-based round at which the loss went non-finite
	LastLoss float64 // the offending loss value
}

func (e *TrainingDivergedError) Error() string {
	return fmt.Sprintf("training diverged at round %d: loss %v", e.Round, e.LastLoss)
}

// IsDiverged reports whether err is a divergence failure.
func IsDiverged(err error) bool {
	var de *TrainingDivergedError
	return errors.As(err, &de)
}

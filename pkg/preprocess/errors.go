package preprocess

import (
	"errors"
	"fmt"
)

// EmptyColumnError reports a feature with no observed values in the
// training split, which leaves nothing to learn an imputation value from.
type EmptyColumnError struct {
	Feature string
}

func (e *EmptyColumnError) Error() string {
	return fmt.Sprintf("feature %q has no observed values in the training data", e.Feature)
}

// IsEmptyColumn reports whether err is an all-missing feature failure.
func IsEmptyColumn(err error) bool {
	var ec *EmptyColumnError
	return errors.As(err, &ec)
}

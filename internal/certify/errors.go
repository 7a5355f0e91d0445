// ABOUTME: Error taxonomy for genesis and certification requests
// ABOUTME: Missing prompts and degraded audits are designed rejections, not failures

package certify

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrPromptRequired is returned when a certification request carries no prompt.
var ErrPromptRequired = errors.New("prompt required")

// DegradedStateError is returned when an audit scores below the stability
// threshold. Nothing is persisted when it is returned.
type DegradedStateError struct {
	Stability float64
	Threshold float64
}

func (e *DegradedStateError) Error() string {
	return fmt.Sprintf("state degraded: stability %s below threshold %s",
		strconv.FormatFloat(e.Stability, 'g', -1, 64),
		strconv.FormatFloat(e.Threshold, 'g', -1, 64))
}

// IsRejection reports whether err is a designed rejection rather than an
// internal failure.
func IsRejection(err error) bool {
	var degraded *DegradedStateError
	return errors.Is(err, ErrPromptRequired) || errors.As(err, &degraded)
}

package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUndefinedStatistic indicates the inputs make a statistic mathematically
// undefined (e.g. zero variance), as opposed to missing groups.
var ErrUndefinedStatistic = errors.New("statistic undefined")

// ComparisonError indicates a planned comparison cannot run because the
// groups it needs are absent or too small.
type ComparisonError struct {
	Comparison string
	Missing    []string
	Reason     string
}

func (e *ComparisonError) Error() string {
	msg := fmt.Sprintf("%s: insufficient groups", e.Comparison)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing %s)", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// EmptyGroupError indicates a degenerate group feeding a ratio, such as more
// clusters than distinct observations.
type EmptyGroupError struct {
	Group  string
	Reason string
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("empty group %s: %s", e.Group, e.Reason)
}

func undefined(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUndefinedStatistic, fmt.Sprintf(format, args...))
}

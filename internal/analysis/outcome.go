package analysis

import "errors"

// Status tags the result of one statistical comparison.
type Status string

const (
	StatusOK        Status = "ok"
	StatusSkipped   Status = "skipped"
	StatusUndefined Status = "undefined"
)

// Outcome is either a computed result or the reason it could not be computed.
type Outcome[T any] struct {
	Status Status `json:"status" yaml:"status"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Result *T     `json:"result,omitempty" yaml:"result,omitempty"`
}

// OK reports whether a result is present.
func (o Outcome[T]) OK() bool { return o.Status == StatusOK && o.Result != nil }

// outcomeOf converts a computation's return values into a tagged Outcome so a
// failing comparison never aborts the surrounding summary.
func outcomeOf[T any](v T, err error) Outcome[T] {
	if err == nil {
		return Outcome[T]{Status: StatusOK, Result: &v}
	}
	if errors.Is(err, ErrUndefinedStatistic) {
		return Outcome[T]{Status: StatusUndefined, Reason: err.Error()}
	}
	return Outcome[T]{Status: StatusSkipped, Reason: err.Error()}
}

package anysolve

import (
	"errors"
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anypath"
)

// A DivergedError is returned when the adaptive solver
// cannot meet its tolerance.
//
// It records the interval being integrated when the
// failure occurred and the last accepted state.
type DivergedError struct {
	T0     float64
	T1     float64
	Step   float64
	Reason string
	State  []float64
}

func (d *DivergedError) Error() string {
	return fmt.Sprintf("integration diverged on [%g, %g] with step %g: %s",
		d.T0, d.T1, d.Step, d.Reason)
}

// Recover turns a panic raised during back-propagation
// through a solve into an error.
// Only *DivergedError and *anypath.OutOfDomainError
// panics are caught; anything else is re-raised.
//
// It must be deferred directly:
//
//     defer anysolve.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		var diverged *DivergedError
		var domain *anypath.OutOfDomainError
		if errors.As(e, &diverged) || errors.As(e, &domain) {
			*err = e
			return
		}
	}
	panic(r)
}

package anysolve

import (
	"errors"
	"fmt"
	"math"

	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/unixpickle/anydiff"
)

// Solve integrates the dynamics from z0 at times[0] and
// returns the states at every time in times.
//
// The times must be strictly increasing or strictly
// decreasing; decreasing times integrate backward.
// The result is packed as (time, batch, state), and its
// first block is z0 itself.
//
// If the solver cannot meet its tolerance, a
// *DivergedError is returned.
func Solve(dyn Dynamics, z0 anydiff.Res, batch int, times []float64,
	opts Options) (anydiff.Res, error) {
	if err := checkSolve(dyn, z0, batch, times); err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}
	if opts.Adjoint {
		return solveAdjoint(dyn, z0, batch, times, opts)
	}
	f := func(t float64, z anydiff.Res) anydiff.Res {
		return dyn.Eval(t, z, batch)
	}
	states, err := integrate(f, z0, times, opts)
	if err != nil {
		return nil, err
	}
	if len(states) == 1 {
		return states[0], nil
	}
	return anydiff.Concat(states...), nil
}

// Final solves from t0 to t1 and returns only the final
// state.
func Final(dyn Dynamics, z0 anydiff.Res, batch int, t0, t1 float64,
	opts Options) (anydiff.Res, error) {
	res, err := Solve(dyn, z0, batch, []float64{t0, t1}, opts)
	if err != nil {
		return nil, err
	}
	n := z0.Output().Len()
	return anydiff.Slice(res, n, 2*n), nil
}

func checkSolve(dyn Dynamics, z0 anydiff.Res, batch int, times []float64) error {
	if len(times) == 0 {
		return errors.New("no query times")
	}
	if batch <= 0 || z0.Output().Len()%batch != 0 {
		return &anypath.ShapeMismatchError{Op: "solve", Dim: "batch",
			Expected: batch, Actual: z0.Output().Len()}
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("invalid query time %g", t)
		}
		if i > 1 && sign(t-times[i-1]) != sign(times[1]-times[0]) {
			return errors.New("query times are not monotonic")
		}
		if i > 0 && t == times[i-1] {
			return errors.New("query times are not strictly monotonic")
		}
	}
	if d, ok := dyn.(Domainer); ok {
		min, max := d.Domain()
		slack := 1e-9 * math.Max(1, max-min)
		for _, t := range times {
			if t < min-slack || t > max+slack {
				return &anypath.OutOfDomainError{T: t, Min: min, Max: max}
			}
		}
	}
	return nil
}

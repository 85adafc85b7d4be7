package anypath

import "fmt"

// A ShapeMismatchError is returned when inputs have
// inconsistent batch, channel, or time dimensions.
type ShapeMismatchError struct {
	Op       string
	Dim      string
	Expected int
	Actual   int
}

func (s *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: expected %d but got %d", s.Op, s.Dim,
		s.Expected, s.Actual)
}

// An OutOfDomainError is returned when a path is queried
// outside of its interval.
type OutOfDomainError struct {
	T   float64
	Min float64
	Max float64
}

func (o *OutOfDomainError) Error() string {
	return fmt.Sprintf("time %g outside of path domain [%g, %g]", o.T, o.Min, o.Max)
}

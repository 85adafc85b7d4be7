package anysolve

const (
	DefaultRTol     = 1e-5
	DefaultATol     = 1e-7
	DefaultMaxSteps = 100000
	DefaultMinStep  = 1e-10
)

// Options configures the adaptive solver.
//
// Zero fields select defaults.
type Options struct {
	RTol float64
	ATol float64

	// MaxSteps bounds the number of attempted steps for a
	// whole solve.
	MaxSteps int

	// MinStep is the step size below which the solve is
	// considered to have diverged.
	MinStep float64

	// FirstStep, if non-zero, overrides the automatic
	// choice of the first step size.
	FirstStep float64

	// Adjoint selects the adjoint sensitivity method for
	// gradients instead of differentiating through every
	// solver step.
	Adjoint bool
}

// DefaultOptions returns the default tolerances.
func DefaultOptions() Options {
	return Options{RTol: DefaultRTol, ATol: DefaultATol}
}

func (o Options) rtol() float64 {
	if o.RTol == 0 {
		return DefaultRTol
	}
	return o.RTol
}

func (o Options) atol() float64 {
	if o.ATol == 0 {
		return DefaultATol
	}
	return o.ATol
}

func (o Options) maxSteps() int {
	if o.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return o.MaxSteps
}

func (o Options) minStep() float64 {
	if o.MinStep == 0 {
		return DefaultMinStep
	}
	return o.MinStep
}

package anysolve

import (
	"math"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
)

const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 10
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][]float64{
		nil,
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200,
		22.0 / 525, -1.0 / 40}
)

// rhs evaluates a right-hand side at a time and state.
type rhs func(t float64, z anydiff.Res) anydiff.Res

// integrate advances z0 from times[0] through every
// subsequent time and returns the state at each of them.
//
// Steps are truncated so that every requested time is
// hit exactly.
// The times must be strictly monotonic.
func integrate(f rhs, z0 anydiff.Res, times []float64, opts Options) ([]anydiff.Res, error) {
	states := []anydiff.Res{z0}
	if len(times) < 2 {
		return states, nil
	}
	z := z0
	t := times[0]
	k1 := f(t, z)
	h := math.Abs(opts.FirstStep)
	if h == 0 {
		h = initialStep(f, t, z, k1, sign(times[1]-t), math.Abs(times[len(times)-1]-t), opts)
	}

	var steps int
	for _, target := range times[1:] {
		for t != target {
			dir := sign(target - t)
			stepSize := h
			remaining := math.Abs(target - t)
			truncated := stepSize >= remaining
			if truncated {
				stepSize = remaining
			}
			if steps >= opts.maxSteps() {
				return nil, divergedError(t, target, stepSize, "step budget exhausted", z)
			}
			if stepSize < opts.minStep() && !truncated {
				return nil, divergedError(t, target, stepSize, "step size underflow", z)
			}
			steps++

			zNew, k7, ratio := dopriStep(f, t, z, k1, dir*stepSize, opts)
			accepted := ratio <= 1
			factor := stepFactor(ratio)
			if accepted {
				if truncated {
					t = target
				} else {
					t += dir * stepSize
				}
				z, k1 = zNew, k7
			} else {
				factor = math.Min(1, factor)
				if truncated && stepSize < opts.minStep() {
					return nil, divergedError(t, target, stepSize, "step size underflow", z)
				}
			}
			if !(accepted && truncated && stepSize*factor < h) {
				h = stepSize * factor
			}
		}
		states = append(states, z)
	}
	return states, nil
}

// dopriStep takes one Dormand-Prince step of signed size
// h and returns the new state, the derivative at the new
// state, and the ratio of the error estimate to the
// tolerance.
func dopriStep(f rhs, t float64, z, k1 anydiff.Res, h float64,
	opts Options) (anydiff.Res, anydiff.Res, float64) {
	ks := make([]anydiff.Res, 7)
	ks[0] = k1
	for s := 1; s < 6; s++ {
		ks[s] = f(t+dpC[s]*h, combine(z, h, ks, dpA[s]))
	}
	zNew := combine(z, h, ks, dpA[6])
	ks[6] = f(t+h, zNew)

	z0 := anynn.Floats(z.Output())
	z1 := anynn.Floats(zNew.Output())
	errVec := make([]float64, len(z0))
	for s, k := range ks {
		if dpE[s] == 0 {
			continue
		}
		kData := anynn.Floats(k.Output())
		for i, x := range kData {
			errVec[i] += h * dpE[s] * x
		}
	}
	return zNew, ks[6], errorRatio(z0, z1, errVec, opts)
}

// combine computes z + h*sum(coeffs[i]*ks[i]).
func combine(z anydiff.Res, h float64, ks []anydiff.Res, coeffs []float64) anydiff.Res {
	c := z.Output().Creator()
	var sum anydiff.Res
	for i, coeff := range coeffs {
		if coeff == 0 {
			continue
		}
		term := anydiff.Scale(ks[i], c.MakeNumeric(h*coeff))
		if sum == nil {
			sum = term
		} else {
			sum = anydiff.Add(sum, term)
		}
	}
	if sum == nil {
		return z
	}
	return anydiff.Add(z, sum)
}

// errorRatio computes the RMS norm of the error scaled by
// the mixed absolute/relative tolerance.
func errorRatio(z0, z1, errVec []float64, opts Options) float64 {
	if len(errVec) == 0 {
		return 0
	}
	var sum float64
	for i, e := range errVec {
		scale := opts.atol() + opts.rtol()*math.Max(math.Abs(z0[i]), math.Abs(z1[i]))
		r := e / scale
		sum += r * r
	}
	res := math.Sqrt(sum / float64(len(errVec)))
	if math.IsNaN(res) {
		return math.Inf(1)
	}
	return res
}

func stepFactor(ratio float64) float64 {
	if ratio == 0 {
		return maxFactor
	}
	if math.IsInf(ratio, 1) {
		return minFactor
	}
	return math.Max(minFactor, math.Min(maxFactor, safety*math.Pow(ratio, -1.0/5)))
}

// initialStep picks a first step using the heuristic of
// Hairer, Norsett and Wanner.
func initialStep(f rhs, t float64, z, k1 anydiff.Res, dir, span float64,
	opts Options) float64 {
	z0 := anynn.Floats(z.Output())
	f0 := anynn.Floats(k1.Output())
	scale := make([]float64, len(z0))
	for i, x := range z0 {
		scale[i] = opts.atol() + opts.rtol()*math.Abs(x)
	}
	d0 := rmsNorm(z0, scale)
	d1 := rmsNorm(f0, scale)
	var h0 float64
	if d0 < 1e-5 || d1 < 1e-5 {
		h0 = 1e-6
	} else {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	z1 := combine(z, dir*h0, []anydiff.Res{k1}, []float64{1})
	f1 := anynn.Floats(f(t+dir*h0, z1).Output())
	for i := range f1 {
		f1[i] -= f0[i]
	}
	d2 := rmsNorm(f1, scale) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), 1.0/5)
	}
	return math.Min(100*h0, h1)
}

func rmsNorm(x, scale []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for i, v := range x {
		r := v / scale[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(x)))
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func divergedError(t0, t1, step float64, reason string, z anydiff.Res) *DivergedError {
	return &DivergedError{
		T0:     t0,
		T1:     t1,
		Step:   step,
		Reason: reason,
		State:  anynn.Floats(z.Output()),
	}
}

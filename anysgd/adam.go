package anysgd

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	adamDefaultBeta1   = 0.9
	adamDefaultBeta2   = 0.999
	adamDefaultDamping = 1e-8
)

// Adam implements https://arxiv.org/abs/1412.6980 with
// bias-corrected moments.
//
// Moments are created the first time a variable appears,
// so later gradients may contain new variables.
type Adam struct {
	// Decay rates of the first and second moments; 0.9 and
	// 0.999 if unset.
	DecayRate1, DecayRate2 float64

	// Damping added to the second-moment root; 1e-8 if
	// unset.
	Damping float64

	moments   map[*anydiff.Var]*adamMoments
	iteration float64
}

type adamMoments struct {
	first  anyvec.Vector
	second anyvec.Vector
}

// Transform replaces the gradient with the Adam step
// direction, in place.
//
// This is not thread-safe.
func (a *Adam) Transform(realGrad anydiff.Grad) anydiff.Grad {
	if a.moments == nil {
		a.moments = map[*anydiff.Var]*adamMoments{}
	}
	beta1 := valueOrDefault(a.DecayRate1, adamDefaultBeta1)
	beta2 := valueOrDefault(a.DecayRate2, adamDefaultBeta2)
	damping := valueOrDefault(a.Damping, adamDefaultDamping)

	a.iteration++
	correction := math.Sqrt(1-math.Pow(beta2, a.iteration)) /
		(1 - math.Pow(beta1, a.iteration))

	for variable, vec := range realGrad {
		c := vec.Creator()
		sq := vec.Copy()
		anyvec.Pow(sq, c.MakeNumeric(2))

		m, ok := a.moments[variable]
		if !ok {
			m = &adamMoments{first: c.MakeVector(vec.Len()), second: c.MakeVector(vec.Len())}
			a.moments[variable] = m
		}
		decayInto(m.first, vec, beta1)
		decayInto(m.second, sq, beta2)

		denom := m.second.Copy()
		denom.AddScalar(c.MakeNumeric(damping))
		anyvec.Pow(denom, c.MakeNumeric(0.5))

		vec.Set(m.first)
		vec.Scale(c.MakeNumeric(correction))
		vec.Div(denom)
	}
	return realGrad
}

// decayInto computes avg = decay*avg + (1-decay)*x.
func decayInto(avg, x anyvec.Vector, decay float64) {
	c := avg.Creator()
	avg.Scale(c.MakeNumeric(decay))
	scaled := x.Copy()
	scaled.Scale(c.MakeNumeric(1 - decay))
	avg.Add(scaled)
}

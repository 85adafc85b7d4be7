package anysgd

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	rmspropDefaultDecayRate = 0.99
	rmspropDefaultDamping   = 1e-8
)

// RMSProp scales each gradient component by the inverse
// root of a running average of its square.
//
// The running average is seeded with zeros, matching the
// -optimizer rmsprop option of the training commands.
type RMSProp struct {
	// DecayRate of the running average; 0.99 if unset.
	DecayRate float64

	// Damping added before taking the root; 1e-8 if unset.
	Damping float64

	meanSquare anydiff.Grad
}

// Transform transforms the gradient in place.
//
// This is not thread-safe.
func (r *RMSProp) Transform(realGrad anydiff.Grad) anydiff.Grad {
	if r.meanSquare == nil {
		r.meanSquare = anydiff.Grad{}
	}
	decay := valueOrDefault(r.DecayRate, rmspropDefaultDecayRate)
	damping := valueOrDefault(r.Damping, rmspropDefaultDamping)
	for variable, vec := range realGrad {
		sq := vec.Copy()
		anyvec.Pow(sq, sq.Creator().MakeNumeric(2))
		sq.Scale(sq.Creator().MakeNumeric(1 - decay))
		if avg, ok := r.meanSquare[variable]; ok {
			avg.Scale(avg.Creator().MakeNumeric(decay))
			avg.Add(sq)
		} else {
			r.meanSquare[variable] = sq
		}

		root := r.meanSquare[variable].Copy()
		anyvec.Pow(root, root.Creator().MakeNumeric(0.5))
		root.AddScalar(root.Creator().MakeNumeric(damping))
		vec.Div(root)
	}
	return realGrad
}

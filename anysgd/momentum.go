package anysgd

import "github.com/unixpickle/anydiff"

// Momentum accumulates a velocity per variable:
//
//     v := Momentum*v + grad
//
// and returns v in place of the gradient.
type Momentum struct {
	Momentum float64

	velocity anydiff.Grad
}

// Transform transforms the gradient in place.
//
// This is not thread-safe.
func (m *Momentum) Transform(g anydiff.Grad) anydiff.Grad {
	if m.velocity == nil {
		m.velocity = anydiff.Grad{}
	}
	for variable, vec := range g {
		v, ok := m.velocity[variable]
		if !ok {
			m.velocity[variable] = vec.Copy()
			continue
		}
		v.Scale(v.Creator().MakeNumeric(m.Momentum))
		v.Add(vec)
		vec.Set(v)
	}
	return g
}

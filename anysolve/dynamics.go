// Package anysolve integrates neural differential
// equations with an adaptive Runge-Kutta solver.
package anysolve

import (
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/unixpickle/anydiff"
)

// Dynamics defines the right-hand side dz/dt of an
// initial value problem over a batch of states.
type Dynamics interface {
	anynn.Parameterizer

	Eval(t float64, z anydiff.Res, batch int) anydiff.Res
}

// A Domainer is Dynamics that is only defined on a closed
// time interval.
type Domainer interface {
	Domain() (float64, float64)
}

// ODE is the uncontrolled form dz/dt = f(t, z).
type ODE struct {
	Field *VectorField
}

// Eval evaluates the field.
func (o *ODE) Eval(t float64, z anydiff.Res, batch int) anydiff.Res {
	return o.Field.Apply(t, z, batch)
}

// Parameters returns the field's parameters.
func (o *ODE) Parameters() []*anydiff.Var {
	return o.Field.Parameters()
}

// CDE is the controlled form dz/dt = f(t, z) * dX/dt,
// where X is a continuous path with one sequence per
// batch element.
type CDE struct {
	Field *VectorField
	Path  *anypath.Path
}

// Eval multiplies each state's field matrix by the path
// derivative of the matching batch element.
//
// It panics if t is outside of the path's domain.
func (c *CDE) Eval(t float64, z anydiff.Res, batch int) anydiff.Res {
	coeffs := c.Path.Coeffs()
	if coeffs.Batch() != batch {
		panic(fmt.Sprintf("path batch %d does not match state batch %d",
			coeffs.Batch(), batch))
	}
	if coeffs.Channels() != c.Field.Channels {
		panic(fmt.Sprintf("path has %d channels but field expects %d",
			coeffs.Channels(), c.Field.Channels))
	}
	deriv, err := c.Path.Derivative(t)
	if err != nil {
		panic(err)
	}
	channels := coeffs.Channels()
	stateSize := z.Output().Len() / batch
	tiled := make([]float64, 0, batch*stateSize*channels)
	for b := 0; b < batch; b++ {
		row := deriv[b*channels : (b+1)*channels]
		for i := 0; i < stateSize; i++ {
			tiled = append(tiled, row...)
		}
	}
	field := c.Field.Apply(t, z, batch)
	control := anydiff.NewConst(anynn.MakeVector(z.Output().Creator(), tiled))
	return anydiff.SumCols(&anydiff.Matrix{
		Data: anydiff.Mul(field, control),
		Rows: batch * stateSize,
		Cols: channels,
	})
}

// Parameters returns the field's parameters.
func (c *CDE) Parameters() []*anydiff.Var {
	return c.Field.Parameters()
}

// Domain returns the path's interval.
func (c *CDE) Domain() (float64, float64) {
	return c.Path.Interval()
}

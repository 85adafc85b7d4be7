package anysgd

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// CosterGrad computes the gradient of a Coster's scalar
// cost with respect to params.
//
// It returns the gradient and the numerical cost.
func CosterGrad(c Coster, b Batch, params []*anydiff.Var) (anydiff.Grad, float64, error) {
	grad := anydiff.NewGrad(params...)
	cost, err := c.TotalCost(b)
	if err != nil {
		return nil, 0, err
	}
	if cost.Output().Len() != 1 {
		return nil, 0, errors.New("cost must have exactly one component")
	}
	value := float64Of(anyvec.Sum(cost.Output()))
	cr := cost.Output().Creator()
	one := cr.MakeVector(1)
	one.AddScalar(cr.MakeNumeric(1))
	cost.Propagate(one, grad)
	return grad, value, nil
}

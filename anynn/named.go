package anynn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
)

// A NamedParam is a parameter with a stable,
// human-readable name such as "readout.weights".
type NamedParam struct {
	Name  string
	Param *anydiff.Var

	// Shape is the parameter's logical layout, e.g.
	// (out, in) for FC weights.
	// Nil means a flat vector.
	Shape []int
}

// Dims returns Shape, or the flat length if Shape is nil.
func (n NamedParam) Dims() []int {
	if n.Shape != nil {
		return n.Shape
	}
	return []int{n.Param.Vector.Len()}
}

// A NamedParameterizer names its own parameters.
// Composite layers implement it so that names reflect
// their structure.
type NamedParameterizer interface {
	NamedParameters(prefix string) []NamedParam
}

// A ParamNamer gives short names to the parameters
// returned by Parameters(), in the same order.
type ParamNamer interface {
	Parameterizer
	ParamNames() []string
}

// A ParamShaper reports the layout of each parameter
// returned by Parameters(), in the same order.
type ParamShaper interface {
	ParamShapes() [][]int
}

// NamedParameters lists the parameters of obj, prefixing
// each name with prefix.
//
// Parameters of a plain Parameterizer are named by their
// index.
func NamedParameters(prefix string, obj interface{}) []NamedParam {
	switch obj := obj.(type) {
	case NamedParameterizer:
		return obj.NamedParameters(prefix)
	case ParamNamer:
		var res []NamedParam
		names := obj.ParamNames()
		var shapes [][]int
		if s, ok := obj.(ParamShaper); ok {
			shapes = s.ParamShapes()
		}
		for i, p := range obj.Parameters() {
			param := NamedParam{Name: joinName(prefix, names[i]), Param: p}
			if shapes != nil {
				param.Shape = shapes[i]
			}
			res = append(res, param)
		}
		return res
	case Parameterizer:
		var res []NamedParam
		for i, p := range obj.Parameters() {
			res = append(res, NamedParam{Name: joinName(prefix, fmt.Sprint(i)), Param: p})
		}
		return res
	default:
		return nil
	}
}

// Vars extracts the variables from named parameters.
func Vars(named []NamedParam) []*anydiff.Var {
	res := make([]*anydiff.Var, len(named))
	for i, n := range named {
		res[i] = n.Param
	}
	return res
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

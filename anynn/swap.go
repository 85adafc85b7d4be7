package anynn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// SwapAxes transposes the two outer axes of a packed
// (outer, middle, inner) tensor, producing
// (middle, outer, inner).
func SwapAxes(in anydiff.Res, outer, middle, inner int) anydiff.Res {
	if in.Output().Len() != outer*middle*inner {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			outer*middle*inner, in.Output().Len()))
	}
	return &swapRes{
		In:     in,
		Outer:  outer,
		Middle: middle,
		Inner:  inner,
		OutVec: MakeVector(in.Output().Creator(),
			swapAxes(Floats(in.Output()), outer, middle, inner)),
	}
}

func swapAxes(data []float64, outer, middle, inner int) []float64 {
	res := make([]float64, len(data))
	for i := 0; i < outer; i++ {
		for j := 0; j < middle; j++ {
			copy(res[(j*outer+i)*inner:(j*outer+i+1)*inner],
				data[(i*middle+j)*inner:(i*middle+j+1)*inner])
		}
	}
	return res
}

type swapRes struct {
	In     anydiff.Res
	Outer  int
	Middle int
	Inner  int
	OutVec anyvec.Vector
}

func (s *swapRes) Output() anyvec.Vector {
	return s.OutVec
}

func (s *swapRes) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *swapRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	down := swapAxes(Floats(u), s.Middle, s.Outer, s.Inner)
	s.In.Propagate(MakeVector(u.Creator(), down), g)
}

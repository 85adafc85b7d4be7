package anynn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Gate merges the final latent states of a forward and a
// backward pass over the same path:
//
//     PReLU(forward + backward)
//
// A Gate with a nil Act takes the plain average
// (forward + backward) / 2 and has no parameters.
type Gate struct {
	Act *PReLU
}

// NewGate creates a Gate with a fresh PReLU.
func NewGate(c anyvec.Creator) *Gate {
	return &Gate{Act: NewPReLU(c)}
}

// NewMeanGate creates a Gate which averages its inputs.
func NewMeanGate() *Gate {
	return &Gate{}
}

// Mix merges two packed batches of equal shape.
func (g *Gate) Mix(forward, backward anydiff.Res, batch int) anydiff.Res {
	if forward.Output().Len() != backward.Output().Len() {
		panic(fmt.Sprintf("gate: state sizes differ (%d vs %d)",
			forward.Output().Len(), backward.Output().Len()))
	}
	sum := anydiff.Add(forward, backward)
	if g.Act == nil {
		return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(0.5))
	}
	return g.Act.Apply(sum, batch)
}

// Parameters returns the PReLU slope, if any.
func (g *Gate) Parameters() []*anydiff.Var {
	if g.Act == nil {
		return nil
	}
	return g.Act.Parameters()
}

// NamedParameters names the slope "<prefix>.weight".
func (g *Gate) NamedParameters(prefix string) []NamedParam {
	if g.Act == nil {
		return nil
	}
	return NamedParameters(prefix, g.Act)
}

// ConcatRows joins two row-major batches row by row, so
// row i of the result is row i of in1 followed by row i
// of in2.
func ConcatRows(in1, in2 anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(in1, func(in1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(in2, func(in2 anydiff.Res) anydiff.Res {
			cols1 := in1.Output().Len() / batch
			cols2 := in2.Output().Len() / batch
			rows := make([]anydiff.Res, 0, 2*batch)
			for i := 0; i < batch; i++ {
				rows = append(rows,
					anydiff.Slice(in1, i*cols1, (i+1)*cols1),
					anydiff.Slice(in2, i*cols2, (i+1)*cols2))
			}
			return anydiff.Concat(rows...)
		})
	})
}

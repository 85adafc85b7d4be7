package anynn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const preluDefaultSlope = 0.25

func init() {
	var p PReLU
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePReLU)
}

// PReLU is a leaky rectifier with a learned slope for
// negative inputs.
//
// The slope vector is repeated across the input, so a
// single slope is shared by every component.
type PReLU struct {
	Slopes *anydiff.Var
}

// DeserializePReLU deserializes a PReLU.
func DeserializePReLU(d []byte) (*PReLU, error) {
	var s *anyvecsave.S
	if err := serializer.DeserializeAny(d, &s); err != nil {
		return nil, essentials.AddCtx("deserialize PReLU", err)
	}
	return &PReLU{Slopes: anydiff.NewVar(s.Vector)}, nil
}

// NewPReLU creates a PReLU with one shared slope.
func NewPReLU(c anyvec.Creator) *PReLU {
	slope := c.MakeVector(1)
	slope.AddScalar(c.MakeNumeric(preluDefaultSlope))
	return &PReLU{Slopes: anydiff.NewVar(slope)}
}

// Apply applies the layer.
func (p *PReLU) Apply(in anydiff.Res, n int) anydiff.Res {
	slopes := Floats(p.Slopes.Vector)
	if in.Output().Len()%len(slopes) != 0 {
		panic("slope count must divide input size")
	}
	inData := Floats(in.Output())
	out := make([]float64, len(inData))
	for i, x := range inData {
		if x > 0 {
			out[i] = x
		} else {
			out[i] = x * slopes[i%len(slopes)]
		}
	}
	return &preluRes{
		Layer:  p,
		In:     in,
		InData: inData,
		Slopes: slopes,
		OutVec: MakeVector(in.Output().Creator(), out),
		V:      anydiff.MergeVarSets(in.Vars(), anydiff.NewVarSet(p.Slopes)),
	}
}

// Parameters returns the slopes.
func (p *PReLU) Parameters() []*anydiff.Var {
	return []*anydiff.Var{p.Slopes}
}

// ParamNames names the slopes.
func (p *PReLU) ParamNames() []string {
	return []string{"weight"}
}

// SerializerType returns the unique ID used to serialize
// a PReLU with the serializer package.
func (p *PReLU) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anynn.PReLU"
}

// Serialize serializes the layer.
func (p *PReLU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(&anyvecsave.S{Vector: p.Slopes.Vector})
}

type preluRes struct {
	Layer  *PReLU
	In     anydiff.Res
	InData []float64
	Slopes []float64
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (p *preluRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *preluRes) Vars() anydiff.VarSet {
	return p.V
}

func (p *preluRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	c := u.Creator()
	upstream := Floats(u)
	if slopeGrad, ok := g[p.Layer.Slopes]; ok {
		sg := make([]float64, len(p.Slopes))
		for i, x := range p.InData {
			if x <= 0 {
				sg[i%len(sg)] += x * upstream[i]
			}
		}
		slopeGrad.Add(MakeVector(c, sg))
	}
	if g.Intersects(p.In.Vars()) {
		for i, x := range p.InData {
			if x <= 0 {
				upstream[i] *= p.Slopes[i%len(p.Slopes)]
			}
		}
		p.In.Propagate(MakeVector(c, upstream), g)
	}
}

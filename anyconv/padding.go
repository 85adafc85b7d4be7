package anyconv

import (
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Padding
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePadding)
}

// A Padding layer adds zeros to both ends of input
// tensors along the time axis.
type Padding struct {
	InputWidth int
	InputDepth int

	PaddingLeft  int
	PaddingRight int
}

// DeserializePadding deserializes a Padding.
func DeserializePadding(d []byte) (*Padding, error) {
	var inW, inD, pL, pR serializer.Int
	err := serializer.DeserializeAny(d, &inW, &inD, &pL, &pR)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Padding", err)
	}
	return &Padding{
		InputWidth:   int(inW),
		InputDepth:   int(inD),
		PaddingLeft:  int(pL),
		PaddingRight: int(pR),
	}, nil
}

// OutputWidth returns the padded width.
func (p *Padding) OutputWidth() int {
	return p.InputWidth + p.PaddingLeft + p.PaddingRight
}

// Apply applies the layer.
func (p *Padding) Apply(in anydiff.Res, batch int) anydiff.Res {
	inSize := p.InputWidth * p.InputDepth
	if in.Output().Len() != batch*inSize {
		panic("incorrect input size")
	}
	inData := anynn.Floats(in.Output())
	outSize := p.OutputWidth() * p.InputDepth
	out := make([]float64, batch*outSize)
	offset := p.PaddingLeft * p.InputDepth
	for b := 0; b < batch; b++ {
		copy(out[b*outSize+offset:], inData[b*inSize:(b+1)*inSize])
	}
	return &paddingRes{
		Layer:  p,
		Batch:  batch,
		In:     in,
		OutVec: anynn.MakeVector(in.Output().Creator(), out),
	}
}

// SerializerType returns the unique ID used to serialize
// a Padding with the serializer package.
func (p *Padding) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anyconv.Padding"
}

// Serialize serializes a Padding.
func (p *Padding) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(p.InputWidth),
		serializer.Int(p.InputDepth),
		serializer.Int(p.PaddingLeft),
		serializer.Int(p.PaddingRight),
	)
}

type paddingRes struct {
	Layer  *Padding
	Batch  int
	In     anydiff.Res
	OutVec anyvec.Vector
}

func (p *paddingRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *paddingRes) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *paddingRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := anynn.Floats(u)
	inSize := p.Layer.InputWidth * p.Layer.InputDepth
	outSize := p.Layer.OutputWidth() * p.Layer.InputDepth
	offset := p.Layer.PaddingLeft * p.Layer.InputDepth
	down := make([]float64, p.Batch*inSize)
	for b := 0; b < p.Batch; b++ {
		copy(down[b*inSize:(b+1)*inSize], upstream[b*outSize+offset:])
	}
	p.In.Propagate(anynn.MakeVector(u.Creator(), down), g)
}

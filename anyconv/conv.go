// Package anyconv provides one-dimensional convolutional
// layers for compressing signals along the time axis.
package anyconv

import (
	"errors"
	"math"
	"math/rand"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv)
}

// Conv is a convolutional layer over time.
//
// All input and output tensors are packed as
// (batch, time, depth), i.e. row-major depth-minor.
type Conv struct {
	FilterCount int
	FilterWidth int
	Stride      int

	InputWidth int
	InputDepth int

	// Filters is packed as (filter, offset, depth).
	Filters *anydiff.Var
	Biases  *anydiff.Var
}

// DeserializeConv deserialize a Conv.
func DeserializeConv(d []byte) (*Conv, error) {
	var inW, inD, fW, s serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inW, &inD, &fW, &s, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv", err)
	}
	return &Conv{
		FilterCount: f.Vector.Len() / int(fW*inD),
		FilterWidth: int(fW),
		Stride:      int(s),
		InputWidth:  int(inW),
		InputDepth:  int(inD),
		Filters:     anydiff.NewVar(f.Vector),
		Biases:      anydiff.NewVar(b.Vector),
	}, nil
}

// InitRand draws filters and biases uniformly from
// [-1/sqrt(fanIn), 1/sqrt(fanIn)], fanIn being the size of
// one receptive field.
// A nil rng uses the global source.
func (c *Conv) InitRand(cr anyvec.Creator, rng *rand.Rand) {
	c.InitZero(cr)
	bound := 1 / math.Sqrt(float64(c.FilterWidth*c.InputDepth))
	for _, v := range c.Parameters() {
		anynn.InitUniform(v.Vector, bound, rng)
	}
}

// InitZero initializes the layer to zero.
func (c *Conv) InitZero(cr anyvec.Creator) {
	filterSize := c.FilterWidth * c.InputDepth
	c.Filters = anydiff.NewVar(cr.MakeVector(filterSize * c.FilterCount))
	c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
}

// OutputWidth returns the width of the output tensor.
func (c *Conv) OutputWidth() int {
	return c.im2row().NumX()
}

// OutputDepth returns the depth of the output tensor.
func (c *Conv) OutputDepth() int {
	return c.FilterCount
}

// Apply applies the layer to a batch of input tensors.
//
// The layer must have been initialized.
func (c *Conv) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	if c.Filters == nil || c.Biases == nil {
		panic("uninitialized Conv")
	}
	if in.Output().Len() != batchSize*c.InputWidth*c.InputDepth {
		panic("incorrect input size")
	}
	if c.OutputWidth() < 1 {
		panic("input narrower than filter")
	}
	return newConvRes(c, in, batchSize)
}

// Parameters returns the layer's parameters.
// The filters come before the biases in the resulting
// slice.
//
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if c.Filters == nil || c.Biases == nil {
		return nil
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// ParamNames names the filters and biases.
func (c *Conv) ParamNames() []string {
	return []string{"weight", "bias"}
}

// ParamShapes gives (filter, offset, depth) for the
// filters and (filter) for the biases.
func (c *Conv) ParamShapes() [][]int {
	return [][]int{{c.FilterCount, c.FilterWidth, c.InputDepth}, {c.FilterCount}}
}

// SerializerType returns the unique ID used to serialize
// a Conv with the serializer package.
func (c *Conv) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anyconv.Conv"
}

// Serialize serializes the layer.
//
// If the layer was not yet initialized, this fails.
func (c *Conv) Serialize() ([]byte, error) {
	if c.Filters == nil || c.Biases == nil {
		return nil, errors.New("cannot serialize uninitialized Conv")
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputWidth),
		serializer.Int(c.InputDepth),
		serializer.Int(c.FilterWidth),
		serializer.Int(c.Stride),
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: c.Biases.Vector},
	)
}

func (c *Conv) im2row() *Im2Row {
	return &Im2Row{
		WindowWidth: c.FilterWidth,
		Stride:      c.Stride,
		InputWidth:  c.InputWidth,
		InputDepth:  c.InputDepth,
	}
}

var _ anynn.ParamNamer = (*Conv)(nil)
var _ anynn.ParamShaper = (*Conv)(nil)

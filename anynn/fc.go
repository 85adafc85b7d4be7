package anynn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f FC
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFC)
}

// FC is a dense layer y = W*x + b with W stored row-major
// as OutCount rows of InCount.
//
// Rows of the input are transformed independently, so a
// (batch*time, channels) input gives a pointwise
// projection over time.
type FC struct {
	InCount  int
	OutCount int
	Weights  *anydiff.Var
	Biases   *anydiff.Var
}

// NewFC creates an FC with weights and biases drawn
// uniformly from [-1/sqrt(in), 1/sqrt(in)] using rng.
// A nil rng uses the global source.
func NewFC(c anyvec.Creator, rng *rand.Rand, in, out int) *FC {
	res := NewFCZero(c, in, out)
	bound := 1 / math.Sqrt(float64(in))
	for _, v := range res.Parameters() {
		InitUniform(v.Vector, bound, rng)
	}
	return res
}

// InitUniform fills v with samples from [-bound, bound].
func InitUniform(v anyvec.Vector, bound float64, rng *rand.Rand) {
	c := v.Creator()
	anyvec.Rand(v, anyvec.Uniform, rng)
	v.Scale(c.MakeNumeric(2 * bound))
	v.AddScalar(c.MakeNumeric(-bound))
}

// NewFCZero creates an FC whose output is always zero.
func NewFCZero(c anyvec.Creator, in, out int) *FC {
	return &FC{
		InCount:  in,
		OutCount: out,
		Weights:  anydiff.NewVar(c.MakeVector(in * out)),
		Biases:   anydiff.NewVar(c.MakeVector(out)),
	}
}

// DeserializeFC deserializes an FC.
func DeserializeFC(d []byte) (*FC, error) {
	var in, out serializer.Int
	var weights, biases *anyvecsave.S
	if err := serializer.DeserializeAny(d, &in, &out, &weights, &biases); err != nil {
		return nil, essentials.AddCtx("deserialize FC", err)
	}
	if weights.Vector.Len() != int(in*out) || biases.Vector.Len() != int(out) {
		return nil, fmt.Errorf("deserialize FC: bad parameter sizes for %dx%d", out, in)
	}
	return &FC{
		InCount:  int(in),
		OutCount: int(out),
		Weights:  anydiff.NewVar(weights.Vector),
		Biases:   anydiff.NewVar(biases.Vector),
	}, nil
}

// Apply transforms each of the batch rows.
func (f *FC) Apply(in anydiff.Res, batch int) anydiff.Res {
	if n := in.Output().Len(); n != batch*f.InCount {
		panic(fmt.Sprintf("fc: input length should be %d, but got %d", batch*f.InCount, n))
	}
	product := anydiff.MatMul(false, true,
		&anydiff.Matrix{Data: in, Rows: batch, Cols: f.InCount},
		&anydiff.Matrix{Data: f.Weights, Rows: f.OutCount, Cols: f.InCount})
	return anydiff.AddRepeated(product.Data, f.Biases)
}

// Parameters returns the weights and the biases.
func (f *FC) Parameters() []*anydiff.Var {
	return []*anydiff.Var{f.Weights, f.Biases}
}

// ParamNames names the weights and biases.
func (f *FC) ParamNames() []string {
	return []string{"weights", "biases"}
}

// ParamShapes gives (out, in) for the weights and (out)
// for the biases.
func (f *FC) ParamShapes() [][]int {
	return [][]int{{f.OutCount, f.InCount}, {f.OutCount}}
}

// SerializerType returns the unique ID used to serialize
// an FC with the serializer package.
func (f *FC) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anynn.FC"
}

// Serialize serializes the FC.
func (f *FC) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(f.InCount),
		serializer.Int(f.OutCount),
		&anyvecsave.S{Vector: f.Weights.Vector},
		&anyvecsave.S{Vector: f.Biases.Vector},
	)
}

// NewMLP stacks hidden layers of width hiddenSize with act
// between consecutive FCs.
// The last FC maps to out and has no activation after it.
func NewMLP(c anyvec.Creator, rng *rand.Rand, in, out, hiddenSize, hidden int,
	act Layer) Net {
	var res Net
	width := in
	for i := 0; i < hidden; i++ {
		res = append(res, NewFC(c, rng, width, hiddenSize), act)
		width = hiddenSize
	}
	return append(res, NewFC(c, rng, width, out))
}

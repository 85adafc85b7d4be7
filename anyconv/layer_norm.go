package anyconv

import (
	"math"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultLNStabilizer = 1e-5

func init() {
	var l LayerNorm
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLayerNorm)
}

// LayerNorm normalizes every time step of its input over
// the depth axis, then applies a learned affine transform
// per depth component.
type LayerNorm struct {
	Depth int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	// Stabilizer is added to variances to keep them from
	// being 0.
	//
	// If it is 0, a default is used.
	Stabilizer float64
}

// DeserializeLayerNorm deserializes a LayerNorm.
func DeserializeLayerNorm(d []byte) (*LayerNorm, error) {
	var s, b *anyvecsave.S
	var stab serializer.Float64
	if err := serializer.DeserializeAny(d, &s, &b, &stab); err != nil {
		return nil, essentials.AddCtx("deserialize LayerNorm", err)
	}
	return &LayerNorm{
		Depth:      s.Vector.Len(),
		Scalers:    anydiff.NewVar(s.Vector),
		Biases:     anydiff.NewVar(b.Vector),
		Stabilizer: float64(stab),
	}, nil
}

// NewLayerNorm creates an identity-initialized LayerNorm.
func NewLayerNorm(c anyvec.Creator, depth int) *LayerNorm {
	oneScaler := c.MakeVector(depth)
	oneScaler.AddScalar(c.MakeNumeric(1))
	return &LayerNorm{
		Depth:   depth,
		Scalers: anydiff.NewVar(oneScaler),
		Biases:  anydiff.NewVar(c.MakeVector(depth)),
	}
}

// Apply applies the layer to some inputs.
func (l *LayerNorm) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len()%l.Depth != 0 {
		panic("invalid input size")
	}
	return anydiff.ScaleAddRepeated(normalizeRows(in, l.Depth, l.stabilizer()),
		l.Scalers, l.Biases)
}

// Parameters returns a slice containing the scales and
// biases, in that order.
func (l *LayerNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{l.Scalers, l.Biases}
}

// ParamNames names the scales and biases.
func (l *LayerNorm) ParamNames() []string {
	return []string{"weight", "bias"}
}

// SerializerType returns the unique ID used to serialize
// a LayerNorm with the serializer package.
func (l *LayerNorm) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anyconv.LayerNorm"
}

// Serialize serializes the layer.
func (l *LayerNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: l.Scalers.Vector},
		&anyvecsave.S{Vector: l.Biases.Vector},
		serializer.Float64(l.Stabilizer),
	)
}

func (l *LayerNorm) stabilizer() float64 {
	if l.Stabilizer == 0 {
		return defaultLNStabilizer
	}
	return l.Stabilizer
}

type normalizeRes struct {
	In       anydiff.Res
	Cols     int
	Normed   []float64
	InvStdev []float64
	OutVec   anyvec.Vector
}

// normalizeRows gives every row of a row-major matrix
// zero mean and unit variance.
func normalizeRows(in anydiff.Res, cols int, stabilizer float64) anydiff.Res {
	data := anynn.Floats(in.Output())
	rows := len(data) / cols
	invStdev := make([]float64, rows)
	for r := 0; r < rows; r++ {
		row := data[r*cols : (r+1)*cols]
		var mean, sqMean float64
		for _, x := range row {
			mean += x
			sqMean += x * x
		}
		mean /= float64(cols)
		sqMean /= float64(cols)
		invStdev[r] = 1 / math.Sqrt(math.Max(sqMean-mean*mean, 0)+stabilizer)
		for i, x := range row {
			row[i] = (x - mean) * invStdev[r]
		}
	}
	return &normalizeRes{
		In:       in,
		Cols:     cols,
		Normed:   data,
		InvStdev: invStdev,
		OutVec:   anynn.MakeVector(in.Output().Creator(), append([]float64{}, data...)),
	}
}

func (n *normalizeRes) Output() anyvec.Vector {
	return n.OutVec
}

func (n *normalizeRes) Vars() anydiff.VarSet {
	return n.In.Vars()
}

func (n *normalizeRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	upstream := anynn.Floats(u)
	cols := n.Cols
	for r, inv := range n.InvStdev {
		up := upstream[r*cols : (r+1)*cols]
		normed := n.Normed[r*cols : (r+1)*cols]
		var meanUp, meanProd float64
		for i, x := range up {
			meanUp += x
			meanProd += x * normed[i]
		}
		meanUp /= float64(cols)
		meanProd /= float64(cols)
		for i := range up {
			up[i] = inv * (up[i] - meanUp - normed[i]*meanProd)
		}
	}
	n.In.Propagate(anynn.MakeVector(u.Creator(), upstream), g)
}

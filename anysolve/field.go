package anysolve

import (
	"math/rand"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var v VectorField
	serializer.RegisterTypedDeserializer(v.SerializerType(), DeserializeVectorField)
}

// FieldConfig describes the network behind a
// VectorField.
type FieldConfig struct {
	StateSize int

	// Channels is the channel count of the driving path.
	// It is 1 for an uncontrolled ODE.
	Channels int

	HiddenSize int
	Hidden     int
	Activation anynn.Activation

	// Time feeds the current time into the network
	// alongside the state.
	Time bool

	// Squash bounds the output with a final tanh.
	Squash bool

	// Rand seeds the weights; nil uses the global source.
	Rand *rand.Rand
}

// A VectorField maps a time and a batch of latent states
// to a StateSize x Channels matrix per state.
//
// Outputs are packed as (batch, state, channel).
type VectorField struct {
	StateSize int
	Channels  int
	Time      bool
	Net       anynn.Net
}

// NewVectorField creates a randomly initialized field.
func NewVectorField(c anyvec.Creator, cfg FieldConfig) *VectorField {
	inSize := cfg.StateSize
	if cfg.Time {
		inSize++
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = 1
	}
	net := anynn.NewMLP(c, cfg.Rand, inSize, cfg.StateSize*channels, cfg.HiddenSize,
		cfg.Hidden, cfg.Activation)
	if cfg.Squash {
		net = append(net, anynn.Tanh)
	}
	return &VectorField{
		StateSize: cfg.StateSize,
		Channels:  channels,
		Time:      cfg.Time,
		Net:       net,
	}
}

// DeserializeVectorField deserializes a VectorField.
func DeserializeVectorField(d []byte) (*VectorField, error) {
	var res VectorField
	var stateSize, channels serializer.Int
	err := serializer.DeserializeAny(d, &stateSize, &channels, &res.Time, &res.Net)
	if err != nil {
		return nil, essentials.AddCtx("deserialize VectorField", err)
	}
	res.StateSize = int(stateSize)
	res.Channels = int(channels)
	return &res, nil
}

// Apply evaluates the field at time t for a batch of
// states.
func (v *VectorField) Apply(t float64, z anydiff.Res, batch int) anydiff.Res {
	in := z
	if v.Time {
		c := z.Output().Creator()
		timeVec := c.MakeVector(batch)
		timeVec.AddScalar(c.MakeNumeric(t))
		in = anynn.ConcatRows(anydiff.NewConst(timeVec), z, batch)
	}
	return v.Net.Apply(in, batch)
}

// Parameters returns the network's parameters.
func (v *VectorField) Parameters() []*anydiff.Var {
	return v.Net.Parameters()
}

// NamedParameters names the network's parameters.
func (v *VectorField) NamedParameters(prefix string) []anynn.NamedParam {
	return v.Net.NamedParameters(prefix)
}

// SerializerType returns the unique ID used to serialize
// a VectorField with the serializer package.
func (v *VectorField) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anysolve.VectorField"
}

// Serialize serializes the field.
func (v *VectorField) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(v.StateSize),
		serializer.Int(v.Channels),
		v.Time,
		v.Net,
	)
}

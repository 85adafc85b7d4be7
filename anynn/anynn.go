// Package anynn provides the differentiable building
// blocks shared by the encoder and generator models.
package anynn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer has learnable variables, returned in a
// fixed order.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// A Layer maps a packed batch of equal-length rows to
// another packed batch with the same number of rows.
//
// Layers that act pointwise over time are applied with
// batchSize = batch*time.
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// Net chains layers.
type Net []Layer

// DeserializeNet deserializes a Net.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, 0, len(slice))
	for i, x := range slice {
		layer, ok := x.(Layer)
		if !ok {
			return nil, fmt.Errorf("deserialize Net: entry %d is a %T", i, x)
		}
		res = append(res, layer)
	}
	return res, nil
}

// Apply runs the layers in order.
// An empty Net is the identity.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters returns every layer's parameters, first
// layer first.
func (n Net) Parameters() []*anydiff.Var {
	return Vars(n.NamedParameters(""))
}

// NamedParameters names each parameter after the index of
// the layer that owns it.
func (n Net) NamedParameters(prefix string) []NamedParam {
	var res []NamedParam
	for i, x := range n {
		res = append(res, NamedParameters(joinName(prefix, fmt.Sprint(i)), x)...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anynn.Net"
}

// Serialize serializes the layers; every layer must be a
// serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	slice := make([]serializer.Serializer, len(n))
	for i, x := range n {
		s, ok := x.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("serialize Net: layer %d (%T) is not serializable", i, x)
		}
		slice[i] = s
	}
	return serializer.SerializeSlice(slice)
}

package anyconv

import (
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var r Residual
	serializer.RegisterTypedDeserializer(r.SerializerType(), DeserializeResidual)
}

// Residual is a featurizer block computing
//
//     Layer(x) + Projection(x)
//
// where a nil Projection is the identity. A 1x1 conv
// projection is used when a block changes the channel
// count.
type Residual struct {
	Layer      anynn.Layer
	Projection anynn.Layer
}

// DeserializeResidual deserializes a Residual.
func DeserializeResidual(d []byte) (*Residual, error) {
	var layer anynn.Layer
	var proj anynn.Net
	if err := serializer.DeserializeAny(d, &layer, &proj); err != nil {
		return nil, essentials.AddCtx("deserialize Residual", err)
	}
	res := &Residual{Layer: layer}
	switch len(proj) {
	case 0:
	case 1:
		res.Projection = proj[0]
	default:
		return nil, fmt.Errorf("deserialize Residual: %d projection layers", len(proj))
	}
	return res, nil
}

// Apply applies the block.
func (r *Residual) Apply(in anydiff.Res, batch int) anydiff.Res {
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		shortcut := in
		if r.Projection != nil {
			shortcut = r.Projection.Apply(in, batch)
		}
		return anydiff.Add(r.Layer.Apply(in, batch), shortcut)
	})
}

// Parameters returns the mapping's parameters, then the
// projection's.
func (r *Residual) Parameters() []*anydiff.Var {
	return anynn.Vars(r.NamedParameters(""))
}

// NamedParameters names the parameters of the mapping
// "layer" and those of the projection "proj".
func (r *Residual) NamedParameters(prefix string) []anynn.NamedParam {
	res := anynn.NamedParameters(joinPrefix(prefix, "layer"), r.Layer)
	if r.Projection != nil {
		res = append(res, anynn.NamedParameters(joinPrefix(prefix, "proj"),
			r.Projection)...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Residual with the serializer package.
func (r *Residual) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anyconv.Residual"
}

// Serialize serializes the Residual.
func (r *Residual) Serialize() ([]byte, error) {
	var projLayer anynn.Net
	if r.Projection != nil {
		projLayer = anynn.Net{r.Projection}
	}
	return serializer.SerializeAny(r.Layer, projLayer)
}

func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

package anynn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// Activation is an elementwise nonlinearity.
type Activation int

const (
	Tanh Activation = iota
	ReLU
	Sigmoid
)

var activationNames = []string{"tanh", "relu", "sigmoid"}

// DeserializeActivation reads an Activation back from its
// name.
func DeserializeActivation(d []byte) (Activation, error) {
	for i, name := range activationNames {
		if string(d) == name {
			return Activation(i), nil
		}
	}
	return 0, fmt.Errorf("deserialize Activation: unknown name %q", d)
}

// Apply applies the nonlinearity to every component.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case ReLU:
		return anydiff.ClipPos(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	}
	panic("unknown activation: " + a.String())
}

func (a Activation) String() string {
	if a < 0 || int(a) >= len(activationNames) {
		return fmt.Sprintf("Activation(%d)", int(a))
	}
	return activationNames[a]
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anynn.Activation"
}

// Serialize stores the activation's name.
func (a Activation) Serialize() ([]byte, error) {
	if a < 0 || int(a) >= len(activationNames) {
		return nil, fmt.Errorf("serialize Activation: unknown value %d", int(a))
	}
	return []byte(activationNames[a]), nil
}

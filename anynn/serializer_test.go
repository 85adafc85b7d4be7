package anynn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	acts := []Activation{Tanh, ReLU, Sigmoid}
	data, err := serializer.SerializeAny(acts[0], acts[1], acts[2])
	if err != nil {
		t.Fatal(err)
	}
	newActs := make([]Activation, 3)
	err = serializer.DeserializeAny(data, &newActs[0], &newActs[1], &newActs[2])
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(acts, newActs) {
		t.Errorf("expected %v but got %v", acts, newActs)
	}
	if _, err := DeserializeActivation([]byte("swish")); err == nil {
		t.Error("expected error for unknown activation")
	}
}

func TestFCSerialize(t *testing.T) {
	fc := NewFC(anyvec64.DefaultCreator{}, nil, 7, 5)
	data, err := serializer.SerializeAny(fc)
	if err != nil {
		t.Fatal(err)
	}
	var newFC *FC
	if err := serializer.DeserializeAny(data, &newFC); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fc, newFC) {
		t.Fatal("incorrect result")
	}
}

func TestPReLUSerialize(t *testing.T) {
	p := NewPReLU(anyvec64.DefaultCreator{})
	data, err := serializer.SerializeAny(p)
	if err != nil {
		t.Fatal(err)
	}
	var newP *PReLU
	if err := serializer.DeserializeAny(data, &newP); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, newP) {
		t.Fatal("incorrect result")
	}
}

func TestNetSerialize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	net := Net{NewFC(c, nil, 3, 4), Tanh, NewPReLU(c), &Debug{Name: "hidden"}}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}

func TestNamedParameters(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	net := Net{NewFC(c, nil, 3, 4), NewPReLU(c), NewFC(c, nil, 4, 2)}
	named := NamedParameters("initial", net)
	expected := []string{"initial.0.weights", "initial.0.biases", "initial.1.weight",
		"initial.2.weights", "initial.2.biases"}
	if len(named) != len(expected) {
		t.Fatalf("expected %d names but got %d", len(expected), len(named))
	}
	params := net.Parameters()
	for i, n := range named {
		if n.Name != expected[i] {
			t.Errorf("param %d: expected %s but got %s", i, expected[i], n.Name)
		}
		if n.Param != params[i] {
			t.Errorf("param %d: wrong variable", i)
		}
	}

	gate := NewGate(c)
	named = NamedParameters("gate", gate)
	if len(named) != 1 || named[0].Name != "gate.weight" {
		t.Errorf("unexpected gate names: %v", named)
	}
}

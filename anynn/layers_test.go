package anynn

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestMSE(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	desired := anydiff.NewConst(MakeVector(c, []float64{1, 0.5, 2, 3, -1, 2}))
	actual := anydiff.NewConst(MakeVector(c, []float64{-1, -2, -3, -2, -3, -1}))
	out := Floats(MSE{}.Cost(desired, actual, 2).Output())
	expected := []float64{11 + 3.0/4, 12 + 2.0/3}
	for i, x := range expected {
		if math.Abs(out[i]-x) > 1e-9 {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
	mean := Floats(MeanCost(MSE{}, desired, actual, 2).Output())
	if math.Abs(mean[0]-(expected[0]+expected[1])/2) > 1e-9 {
		t.Errorf("unexpected mean cost: %f", mean[0])
	}
}

func TestChannelMSE(t *testing.T) {
	desired := []float64{1, 2, 3, 4}
	actual := []float64{0, 2, 1, 6}
	res := ChannelMSE(desired, actual, 2, []float64{1, 2})
	if math.Abs(res[0]-2.5) > 1e-9 || math.Abs(res[1]-0.5) > 1e-9 {
		t.Errorf("unexpected result: %v", res)
	}
}

func TestPReLUOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	p := NewPReLU(c)
	in := anydiff.NewConst(MakeVector(c, []float64{-2, 3, 0, -0.5}))
	out := Floats(p.Apply(in, 1).Output())
	expected := []float64{-0.5, 3, 0, -0.125}
	for i, x := range expected {
		if math.Abs(out[i]-x) > 1e-9 {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
}

func TestPReLUProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	p := NewPReLU(c)
	in := anydiff.NewVar(c.MakeVector(12))
	anyvec.Rand(in.Vector, anyvec.Normal, nil)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return p.Apply(in, 3)
		},
		V: []*anydiff.Var{in, p.Slopes},
	}
	checker.FullCheck(t)
}

func TestSwapAxes(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in := anydiff.NewVar(MakeVector(c, []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}))
	out := Floats(SwapAxes(in, 2, 3, 2).Output())
	expected := []float64{1, 2, 7, 8, 3, 4, 9, 10, 5, 6, 11, 12}
	for i, x := range expected {
		if out[i] != x {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return SwapAxes(anydiff.Square(in), 2, 3, 2)
		},
		V: []*anydiff.Var{in},
	}
	checker.FullCheck(t)
}

func TestMLPShape(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	net := NewMLP(c, nil, 3, 5, 8, 2, Tanh)
	if len(net) != 5 {
		t.Fatalf("expected 5 layers but got %d", len(net))
	}
	in := anydiff.NewConst(c.MakeVector(4 * 3))
	if n := net.Apply(in, 4).Output().Len(); n != 20 {
		t.Errorf("expected 20 outputs but got %d", n)
	}
}

func TestConcatRows(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in1 := anydiff.NewConst(MakeVector(c, []float64{1, 2}))
	in2 := anydiff.NewConst(MakeVector(c, []float64{3, 4, 5, 6}))
	out := Floats(ConcatRows(in1, in2, 2).Output())
	expected := []float64{1, 3, 4, 2, 5, 6}
	for i, x := range expected {
		if out[i] != x {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
}

func TestGateMix(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	gate := NewGate(c)
	fwd := anydiff.NewConst(MakeVector(c, []float64{1, -2}))
	back := anydiff.NewConst(MakeVector(c, []float64{0.5, -2}))
	out := Floats(gate.Mix(fwd, back, 1).Output())
	expected := []float64{1.5, -1}
	for i, x := range expected {
		if math.Abs(out[i]-x) > 1e-12 {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
}

func TestGateMean(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	gate := NewMeanGate()
	fwd := anydiff.NewConst(MakeVector(c, []float64{1, -2}))
	back := anydiff.NewConst(MakeVector(c, []float64{0.5, -2}))
	out := Floats(gate.Mix(fwd, back, 1).Output())
	expected := []float64{0.75, -2}
	for i, x := range expected {
		if math.Abs(out[i]-x) > 1e-12 {
			t.Errorf("component %d: expected %f but got %f", i, x, out[i])
		}
	}
	if len(gate.Parameters()) != 0 || len(gate.NamedParameters("gate")) != 0 {
		t.Error("mean gate should have no parameters")
	}
}

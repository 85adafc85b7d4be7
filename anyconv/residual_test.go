package anyconv

import (
	"math"
	"reflect"
	"testing"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestResidualSerialize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := &Residual{
		Layer:      anynn.NewFC(c, nil, 3, 2),
		Projection: anynn.NewFC(c, nil, 3, 2),
	}
	data, err := serializer.SerializeAny(r)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *Residual
	if err = serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(newLayer, r) {
		t.Fatal("layers differ")
	}

	r = &Residual{
		Layer: anynn.NewFC(c, nil, 3, 2),
	}
	data, err = serializer.SerializeAny(r)
	if err != nil {
		t.Fatal(err)
	}
	if err = serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(newLayer, r) {
		t.Fatal("layers differ")
	}
}

func TestResidualNames(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	r := &Residual{
		Layer:      anynn.Net{NewLayerNorm(c, 3), anynn.NewFC(c, nil, 3, 3)},
		Projection: anynn.NewFC(c, nil, 3, 3),
	}
	var names []string
	for _, p := range r.NamedParameters("block") {
		names = append(names, p.Name)
	}
	expected := []string{
		"block.layer.0.weight", "block.layer.0.bias",
		"block.layer.1.weights", "block.layer.1.biases",
		"block.proj.weights", "block.proj.biases",
	}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("expected %v but got %v", expected, names)
	}
}

func TestLayerNormOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	l := NewLayerNorm(c, 4)
	in := c.MakeVector(4 * 5)
	anyvec.Rand(in, anyvec.Normal, nil)
	out := anynn.Floats(l.Apply(anydiff.NewConst(in), 1).Output())
	for row := 0; row < 5; row++ {
		var mean, sq float64
		for _, x := range out[row*4 : (row+1)*4] {
			mean += x / 4
			sq += x * x / 4
		}
		if math.Abs(mean) > 1e-8 {
			t.Errorf("row %d: mean %f", row, mean)
		}
		if math.Abs(sq-mean*mean-1) > 1e-3 {
			t.Errorf("row %d: variance %f", row, sq-mean*mean)
		}
	}
}

func TestLayerNormProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	l := NewLayerNorm(c, 3)
	anyvec.Rand(l.Scalers.Vector, anyvec.Normal, nil)
	anyvec.Rand(l.Biases.Vector, anyvec.Normal, nil)
	in := anydiff.NewVar(c.MakeVector(3 * 4))
	anyvec.Rand(in.Vector, anyvec.Normal, nil)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return l.Apply(in, 2)
		},
		V: []*anydiff.Var{in, l.Scalers, l.Biases},
	}
	checker.FullCheck(t)
}

func TestLayerNormSerialize(t *testing.T) {
	l := NewLayerNorm(anyvec64.DefaultCreator{}, 5)
	l.Stabilizer = 1e-4
	data, err := serializer.SerializeAny(l)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *LayerNorm
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(newLayer, l) {
		t.Fatal("layers differ")
	}
}

func TestFeaturizerShape(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := FeaturizerConfig{
		InputWidth: 32,
		InputDepth: 3,
		KernelSize: 5,
		StemDepths: []int{4, 6},
		ResBlocks:  2,
		ResHidden:  3,
		ResKernel:  3,
		HeadDepths: []int{5},
		OutDepth:   2,
	}
	f, err := NewFeaturizer(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f.OutputWidth != 4 || f.OutputDepth != 2 {
		t.Fatalf("unexpected output shape %dx%d", f.OutputWidth, f.OutputDepth)
	}
	in := c.MakeVector(2 * 32 * 3)
	anyvec.Rand(in, anyvec.Normal, nil)
	out := f.Apply(anydiff.NewConst(in), 2)
	if out.Output().Len() != 2*f.OutputSize() {
		t.Errorf("expected %d outputs but got %d", 2*f.OutputSize(), out.Output().Len())
	}
	if len(f.NamedParameters("scaler")) != len(f.Parameters()) {
		t.Error("named parameters do not cover all parameters")
	}
}

func TestFeaturizerDefaultWidth(t *testing.T) {
	cfg := DefaultFeaturizerConfig(2048, 32)
	cfg.ResBlocks = 0
	f, err := NewFeaturizer(anyvec64.DefaultCreator{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if f.OutputWidth != 128 || f.OutputDepth != 32 {
		t.Errorf("unexpected output shape %dx%d", f.OutputWidth, f.OutputDepth)
	}
}

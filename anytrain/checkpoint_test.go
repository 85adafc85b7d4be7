package anytrain

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/JasonZHM/magic-microlensing/anyconv"
	"github.com/JasonZHM/magic-microlensing/anyenc"
	"github.com/JasonZHM/magic-microlensing/anygen"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testGeneratorConfig(dir string) Config {
	cfg := DefaultGeneratorConfig()
	cfg.SaveDir = filepath.Join(dir, "experiments")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.Latent = 4
	cfg.Units = 8
	cfg.GenLayers = 1
	return cfg
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := testGeneratorConfig(t.TempDir())
	c := anyvec64.DefaultCreator{}
	gen, err := anygen.New(c, cfg.GeneratorConfig(3, 2))
	if err != nil {
		t.Fatal(err)
	}
	path := cfg.CheckpointPath(17)
	err = SaveCheckpoint(path, &Checkpoint{
		Config: cfg,
		Epoch:  3,
		Step:   42,
		State:  Snapshot(anynn.NamedParameters("", gen)),
	})
	if err != nil {
		t.Fatal(err)
	}
	ckpt, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if ckpt.Epoch != 3 || ckpt.Step != 42 {
		t.Errorf("unexpected counters %d/%d", ckpt.Epoch, ckpt.Step)
	}
	if ckpt.Config != cfg {
		t.Errorf("config mismatch: %+v", ckpt.Config)
	}
	for i, entry := range Snapshot(anynn.NamedParameters("", gen)) {
		if !reflect.DeepEqual(ckpt.State[i].Shape, entry.Shape) {
			t.Errorf("%s: shape %v was saved as %v", entry.Name, entry.Shape,
				ckpt.State[i].Shape)
		}
	}
	if s := ckpt.State[0].Shape; len(s) != 2 || s[0] != cfg.Units || s[1] != 3 {
		t.Errorf("unexpected first layer shape %v", s)
	}

	loaded, warning, err := LoadGenerator(ckpt, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if warning != nil {
		t.Errorf("unexpected warning: %v", warning)
	}
	labels := anydiff.NewConst(anynn.MakeVector(c, []float64{0.5, -1, 2, 0.1, 0.2, -0.3}))
	times := []float64{0, 0.5, 1.5}
	expected, err := gen.Apply(labels, 2, times)
	if err != nil {
		t.Fatal(err)
	}
	actual, err := loaded.Apply(labels, 2, times)
	if err != nil {
		t.Fatal(err)
	}
	e, a := anynn.Floats(expected.Output()), anynn.Floats(actual.Output())
	for i, x := range e {
		if a[i] != x {
			t.Fatalf("output %d: expected %f but got %f", i, x, a[i])
		}
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.ckpt")); err == nil {
		t.Error("expected error")
	}
}

func testNamed() []anynn.NamedParam {
	c := anyvec64.DefaultCreator{}
	return []anynn.NamedParam{
		{Name: "a.weights", Param: anydiff.NewVar(anynn.MakeVector(c, []float64{1, 2, 3}))},
		{Name: "a.biases", Param: anydiff.NewVar(anynn.MakeVector(c, []float64{4}))},
	}
}

func TestApplyStateSuperset(t *testing.T) {
	named := testNamed()
	warning, err := ApplyState(named, StateDict{
		{Name: "a.weights", Values: []float64{-1, -2, -3}},
		{Name: "a.biases", Values: []float64{-4}},
		{Name: "b.weights", Values: []float64{7, 7}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if warning == nil || len(warning.Unknown) != 1 || warning.Unknown[0] != "b.weights" ||
		len(warning.Missing) != 0 {
		t.Fatalf("unexpected warning: %v", warning)
	}
	if x := anynn.Floats(named[0].Param.Vector); x[0] != -1 || x[2] != -3 {
		t.Errorf("weights not loaded: %v", x)
	}
	if x := anynn.Floats(named[1].Param.Vector); x[0] != -4 {
		t.Errorf("biases not loaded: %v", x)
	}
}

func TestApplyStateSubset(t *testing.T) {
	named := testNamed()
	warning, err := ApplyState(named, StateDict{
		{Name: "a.weights", Values: []float64{-1, -2, -3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if warning == nil || len(warning.Missing) != 1 || warning.Missing[0] != "a.biases" {
		t.Fatalf("unexpected warning: %v", warning)
	}
	if x := anynn.Floats(named[1].Param.Vector); x[0] != 4 {
		t.Errorf("missing parameter changed: %v", x)
	}
}

func TestApplyStateShapeMismatch(t *testing.T) {
	named := testNamed()
	_, err := ApplyState(named, StateDict{
		{Name: "a.biases", Values: []float64{-4}},
		{Name: "a.weights", Values: []float64{-1, -2}},
	})
	var shapeErr *ParamShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ParamShapeError but got %v", err)
	}
	if shapeErr.Name != "a.weights" || !reflect.DeepEqual(shapeErr.Expected, []int{3}) ||
		!reflect.DeepEqual(shapeErr.Actual, []int{2}) {
		t.Errorf("unexpected error %+v", shapeErr)
	}
	if x := anynn.Floats(named[1].Param.Vector); x[0] != 4 {
		t.Error("parameters modified by failed load")
	}
}

func TestApplyStateLayoutMismatch(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	saved := &anyconv.Conv{FilterCount: 2, FilterWidth: 3, InputDepth: 4, InputWidth: 8}
	saved.InitRand(c, nil)
	model := &anyconv.Conv{FilterCount: 2, FilterWidth: 4, InputDepth: 3, InputWidth: 8}
	model.InitZero(c)

	named := anynn.NamedParameters("conv", model)
	_, err := ApplyState(named, Snapshot(anynn.NamedParameters("conv", saved)))
	var shapeErr *ParamShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ParamShapeError but got %v", err)
	}
	if shapeErr.Name != "conv.weight" || !reflect.DeepEqual(shapeErr.Expected, []int{2, 4, 3}) ||
		!reflect.DeepEqual(shapeErr.Actual, []int{2, 3, 4}) {
		t.Errorf("unexpected error %+v", shapeErr)
	}
	for _, n := range named {
		for _, x := range anynn.Floats(n.Param.Vector) {
			if x != 0 {
				t.Fatalf("%s modified by failed load", n.Name)
			}
		}
	}
}

func TestSeededModels(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	gen := testGeneratorConfig(t.TempDir())
	enc := DefaultEncoderConfig()
	enc.Encoder = anyenc.KindCDE
	enc.Latent = 4
	enc.HiddenSize = 8
	enc.Hidden = 1
	enc.Bidirectional = true

	build := func(seed int64) (StateDict, StateDict) {
		gen.Seed = seed
		enc.Seed = seed
		g, err := anygen.New(c, gen.GeneratorConfig(3, 2))
		if err != nil {
			t.Fatal(err)
		}
		e, err := anyenc.New(c, enc.EncoderConfig(5, 2))
		if err != nil {
			t.Fatal(err)
		}
		return Snapshot(anynn.NamedParameters("", g)), Snapshot(anynn.NamedParameters("", e))
	}
	g1, e1 := build(7)
	g2, e2 := build(7)
	if !reflect.DeepEqual(g1, g2) {
		t.Error("generators built from the same seed differ")
	}
	if !reflect.DeepEqual(e1, e2) {
		t.Error("encoders built from the same seed differ")
	}
	g3, _ := build(8)
	if reflect.DeepEqual(g1, g3) {
		t.Error("different seeds gave identical generators")
	}
}

package anyenc

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/JasonZHM/magic-microlensing/anyconv"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testConfig(kind string) Config {
	cfg := DefaultConfig(3, 2)
	cfg.Kind = kind
	cfg.Latent = 4
	cfg.GridPoints = 32
	cfg.HiddenSize = 8
	cfg.Hidden = 1
	cfg.Featurizer = &anyconv.FeaturizerConfig{
		KernelSize: 5,
		StemDepths: []int{6},
		ResBlocks:  1,
		ResHidden:  3,
		ResKernel:  3,
		HeadDepths: []int{5},
		OutDepth:   2,
	}
	return cfg
}

func testCoeffs(t *testing.T, batch, length, channels int, irregular bool) *anypath.Coeffs {
	var seqs []anypath.Sequence
	times := make([]float64, length)
	for i := range times {
		times[i] = float64(i) / float64(length-1)
		if irregular && i > 0 {
			times[i] = times[i-1] + 0.1 + rand.Float64()
		}
	}
	for b := 0; b < batch; b++ {
		values := make([][]float64, length)
		for i := range values {
			values[i] = make([]float64, channels)
			for j := range values[i] {
				values[i][j] = math.Sin(times[i]*float64(j+1)) + 0.1*rand.NormFloat64()
			}
		}
		seqs = append(seqs, anypath.Sequence{Times: times, Values: values})
	}
	coeffs, err := anypath.BuildCoeffs(seqs)
	if err != nil {
		t.Fatal(err)
	}
	return coeffs
}

func TestEncoderOutputShape(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, kind := range []string{KindConv, KindCDE} {
		for _, bidir := range []bool{false, true} {
			if kind == KindConv && bidir {
				continue
			}
			cfg := testConfig(kind)
			cfg.Bidirectional = bidir
			enc, err := New(c, cfg)
			if err != nil {
				t.Fatal(err)
			}
			for _, n := range []int{1, 3} {
				out, err := enc.Apply(testCoeffs(t, n, 6, 3, kind == KindCDE))
				if err != nil {
					t.Fatalf("%s: %v", kind, err)
				}
				if out.Output().Len() != n*2 {
					t.Errorf("%s (bidirectional=%v) batch %d: got %d outputs",
						kind, bidir, n, out.Output().Len())
				}
			}
		}
	}
}

func TestEncoderChannelMismatch(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, kind := range []string{KindConv, KindCDE} {
		enc, err := New(c, testConfig(kind))
		if err != nil {
			t.Fatal(err)
		}
		_, err = enc.Apply(testCoeffs(t, 2, 5, 2, false))
		var shapeErr *anypath.ShapeMismatchError
		if !errors.As(err, &shapeErr) {
			t.Errorf("%s: expected shape mismatch but got %v", kind, err)
		}
	}
}

func TestEncoderMerge(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	counts := map[string]int{}
	for _, merge := range []string{"", MergeMean, MergeGate} {
		cfg := testConfig(KindCDE)
		cfg.Bidirectional = true
		cfg.Merge = merge
		enc, err := New(c, cfg)
		if err != nil {
			t.Fatal(err)
		}
		counts[merge] = len(enc.Parameters())
	}
	if counts[""] != counts[MergeMean] {
		t.Errorf("default merge has %d parameters, mean has %d", counts[""], counts[MergeMean])
	}
	if counts[MergeGate] != counts[MergeMean]+1 {
		t.Errorf("gate merge should add one slope: %d vs %d", counts[MergeGate],
			counts[MergeMean])
	}

	cfg := testConfig(KindCDE)
	cfg.Bidirectional = true
	cfg.Merge = "max"
	if _, err := New(c, cfg); err == nil {
		t.Error("expected error for unknown merge")
	}
}

func TestEncoderParamGroups(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, kind := range []string{KindConv, KindCDE} {
		cfg := testConfig(kind)
		cfg.Bidirectional = kind == KindCDE
		enc, err := New(c, cfg)
		if err != nil {
			t.Fatal(err)
		}
		groups := enc.ParamGroups()
		total := len(groups.Initial) + len(groups.Field) + len(groups.Readout)
		if total != len(enc.Parameters()) {
			t.Errorf("%s: groups cover %d of %d parameters", kind, total,
				len(enc.Parameters()))
		}
		seen := map[string]bool{}
		for _, p := range enc.NamedParameters("") {
			if seen[p.Name] {
				t.Errorf("%s: duplicate name %s", kind, p.Name)
			}
			seen[p.Name] = true
		}
		if !seen["initial.0.weights"] || !seen["readout.weights"] {
			t.Errorf("%s: missing expected names in %v", kind, seen)
		}
	}
}

func TestCDEEncoderGradients(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cfg := testConfig(KindCDE)
	cfg.Solver = anysolve.Options{RTol: 1e-9, ATol: 1e-9}
	enc := NewCDEEncoder(c, cfg)
	coeffs := testCoeffs(t, 2, 4, 3, true)

	directGrad := encoderGrad(t, enc, coeffs)
	enc.Solver.Adjoint = true
	adjointGrad := encoderGrad(t, enc, coeffs)

	for _, p := range enc.Parameters() {
		expected := anynn.Floats(directGrad[p])
		actual := anynn.Floats(adjointGrad[p])
		for i, x := range expected {
			if math.Abs(x-actual[i]) > 1e-3*math.Max(1, math.Abs(x)) {
				t.Fatalf("gradient mismatch: direct %f adjoint %f", x, actual[i])
			}
		}
	}
}

func encoderGrad(t *testing.T, enc Encoder, coeffs *anypath.Coeffs) anydiff.Grad {
	out, err := enc.Apply(coeffs)
	if err != nil {
		t.Fatal(err)
	}
	grad := anydiff.NewGrad(enc.Parameters()...)
	cost := anydiff.Sum(anydiff.Square(out))
	one := anynn.MakeVector(out.Output().Creator(), []float64{1})
	cost.Propagate(one, grad)
	return grad
}

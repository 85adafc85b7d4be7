package anypath

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func randomSequence(times []float64, channels int) Sequence {
	values := make([][]float64, len(times))
	for i := range values {
		values[i] = make([]float64, channels)
		for j := range values[i] {
			values[i][j] = rand.NormFloat64()
		}
	}
	return Sequence{Times: times, Values: values}
}

func irregularTimes(n int) []float64 {
	res := make([]float64, n)
	t := rand.Float64()
	for i := range res {
		res[i] = t
		t += 0.1 + rand.Float64()
	}
	return res
}

func TestPathExactAtKnots(t *testing.T) {
	times := irregularTimes(13)
	seqs := []Sequence{randomSequence(times, 3), randomSequence(times, 3)}
	coeffs, err := BuildCoeffs(seqs)
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	for i, knot := range times {
		actual, err := path.Evaluate(knot)
		if err != nil {
			t.Fatal(err)
		}
		for b, seq := range seqs {
			for ch, expected := range seq.Values[i] {
				a := actual[b*3+ch]
				if math.Abs(a-expected) > 1e-9 {
					t.Errorf("knot %d batch %d channel %d: expected %f but got %f",
						i, b, ch, expected, a)
				}
			}
		}
	}
}

func TestPathDerivativeContinuity(t *testing.T) {
	times := irregularTimes(9)
	coeffs, err := BuildCoeffs([]Sequence{randomSequence(times, 2)})
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	const eps = 1e-7
	for i := 1; i < len(times)-1; i++ {
		left, _ := path.Derivative(times[i] - eps)
		right, _ := path.Derivative(times[i] + eps)
		leftVal, _ := path.Evaluate(times[i] - eps)
		rightVal, _ := path.Evaluate(times[i] + eps)
		for ch := range left {
			if math.Abs(left[ch]-right[ch]) > 1e-4 {
				t.Errorf("knot %d: derivative jumps from %f to %f", i, left[ch], right[ch])
			}
			if math.Abs(leftVal[ch]-rightVal[ch]) > 1e-4 {
				t.Errorf("knot %d: value jumps from %f to %f", i, leftVal[ch], rightVal[ch])
			}
		}
	}
}

func TestPathDerivativeNumeric(t *testing.T) {
	times := irregularTimes(6)
	coeffs, err := BuildCoeffs([]Sequence{randomSequence(times, 2)})
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	const eps = 1e-6
	for _, tm := range path.Linspace(17)[1:16] {
		deriv, _ := path.Derivative(tm)
		v1, _ := path.Evaluate(tm - eps)
		v2, _ := path.Evaluate(tm + eps)
		for ch := range deriv {
			approx := (v2[ch] - v1[ch]) / (2 * eps)
			if math.Abs(approx-deriv[ch]) > 1e-3 {
				t.Errorf("time %f: expected derivative %f but got %f", tm, approx, deriv[ch])
			}
		}
	}
}

func TestPathBackwardDifferences(t *testing.T) {
	seq := Sequence{
		Times:  []float64{0, 1, 3},
		Values: [][]float64{{0}, {2}, {3}},
	}
	coeffs, err := BuildCoeffs([]Sequence{seq})
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	for _, x := range []struct {
		T        float64
		Expected float64
	}{{0, 2}, {1, 2}, {3, 0.5}} {
		d, err := path.Derivative(x.T)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(d[0]-x.Expected) > 1e-9 {
			t.Errorf("time %f: expected slope %f but got %f", x.T, x.Expected, d[0])
		}
	}
}

func TestPathOutOfDomain(t *testing.T) {
	coeffs, err := BuildCoeffs([]Sequence{randomSequence([]float64{1, 2, 3}, 1)})
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	for _, tm := range []float64{0.5, 3.5, math.NaN()} {
		_, err := path.Evaluate(tm)
		var domainErr *OutOfDomainError
		if !errors.As(err, &domainErr) {
			t.Errorf("time %f: expected OutOfDomainError but got %v", tm, err)
		}
	}
	if _, err := path.Evaluate(3); err != nil {
		t.Error(err)
	}
}

func TestPathEvaluateGrid(t *testing.T) {
	times := irregularTimes(5)
	seqs := []Sequence{randomSequence(times, 2), randomSequence(times, 2),
		randomSequence(times, 2)}
	coeffs, err := BuildCoeffs(seqs)
	if err != nil {
		t.Fatal(err)
	}
	path := NewPath(coeffs)
	grid := path.Linspace(7)
	actual, err := path.EvaluateGrid(grid)
	if err != nil {
		t.Fatal(err)
	}
	if len(actual) != 3*7*2 {
		t.Fatalf("expected %d values but got %d", 3*7*2, len(actual))
	}
	for i, tm := range grid {
		expected, _ := path.Evaluate(tm)
		for b := 0; b < 3; b++ {
			for ch := 0; ch < 2; ch++ {
				a := actual[(b*7+i)*2+ch]
				if a != expected[b*2+ch] {
					t.Errorf("grid %d batch %d channel %d: expected %f but got %f",
						i, b, ch, expected[b*2+ch], a)
				}
			}
		}
	}
}

func TestBuildCoeffsShapeMismatch(t *testing.T) {
	times := []float64{0, 1, 2}
	_, err := BuildCoeffs([]Sequence{randomSequence(times, 2), randomSequence(times, 3)})
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError but got %v", err)
	}
	_, err = BuildCoeffs([]Sequence{randomSequence([]float64{0}, 2)})
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError but got %v", err)
	}
	if _, err := BuildCoeffs([]Sequence{randomSequence([]float64{0, 1, 1}, 2)}); err == nil {
		t.Error("expected error for repeated time")
	}
}

func TestCoeffsSliceConcat(t *testing.T) {
	times := irregularTimes(4)
	seqs := []Sequence{randomSequence(times, 2), randomSequence(times, 2),
		randomSequence(times, 2)}
	coeffs, err := BuildCoeffs(seqs)
	if err != nil {
		t.Fatal(err)
	}
	joined, err := ConcatCoeffs(coeffs.Slice(2, 3), coeffs.Slice(0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if joined.Batch() != 3 {
		t.Fatalf("expected batch 3 but got %d", joined.Batch())
	}
	expected, _ := BuildCoeffs([]Sequence{seqs[2], seqs[0], seqs[1]})
	tm := (times[1] + times[2]) / 2
	v1, _ := NewPath(joined).Evaluate(tm)
	v2, _ := NewPath(expected).Evaluate(tm)
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Errorf("value %d: expected %f but got %f", i, v2[i], v1[i])
		}
	}

	other, _ := BuildCoeffs([]Sequence{randomSequence(irregularTimes(4), 2)})
	if _, err := ConcatCoeffs(coeffs, other); err == nil {
		t.Error("expected error for different knots")
	}
}

// Package anypath turns discretely sampled, multi-channel
// signals into continuous paths.
package anypath

import (
	"errors"
	"fmt"
)

// A Sequence is one sampled signal.
//
// Values[i] is the channel vector observed at Times[i].
type Sequence struct {
	Times  []float64
	Values [][]float64
}

// IndexSequence creates a Sequence whose knot times are
// the sample indices 0, 1, ..., len(values)-1.
//
// This is how irregularly sampled signals are batched:
// the real observation time is stored as a channel and
// every sequence shares the same knot grid.
func IndexSequence(values [][]float64) Sequence {
	times := make([]float64, len(values))
	for i := range times {
		times[i] = float64(i)
	}
	return Sequence{Times: times, Values: values}
}

// Len returns the number of samples.
func (s Sequence) Len() int {
	return len(s.Times)
}

// Channels returns the channel count, or 0 if the
// sequence is empty.
func (s Sequence) Channels() int {
	if len(s.Values) == 0 {
		return 0
	}
	return len(s.Values[0])
}

// Coeffs stores the piecewise cubic Hermite coefficients
// for a batch of sequences sharing the same knot times.
//
// On segment i, channel value is
//
//     a + b*f + c*f^2 + d*f^3
//
// where f = t - times[i].
//
// A Coeffs is immutable once built.
type Coeffs struct {
	times    []float64
	batch    int
	channels int

	// Packed as (batch, segment, channel).
	a, b, c, d []float64
}

// BuildCoeffs computes Hermite cubic coefficients with
// backward differences for a batch of sequences.
//
// The derivative estimate at knot i is the backward
// difference (x[i]-x[i-1])/(t[i]-t[i-1]); the first knot
// uses the first forward difference.
//
// All sequences must share the same knot times and
// channel count, and have at least two strictly
// increasing times.
func BuildCoeffs(seqs []Sequence) (*Coeffs, error) {
	if len(seqs) == 0 {
		return nil, errors.New("build coefficients: empty batch")
	}
	times := seqs[0].Times
	if len(times) < 2 {
		return nil, &ShapeMismatchError{Op: "build coefficients", Dim: "time",
			Expected: 2, Actual: len(times)}
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("build coefficients: times not strictly "+
				"increasing at index %d", i)
		}
	}
	channels := seqs[0].Channels()
	for _, seq := range seqs {
		if err := checkSequence(seq, times, channels); err != nil {
			return nil, err
		}
	}

	numSeg := len(times) - 1
	res := &Coeffs{
		times:    append([]float64{}, times...),
		batch:    len(seqs),
		channels: channels,
		a:        make([]float64, len(seqs)*numSeg*channels),
		b:        make([]float64, len(seqs)*numSeg*channels),
		c:        make([]float64, len(seqs)*numSeg*channels),
		d:        make([]float64, len(seqs)*numSeg*channels),
	}
	slopes := make([]float64, len(times))
	for bIdx, seq := range seqs {
		for ch := 0; ch < channels; ch++ {
			for i := 1; i < len(times); i++ {
				slopes[i] = (seq.Values[i][ch] - seq.Values[i-1][ch]) / (times[i] - times[i-1])
			}
			slopes[0] = slopes[1]
			for i := 0; i < numSeg; i++ {
				h := times[i+1] - times[i]
				delta := (seq.Values[i+1][ch] - seq.Values[i][ch]) / h
				idx := (bIdx*numSeg+i)*channels + ch
				res.a[idx] = seq.Values[i][ch]
				res.b[idx] = slopes[i]
				res.c[idx] = (3*delta - 2*slopes[i] - slopes[i+1]) / h
				res.d[idx] = (slopes[i] + slopes[i+1] - 2*delta) / (h * h)
			}
		}
	}
	return res, nil
}

func checkSequence(seq Sequence, times []float64, channels int) error {
	if len(seq.Times) != len(times) {
		return &ShapeMismatchError{Op: "build coefficients", Dim: "time",
			Expected: len(times), Actual: len(seq.Times)}
	}
	for i, t := range seq.Times {
		if t != times[i] {
			return fmt.Errorf("build coefficients: knot time %d differs across batch", i)
		}
	}
	if len(seq.Values) != len(times) {
		return &ShapeMismatchError{Op: "build coefficients", Dim: "value rows",
			Expected: len(times), Actual: len(seq.Values)}
	}
	for _, row := range seq.Values {
		if len(row) != channels {
			return &ShapeMismatchError{Op: "build coefficients", Dim: "channel",
				Expected: channels, Actual: len(row)}
		}
	}
	return nil
}

// Batch returns the number of sequences.
func (c *Coeffs) Batch() int {
	return c.batch
}

// Channels returns the channel count.
func (c *Coeffs) Channels() int {
	return c.channels
}

// Segments returns the number of cubic segments.
func (c *Coeffs) Segments() int {
	return len(c.times) - 1
}

// Times returns a copy of the knot times.
func (c *Coeffs) Times() []float64 {
	return append([]float64{}, c.times...)
}

// Interval returns the first and last knot time.
func (c *Coeffs) Interval() (float64, float64) {
	return c.times[0], c.times[len(c.times)-1]
}

// SameKnots checks if two coefficient sets can be joined
// into one batch.
func (c *Coeffs) SameKnots(other *Coeffs) bool {
	if c.channels != other.channels || len(c.times) != len(other.times) {
		return false
	}
	for i, t := range c.times {
		if other.times[i] != t {
			return false
		}
	}
	return true
}

// Slice copies the sequences with indices in [i, j).
func (c *Coeffs) Slice(i, j int) *Coeffs {
	if i < 0 || j > c.batch || i > j {
		panic("slice bounds out of range")
	}
	size := c.Segments() * c.channels
	cp := func(x []float64) []float64 {
		return append([]float64{}, x[i*size:j*size]...)
	}
	return &Coeffs{
		times:    c.times,
		batch:    j - i,
		channels: c.channels,
		a:        cp(c.a),
		b:        cp(c.b),
		c:        cp(c.c),
		d:        cp(c.d),
	}
}

// ConcatCoeffs joins batches with identical knots.
func ConcatCoeffs(cs ...*Coeffs) (*Coeffs, error) {
	if len(cs) == 0 {
		return nil, errors.New("concat coefficients: nothing to join")
	}
	res := &Coeffs{times: cs[0].times, channels: cs[0].channels}
	for _, x := range cs {
		if !x.SameKnots(cs[0]) {
			if x.channels != cs[0].channels {
				return nil, &ShapeMismatchError{Op: "concat coefficients", Dim: "channel",
					Expected: cs[0].channels, Actual: x.channels}
			}
			return nil, &ShapeMismatchError{Op: "concat coefficients", Dim: "knot",
				Expected: len(cs[0].times), Actual: len(x.times)}
		}
		res.batch += x.batch
		res.a = append(res.a, x.a...)
		res.b = append(res.b, x.b...)
		res.c = append(res.c, x.c...)
		res.d = append(res.d, x.d...)
	}
	return res, nil
}

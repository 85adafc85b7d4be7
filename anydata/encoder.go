package anydata

import (
	"fmt"
	"math"

	"github.com/JasonZHM/magic-microlensing/anyenc"
	"github.com/JasonZHM/magic-microlensing/anypath"
)

// EncoderOptions controls how a Dataset is turned into
// encoder samples.
type EncoderOptions struct {
	// TestSize is the number of trailing samples held out
	// for evaluation.
	TestSize int

	// Depth is the log-signature truncation depth.
	Depth int

	// EvenWindow and RandWindow are the log-signature
	// window lengths for even and irregular light curves.
	EvenWindow int
	RandWindow int

	// Magnitudes are mapped to (m - FluxCenter) / FluxScale
	// and times to t / TimeScale.
	FluxCenter float64
	FluxScale  float64
	TimeScale  float64
}

// DefaultEncoderOptions returns the standard
// preprocessing.
func DefaultEncoderOptions() EncoderOptions {
	return EncoderOptions{
		TestSize:   1024,
		Depth:      3,
		EvenWindow: 10,
		RandWindow: 2,
		FluxCenter: 14.5,
		FluxScale:  0.2,
		TimeScale:  200,
	}
}

// EncoderData is the preprocessed encoder dataset.
type EncoderData struct {
	// Train mixes even and irregular samples.
	Train anyenc.SampleList

	TestEven anyenc.SampleList
	TestRand anyenc.SampleList

	// Channels is the log-signature channel count.
	Channels int
	Outputs  int
}

// EncoderSamples preprocesses a dataset for the encoder.
//
// Targets are the natural logs of the mass ratio q and
// the separation s (label columns 4 and 5).
func EncoderSamples(d *Dataset, opts EncoderOptions) (*EncoderData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Y.Shape[1] < 6 {
		return nil, fmt.Errorf("encoder samples: need at least 6 label columns, got %d",
			d.Y.Shape[1])
	}
	n := d.Len()
	if opts.TestSize < 0 || opts.TestSize >= n {
		return nil, fmt.Errorf("encoder samples: test size %d invalid for %d samples",
			opts.TestSize, n)
	}
	targets, err := encoderTargets(d.Y)
	if err != nil {
		return nil, err
	}

	even, err := opts.samples(d.XEven, targets, opts.EvenWindow)
	if err != nil {
		return nil, fmt.Errorf("encoder samples: even: %w", err)
	}
	trainSize := n - opts.TestSize
	res := &EncoderData{
		Train:    append(anyenc.SampleList{}, even[:trainSize]...),
		TestEven: even[trainSize:],
		Channels: anypath.LogSigChannels(2, opts.Depth),
		Outputs:  2,
	}
	if d.XRand != nil {
		random, err := opts.samples(d.XRand, targets, opts.RandWindow)
		if err != nil {
			return nil, fmt.Errorf("encoder samples: random: %w", err)
		}
		res.Train = append(res.Train, random[:trainSize]...)
		res.TestRand = random[trainSize:]
	}
	return res, nil
}

func encoderTargets(y *Array) ([][]float64, error) {
	res := make([][]float64, y.Len())
	for i := range res {
		row := y.Row(i)
		q, s := row[4], row[5]
		if q <= 0 || s <= 0 {
			return nil, fmt.Errorf("encoder samples: sample %d has non-positive q or s", i)
		}
		res[i] = []float64{math.Log(q), math.Log(s)}
	}
	return res, nil
}

func (e EncoderOptions) samples(curves *Array, targets [][]float64,
	window int) (anyenc.SampleList, error) {
	length, channels := curves.Shape[1], curves.Shape[2]
	cfg := anypath.LogSigConfig{Depth: e.Depth, Window: window}
	res := make(anyenc.SampleList, curves.Len())
	for i := range res {
		row := curves.Row(i)
		values := make([][]float64, length)
		for j := range values {
			point := row[j*channels : (j+1)*channels]
			values[j] = []float64{
				point[0] / e.TimeScale,
				(point[1] - e.FluxCenter) / e.FluxScale,
			}
		}
		logsig, err := anypath.LogSigWindows(anypath.IndexSequence(values), cfg)
		if err != nil {
			return nil, err
		}
		coeffs, err := anypath.BuildCoeffs([]anypath.Sequence{logsig})
		if err != nil {
			return nil, err
		}
		res[i] = &anyenc.Sample{Coeffs: coeffs, Target: targets[i]}
	}
	return res, nil
}

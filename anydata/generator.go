package anydata

import (
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anygen"
	"gonum.org/v1/gonum/stat"
)

// GeneratorOptions controls how a Dataset is turned into
// generator samples.
type GeneratorOptions struct {
	// TrainSize caps the number of leading training
	// samples.
	TrainSize int

	// TestSize is the number of trailing samples held out
	// for evaluation.
	TestSize int
}

// DefaultGeneratorOptions returns the standard split.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{TrainSize: 2048, TestSize: 1024}
}

// GeneratorData is the preprocessed generator dataset.
type GeneratorData struct {
	Train anygen.SampleList
	Test  anygen.SampleList

	// Times are the shared query times of every curve.
	Times []float64

	Labels   int
	Channels int
}

// GeneratorSamples standardizes the labels (from column 2
// onward) and the magnitude at every time index, then
// pairs each label row with its curve.
func GeneratorSamples(d *Dataset, opts GeneratorOptions) (*GeneratorData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	n := d.Len()
	if opts.TestSize < 0 || opts.TestSize >= n {
		return nil, fmt.Errorf("generator samples: test size %d invalid for %d samples",
			opts.TestSize, n)
	}
	y := d.Y.Clone()
	x := d.XEven.Clone()
	length, channels := x.Shape[1], x.Shape[2]
	standardizeColumns(y.Data, y.Shape[1], 2, 1)
	standardizeColumns(x.Data, length*channels, 1, channels)

	res := &GeneratorData{
		Times:    make([]float64, length),
		Labels:   y.Shape[1],
		Channels: channels - 1,
	}
	first := x.Row(0)
	for j := range res.Times {
		res.Times[j] = first[j*channels]
	}
	samples := make(anygen.SampleList, n)
	for i := range samples {
		row := x.Row(i)
		curve := make([]float64, 0, length*(channels-1))
		for j := 0; j < length; j++ {
			curve = append(curve, row[j*channels+1:(j+1)*channels]...)
		}
		samples[i] = &anygen.Sample{Label: y.Row(i), Curve: curve}
	}
	trainSize := n - opts.TestSize
	if opts.TrainSize > 0 && opts.TrainSize < trainSize {
		trainSize = opts.TrainSize
	}
	res.Train = samples[:trainSize]
	res.Test = samples[n-opts.TestSize:]
	return res, nil
}

// standardizeColumns gives zero mean and unit standard
// deviation to columns start, start+step, ... of a
// row-major matrix with the given column count.
// Constant columns are only centered.
func standardizeColumns(data []float64, cols, start, step int) {
	rows := len(data) / cols
	column := make([]float64, rows)
	for col := start; col < cols; col += step {
		for r := range column {
			column[r] = data[r*cols+col]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || rows < 2 {
			std = 1
		}
		for r := range column {
			data[r*cols+col] = (column[r] - mean) / std
		}
	}
}

package anynn

import "github.com/unixpickle/anydiff"

// A Cost compares packed batches of desired and actual
// outputs and returns one cost per sample.
type Cost interface {
	Cost(desired, actual anydiff.Res, n int) anydiff.Res
}

// MSE is the per-sample mean of squared differences.
type MSE struct{}

// Cost returns n values.
func (MSE) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	sq := anydiff.Square(anydiff.Sub(actual, desired))
	cols := sq.Output().Len() / n
	perSample := anydiff.SumCols(&anydiff.Matrix{Data: sq, Rows: n, Cols: cols})
	return anydiff.Scale(perSample, perSample.Output().Creator().MakeNumeric(1/float64(cols)))
}

// MeanCost reduces the per-sample costs to their mean.
// For MSE this is the mean over every output element, the
// training loss of both models.
func MeanCost(c Cost, desired, actual anydiff.Res, n int) anydiff.Res {
	total := anydiff.Sum(c.Cost(desired, actual, n))
	return anydiff.Scale(total, total.Output().Creator().MakeNumeric(1/float64(n)))
}

// ChannelMSE is the mean squared error of each channel of
// n row-major samples, with both sides divided by the
// channel's divisor first (nil means 1).
func ChannelMSE(desired, actual []float64, n int, divisors []float64) []float64 {
	channels := len(desired) / n
	res := make([]float64, channels)
	for i := range desired {
		ch := i % channels
		diff := actual[i] - desired[i]
		if divisors != nil {
			diff /= divisors[ch]
		}
		res[ch] += diff * diff / float64(n)
	}
	return res
}

package anysgd

import "github.com/unixpickle/anydiff"

// A Transformer rewrites a gradient before it is applied,
// e.g. Adam or momentum.
//
// Transform may modify and return its argument, but must
// not keep a reference to it.
// The result is valid until the next call.
type Transformer interface {
	Transform(g anydiff.Grad) anydiff.Grad
}

// A Batch is whatever a Fetcher produces for a slice of
// samples: packed path coefficients and targets for the
// encoder, label and curve tensors for the generator.
type Batch interface{}

// A Fetcher turns a slice of samples into a Batch.
//
// SGD calls Fetch on a background goroutine while the
// previous batch is being differentiated.
type Fetcher interface {
	Fetch(s SampleList) (Batch, error)
}

// A Gradienter computes a gradient for a Batch.
//
// An error aborts training; solver divergence is reported
// this way rather than as a NaN gradient.
type Gradienter interface {
	Gradient(b Batch) (anydiff.Grad, error)
}

// A Rater gives the learning rate for a (possibly
// fractional) epoch.
type Rater interface {
	Rate(epoch float64) float64
}

// A SampleList is a shuffleable list of training samples.
type SampleList interface {
	Len() int
	Swap(i, j int)

	// Slice returns a shallow copy of samples [i, j).
	Slice(i, j int) SampleList
}

// A Coster computes a scalar training cost for a Batch.
type Coster interface {
	TotalCost(b Batch) (anydiff.Res, error)
}

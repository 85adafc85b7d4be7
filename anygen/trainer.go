package anygen

import (
	"errors"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Sample pairs a label vector with the light curve it
// should reproduce.
type Sample struct {
	Label []float64

	// Curve is packed as (time, channel).
	Curve []float64
}

// A SampleList is an anysgd.SampleList of generator
// samples.
type SampleList []*Sample

// Len returns the number of samples.
func (s SampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-slice of the list.
func (s SampleList) Slice(i, j int) anysgd.SampleList {
	return append(SampleList{}, s[i:j]...)
}

// A Batch stores packed labels and curves.
type Batch struct {
	Labels *anydiff.Const
	Curves *anydiff.Const
	Num    int
}

// A Trainer computes costs and gradients for a Generator
// at a fixed set of query times.
type Trainer struct {
	Generator *Generator
	Times     []float64
	Params    []*anydiff.Var

	// After every gradient computation, LastCost is set to
	// the mean cost of the batch.
	LastCost float64
}

// Fetch packs the samples into a *Batch.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	l := s.(SampleList)
	if l.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	var labels, curves []float64
	for _, sample := range l {
		labels = append(labels, sample.Label...)
		curves = append(curves, sample.Curve...)
	}
	if len(labels) != l.Len()*t.Generator.Labels ||
		len(curves) != l.Len()*len(t.Times)*t.Generator.Channels {
		return nil, errors.New("fetch batch: sample shape does not match generator")
	}
	c := t.creator()
	return &Batch{
		Labels: anydiff.NewConst(anynn.MakeVector(c, labels)),
		Curves: anydiff.NewConst(anynn.MakeVector(c, curves)),
		Num:    l.Len(),
	}, nil
}

// TotalCost computes the mean squared error over every
// reconstructed value.
func (t *Trainer) TotalCost(batch anysgd.Batch) (anydiff.Res, error) {
	b := batch.(*Batch)
	out, err := t.Generator.Apply(b.Labels, b.Num, t.Times)
	if err != nil {
		return nil, err
	}
	return anynn.MeanCost(anynn.MSE{}, b.Curves, out, b.Num), nil
}

// Gradient computes the gradient of the batch's mean
// cost and updates t.LastCost.
func (t *Trainer) Gradient(b anysgd.Batch) (grad anydiff.Grad, err error) {
	defer anysolve.Recover(&err)
	grad, t.LastCost, err = anysgd.CosterGrad(t, b, t.Params)
	return
}

// Evaluate computes the mean squared error over samples
// without tracking gradients.
func (t *Trainer) Evaluate(samples SampleList) (float64, error) {
	batch, err := t.Fetch(samples)
	if err != nil {
		return 0, err
	}
	cost, err := t.TotalCost(batch)
	if err != nil {
		return 0, err
	}
	return anynn.Floats(cost.Output())[0], nil
}

func (t *Trainer) creator() anyvec.Creator {
	return t.Generator.Decoder.Weights.Vector.Creator()
}

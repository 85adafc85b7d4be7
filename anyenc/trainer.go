package anyenc

import (
	"errors"
	"fmt"
	"math"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
)

// A Sample is one interpolated light curve and its
// regression target.
type Sample struct {
	// Coeffs holds a batch of exactly one path.
	Coeffs *anypath.Coeffs
	Target []float64
}

// A SampleList is an anysgd.SampleList of encoder
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

// A Group is a set of samples which share knot times and
// can therefore be evaluated as one path batch.
type Group struct {
	Coeffs  *anypath.Coeffs
	Targets []float64
}

// A Batch is a list of groups.
type Batch struct {
	Groups []*Group
	Num    int
}

// A Trainer computes costs and gradients for an Encoder.
type Trainer struct {
	Encoder Encoder
	Cost    anynn.Cost
	Params  []*anydiff.Var

	// Divisors, if non-nil, rescales per-channel errors in
	// LastChannelMSE (see Evaluate).
	Divisors []float64

	// After every gradient computation, LastCost is set to
	// the mean cost of the batch and LastChannelMSE to its
	// per-channel squared error.
	LastCost       float64
	LastChannelMSE []float64

	lastActual  []float64
	lastDesired []float64
}

// Fetch groups the samples by their knot times.
// The s argument must be a SampleList.
func (t *Trainer) Fetch(s anysgd.SampleList) (anysgd.Batch, error) {
	l := s.(SampleList)
	if l.Len() == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}
	var groups []*Group
	var members [][]*anypath.Coeffs
	for _, sample := range l {
		if len(sample.Target) != t.Encoder.OutputSize() {
			return nil, &anypath.ShapeMismatchError{
				Op:       "fetch batch",
				Dim:      "target",
				Expected: t.Encoder.OutputSize(),
				Actual:   len(sample.Target),
			}
		}
		idx := -1
		for i, g := range members {
			if g[0].SameKnots(sample.Coeffs) {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = len(groups)
			groups = append(groups, &Group{})
			members = append(members, nil)
		}
		members[idx] = append(members[idx], sample.Coeffs)
		groups[idx].Targets = append(groups[idx].Targets, sample.Target...)
	}
	for i, g := range groups {
		coeffs, err := anypath.ConcatCoeffs(members[i]...)
		if err != nil {
			return nil, fmt.Errorf("fetch batch: %w", err)
		}
		g.Coeffs = coeffs
	}
	return &Batch{Groups: groups, Num: l.Len()}, nil
}

// TotalCost computes the mean cost over every output of
// the *Batch.
func (t *Trainer) TotalCost(batch anysgd.Batch) (anydiff.Res, error) {
	actual, desired, err := t.apply(batch.(*Batch))
	if err != nil {
		return nil, err
	}
	t.lastActual = anynn.Floats(actual.Output())
	t.lastDesired = anynn.Floats(desired.Output())
	return anynn.MeanCost(t.cost(), desired, actual, batch.(*Batch).Num), nil
}

// Gradient computes the gradient of the batch's mean
// cost and updates t.LastCost.
//
// The b argument must be a *Batch.
func (t *Trainer) Gradient(b anysgd.Batch) (grad anydiff.Grad, err error) {
	defer anysolve.Recover(&err)
	grad, t.LastCost, err = anysgd.CosterGrad(t, b, t.Params)
	if err == nil {
		t.LastChannelMSE = anynn.ChannelMSE(t.lastDesired, t.lastActual,
			b.(*Batch).Num, t.Divisors)
	}
	return
}

// Predict applies the encoder to the *Batch and returns
// the packed outputs and targets in matching order.
func (t *Trainer) Predict(batch anysgd.Batch) (actual, desired []float64, err error) {
	a, d, err := t.apply(batch.(*Batch))
	if err != nil {
		return nil, nil, err
	}
	return anynn.Floats(a.Output()), anynn.Floats(d.Output()), nil
}

func (t *Trainer) apply(b *Batch) (actual, desired anydiff.Res, err error) {
	var outs []anydiff.Res
	var targets []float64
	for _, g := range b.Groups {
		out, err := t.Encoder.Apply(g.Coeffs)
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, out)
		targets = append(targets, g.Targets...)
	}
	actual = outs[0]
	if len(outs) > 1 {
		actual = anydiff.Concat(outs...)
	}
	c := actual.Output().Creator()
	return actual, anydiff.NewConst(anynn.MakeVector(c, targets)), nil
}

func (t *Trainer) cost() anynn.Cost {
	if t.Cost == nil {
		return anynn.MSE{}
	}
	return t.Cost
}

// Metrics summarizes the encoder's error on a sample set.
type Metrics struct {
	// Loss is the mean squared error over every output.
	Loss float64

	// ChannelMSE is the per-output mean squared error,
	// after dividing errors by the trainer's divisors.
	ChannelMSE []float64
}

// Evaluate computes metrics over samples in batches of
// batchSize without tracking gradients.
//
// If divisors is non-nil, per-channel errors are divided
// by the corresponding divisor, e.g. math.Ln10 to report
// natural-log targets in decades.
func (t *Trainer) Evaluate(samples SampleList, batchSize int,
	divisors []float64) (*Metrics, error) {
	if batchSize <= 0 {
		batchSize = samples.Len()
	}
	var actual, desired []float64
	for i := 0; i < samples.Len(); i += batchSize {
		end := min(samples.Len(), i+batchSize)
		batch, err := t.Fetch(samples[i:end])
		if err != nil {
			return nil, err
		}
		a, d, err := t.Predict(batch)
		if err != nil {
			return nil, err
		}
		actual = append(actual, a...)
		desired = append(desired, d...)
	}
	res := &Metrics{
		ChannelMSE: anynn.ChannelMSE(desired, actual, samples.Len(), divisors),
	}
	for _, x := range anynn.ChannelMSE(desired, actual, samples.Len(), nil) {
		res.Loss += x
	}
	res.Loss /= float64(t.Encoder.OutputSize())
	return res, nil
}

// Log10Divisors returns divisors which convert natural
// log errors of n channels to decades.
func Log10Divisors(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = math.Ln10
	}
	return res
}

var _ anysgd.Gradienter = (*Trainer)(nil)
var _ anysgd.Fetcher = (*Trainer)(nil)
var _ anysgd.Coster = (*Trainer)(nil)

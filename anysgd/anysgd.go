// Package anysgd provides tools for Stochastic Gradient
// Descent.
// It is intended to be used for Machine Learning, but it
// can be applied to other areas as well.
package anysgd

import (
	"errors"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
)

// SGD performs stochastic gradient descent.
type SGD struct {
	// Fetcher, if non-nil, is used to turn mini-batch
	// sample lists into Batches.
	// Batches are fetched in the background while the
	// previous step runs.
	//
	// If Fetcher is nil, the SampleList itself is passed
	// to the Gradienter.
	Fetcher Fetcher

	// Gradienter is used to compute initial, untransformed
	// gradients for each mini-batch.
	Gradienter Gradienter

	// Transformer, if non-nil, is used to transform each
	// gradient before the step.
	Transformer Transformer

	// Samples is the list of training samples to use for
	// training.
	// It will be shuffled and re-shuffled as needed.
	//
	// The list may not be empty.
	Samples SampleList

	// Rater determines the learning rate for each step.
	Rater Rater

	// Rand, if non-nil, drives the per-epoch shuffle.
	// It is only used by the background fetch goroutine
	// once Run starts.
	Rand *rand.Rand

	// StatusFunc, if non-nil, is called before every
	// iteration with the next mini-batch.
	// Returning an error aborts training.
	StatusFunc func(batch SampleList) error

	// StepFunc, if non-nil, is called after every
	// parameter update.
	// Returning an error aborts training.
	StepFunc func() error

	// BatchSize is the mini-batch size.
	// If it is 0, then the entire sample list is used at
	// every iteration.
	BatchSize int

	// MaxGradNorm, if non-zero, bounds the L2 norm of each
	// raw gradient.
	// Larger gradients are rescaled to this norm.
	MaxGradNorm float64

	// Scales, if non-nil, multiplies the learning rate of
	// individual variables.
	// Variables not in the map use a scale of 1.
	Scales map[*anydiff.Var]float64

	// NumProcessed keeps track of the number of samples that
	// have been passed to Gradienter so far.
	// It is used to compute the epoch for Rater.
	// Most of the time, this should be initialized to 0.
	NumProcessed int

	// NumSteps counts the completed updates.
	NumSteps int

	// LastGradNorm is the norm of the most recent gradient
	// before clipping.
	LastGradNorm float64

	// LastRate is the most recent learning rate.
	LastRate float64
}

// Run runs SGD until done is closed or a callback fails.
func (s *SGD) Run(done <-chan struct{}) error {
	if s.Samples.Len() == 0 {
		return errors.New("cannot run SGD with empty sample list")
	}

	stop := make(chan struct{})
	defer close(stop)
	batches := s.fetchBatches(stop)

	for {
		select {
		case <-done:
			return nil
		default:
		}

		next := <-batches
		if next.Err != nil {
			return next.Err
		}
		if s.StatusFunc != nil {
			if err := s.StatusFunc(next.Samples); err != nil {
				return err
			}
			select {
			case <-done:
				return nil
			default:
			}
		}

		grad, err := s.Gradienter.Gradient(next.Batch)
		if err != nil {
			return err
		}
		s.LastGradNorm = gradNorm(grad)
		if s.MaxGradNorm > 0 && s.LastGradNorm > s.MaxGradNorm {
			scaleGrad(grad, s.MaxGradNorm/s.LastGradNorm)
		}
		if s.Transformer != nil {
			grad = s.Transformer.Transform(grad)
		}

		epoch := float64(s.NumProcessed) / float64(s.Samples.Len())
		s.LastRate = s.Rater.Rate(epoch)
		s.step(grad)

		s.NumProcessed += next.Samples.Len()
		s.NumSteps++

		if s.StepFunc != nil {
			if err := s.StepFunc(); err != nil {
				return err
			}
		}
	}
}

func (s *SGD) step(grad anydiff.Grad) {
	for v, vec := range grad {
		scale := 1.0
		if s.Scales != nil {
			if x, ok := s.Scales[v]; ok {
				scale = x
			}
		}
		vec.Scale(vec.Creator().MakeNumeric(-s.LastRate * scale))
	}
	grad.AddToVars()
}

type fetchResult struct {
	Samples SampleList
	Batch   Batch
	Err     error
}

func (s *SGD) fetchBatches(stop <-chan struct{}) <-chan fetchResult {
	res := make(chan fetchResult, 1)
	go func() {
		defer close(res)
		idx := s.Samples.Len()
		for {
			remaining := s.Samples.Len() - idx
			if remaining == 0 {
				Shuffle(s.Samples, s.Rand)
				idx = 0
				remaining = s.Samples.Len()
			}
			batchSize := s.batchSize(remaining)
			samples := s.Samples.Slice(idx, idx+batchSize)
			idx += batchSize

			result := fetchResult{Samples: samples, Batch: samples}
			if s.Fetcher != nil {
				result.Batch, result.Err = s.Fetcher.Fetch(samples)
			}
			select {
			case res <- result:
			case <-stop:
				return
			}
			if result.Err != nil {
				return
			}
		}
	}()
	return res
}

func (s *SGD) batchSize(remaining int) int {
	if s.BatchSize == 0 || s.BatchSize > remaining {
		return remaining
	}
	return s.BatchSize
}

func gradNorm(g anydiff.Grad) float64 {
	var sum float64
	for _, v := range g {
		sum += float64Of(v.Dot(v))
	}
	return math.Sqrt(sum)
}

package anyenc

import (
	"math"
	"testing"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/unixpickle/anyvec/anyvec64"
)

func testSamples(t *testing.T, n int) SampleList {
	var res SampleList
	for i := 0; i < n; i++ {
		res = append(res, &Sample{
			Coeffs: testCoeffs(t, 1, 5+i%2, 3, true),
			Target: []float64{float64(i), -float64(i)},
		})
	}
	return res
}

func TestTrainerFetch(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	enc, err := New(c, testConfig(KindCDE))
	if err != nil {
		t.Fatal(err)
	}
	trainer := &Trainer{Encoder: enc, Params: enc.Parameters()}
	samples := testSamples(t, 4)

	// Irregular samples never share knots.
	batch, err := trainer.Fetch(samples)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(batch.(*Batch).Groups); n != 4 {
		t.Errorf("expected 4 groups but got %d", n)
	}

	shared := testCoeffs(t, 1, 5, 3, false)
	other := testCoeffs(t, 1, 5, 3, false)
	batch, err = trainer.Fetch(SampleList{
		{Coeffs: shared, Target: []float64{1, 2}},
		{Coeffs: other, Target: []float64{3, 4}},
	})
	if err != nil {
		t.Fatal(err)
	}
	groups := batch.(*Batch).Groups
	if len(groups) != 1 || groups[0].Coeffs.Batch() != 2 {
		t.Fatal("expected one group of two samples")
	}
	expected := []float64{1, 2, 3, 4}
	for i, x := range expected {
		if groups[0].Targets[i] != x {
			t.Errorf("target %d: expected %f but got %f", i, x, groups[0].Targets[i])
		}
	}

	if _, err := trainer.Fetch(SampleList{{Coeffs: shared, Target: []float64{1}}}); err == nil {
		t.Error("expected error for short target")
	}
}

func TestTrainerGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	enc, err := New(c, testConfig(KindConv))
	if err != nil {
		t.Fatal(err)
	}
	trainer := &Trainer{Encoder: enc, Params: enc.Parameters()}
	samples := testSamples(t, 3)
	batch, err := trainer.Fetch(samples)
	if err != nil {
		t.Fatal(err)
	}
	cost, err := trainer.TotalCost(batch)
	if err != nil {
		t.Fatal(err)
	}
	grad, err := trainer.Gradient(batch)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(trainer.LastCost-anynn.Floats(cost.Output())[0]) > 1e-10 {
		t.Errorf("LastCost %f does not match cost %f", trainer.LastCost,
			anynn.Floats(cost.Output())[0])
	}
	var norm float64
	for _, v := range grad {
		for _, x := range anynn.Floats(v) {
			norm += x * x
		}
	}
	if norm == 0 {
		t.Error("gradient is zero")
	}

	metrics, err := trainer.Evaluate(samples, 2, Log10Divisors(2))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(metrics.Loss-trainer.LastCost) > 1e-8 {
		t.Errorf("evaluation loss %f differs from batch cost %f", metrics.Loss,
			trainer.LastCost)
	}
	if len(metrics.ChannelMSE) != 2 {
		t.Fatalf("expected 2 channels but got %d", len(metrics.ChannelMSE))
	}
	if len(trainer.LastChannelMSE) != 2 {
		t.Fatalf("expected 2 batch channels but got %d", len(trainer.LastChannelMSE))
	}
	mean := (trainer.LastChannelMSE[0] + trainer.LastChannelMSE[1]) / 2
	if math.Abs(mean-trainer.LastCost) > 1e-8 {
		t.Errorf("batch channel errors average to %f, cost is %f", mean, trainer.LastCost)
	}
}

func TestTrainerSGD(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	enc, err := New(c, testConfig(KindConv))
	if err != nil {
		t.Fatal(err)
	}
	trainer := &Trainer{Encoder: enc, Params: enc.Parameters()}
	samples := testSamples(t, 4)
	before, err := trainer.Evaluate(samples, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	steps := 0
	s := &anysgd.SGD{
		Fetcher:     trainer,
		Gradienter:  trainer,
		Transformer: &anysgd.Adam{},
		Samples:     samples,
		Rater:       anysgd.ConstRater(0.01),
		MaxGradNorm: 20,
		StepFunc: func() error {
			steps++
			if steps == 30 {
				close(done)
			}
			return nil
		},
	}
	if err := s.Run(done); err != nil {
		t.Fatal(err)
	}
	after, err := trainer.Evaluate(samples, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if after.Loss >= before.Loss {
		t.Errorf("loss did not decrease: %f -> %f", before.Loss, after.Loss)
	}
}

package anysgd

import "testing"

func TestAdam(t *testing.T) {
	g := newTestGradienter()
	done := make(chan struct{})
	s := &SGD{
		Gradienter:  g,
		Transformer: &Adam{},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.001),
		BatchSize:   1,
		StepFunc:    stopAfter(100000, done),
	}
	if err := s.Run(done); err != nil {
		t.Fatal(err)
	}
	if g.errorMargin() > 1e-2 {
		x, y := g.current()
		t.Errorf("bad solution: %f, %f", x, y)
	}
}

func TestRMSProp(t *testing.T) {
	g := newTestGradienter()
	done := make(chan struct{})
	s := &SGD{
		Gradienter:  g,
		Transformer: &RMSProp{},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.0005),
		BatchSize:   3,
		StepFunc:    stopAfter(50000, done),
	}
	if err := s.Run(done); err != nil {
		t.Fatal(err)
	}
	if g.errorMargin() > 1e-2 {
		x, y := g.current()
		t.Errorf("bad solution: %f, %f", x, y)
	}
}

func TestMomentum(t *testing.T) {
	g := newTestGradienter()
	done := make(chan struct{})
	s := &SGD{
		Gradienter:  g,
		Transformer: &Momentum{Momentum: 0.9},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.0001),
		BatchSize:   3,
		StepFunc:    stopAfter(50000, done),
	}
	if err := s.Run(done); err != nil {
		t.Fatal(err)
	}
	if g.errorMargin() > 1e-2 {
		x, y := g.current()
		t.Errorf("bad solution: %f, %f", x, y)
	}
}

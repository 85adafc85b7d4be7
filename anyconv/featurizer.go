package anyconv

import (
	"fmt"
	"math/rand"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// FeaturizerConfig describes a stack of strided
// convolutions and residual blocks which compresses a
// (width, depth) signal along its time axis.
type FeaturizerConfig struct {
	InputWidth int
	InputDepth int

	// KernelSize is the filter width of every strided
	// stage.
	KernelSize int

	// StemDepths lists the output depth of each strided
	// stage before the residual blocks.
	StemDepths []int

	ResBlocks int
	ResHidden int
	ResKernel int

	// HeadDepths lists the output depth of each strided
	// stage after the residual blocks.
	HeadDepths []int

	// OutDepth is the depth of the final pointwise
	// convolution.
	OutDepth int

	// Debug inserts logging layers between stages.
	Debug bool

	// Rand seeds the filters; nil uses the global source.
	Rand *rand.Rand
}

// DefaultFeaturizerConfig returns the configuration used
// by the light curve encoder.
func DefaultFeaturizerConfig(width, depth int) FeaturizerConfig {
	return FeaturizerConfig{
		InputWidth: width,
		InputDepth: depth,
		KernelSize: 15,
		StemDepths: []int{256, 512},
		ResBlocks:  15,
		ResHidden:  128,
		ResKernel:  3,
		HeadDepths: []int{128, 64},
		OutDepth:   32,
	}
}

// A Featurizer is a convolutional feature extractor.
type Featurizer struct {
	Net anynn.Net

	OutputWidth int
	OutputDepth int
}

// NewFeaturizer builds a randomly initialized Featurizer.
func NewFeaturizer(c anyvec.Creator, cfg FeaturizerConfig) (*Featurizer, error) {
	if cfg.KernelSize < 1 || cfg.ResKernel%2 == 0 || cfg.OutDepth < 1 {
		return nil, fmt.Errorf("featurizer: invalid kernel or depth in %+v", cfg)
	}
	b := &featurizerBuilder{creator: c, rng: cfg.Rand, width: cfg.InputWidth,
		depth: cfg.InputDepth, debug: cfg.Debug}
	for _, d := range cfg.StemDepths {
		b.stage(d, cfg.KernelSize, 2)
	}
	for i := 0; i < cfg.ResBlocks; i++ {
		b.resBlock(cfg.ResHidden, cfg.ResKernel)
	}
	for _, d := range cfg.HeadDepths {
		b.stage(d, cfg.KernelSize, 2)
	}
	b.stage(cfg.OutDepth, 1, 1)
	if b.width < 1 {
		return nil, fmt.Errorf("featurizer: input width %d too small", cfg.InputWidth)
	}
	return &Featurizer{Net: b.net, OutputWidth: b.width, OutputDepth: b.depth}, nil
}

// OutputSize returns the number of features produced per
// sample.
func (f *Featurizer) OutputSize() int {
	return f.OutputWidth * f.OutputDepth
}

// Apply applies the network.
func (f *Featurizer) Apply(in anydiff.Res, batch int) anydiff.Res {
	return f.Net.Apply(in, batch)
}

// Parameters returns the network's parameters.
func (f *Featurizer) Parameters() []*anydiff.Var {
	return f.Net.Parameters()
}

// NamedParameters names parameters by layer index.
func (f *Featurizer) NamedParameters(prefix string) []anynn.NamedParam {
	return f.Net.NamedParameters(prefix)
}

type featurizerBuilder struct {
	creator anyvec.Creator
	rng     *rand.Rand
	net     anynn.Net
	width   int
	depth   int
	debug   bool
}

func (f *featurizerBuilder) stage(outDepth, kernel, stride int) {
	pad, conv := f.padConv(f.width, f.depth, outDepth, kernel, stride)
	f.net = append(f.net, pad, conv, anynn.NewPReLU(f.creator))
	f.width = conv.OutputWidth()
	f.depth = outDepth
	f.debugLayer()
}

func (f *featurizerBuilder) resBlock(hidden, kernel int) {
	pad1, conv1 := f.padConv(f.width, f.depth, hidden, kernel, 1)
	pad2, conv2 := f.padConv(f.width, hidden, f.depth, kernel, 1)
	f.net = append(f.net, &Residual{
		Layer: anynn.Net{
			NewLayerNorm(f.creator, f.depth),
			pad1, conv1,
			anynn.NewPReLU(f.creator),
			pad2, conv2,
		},
	})
	f.debugLayer()
}

func (f *featurizerBuilder) padConv(width, depth, outDepth, kernel,
	stride int) (*Padding, *Conv) {
	pad := &Padding{
		InputWidth:   width,
		InputDepth:   depth,
		PaddingLeft:  kernel / 2,
		PaddingRight: kernel / 2,
	}
	conv := &Conv{
		FilterCount: outDepth,
		FilterWidth: kernel,
		Stride:      stride,
		InputWidth:  pad.OutputWidth(),
		InputDepth:  depth,
	}
	conv.InitRand(f.creator, f.rng)
	return pad, conv
}

func (f *featurizerBuilder) debugLayer() {
	if f.debug {
		f.net = append(f.net, &anynn.Debug{Name: fmt.Sprintf("featurizer.%d", len(f.net))})
	}
}

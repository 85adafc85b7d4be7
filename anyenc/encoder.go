// Package anyenc implements encoders which regress fixed
// size outputs from continuous light curve paths.
//
// Two interchangeable variants are provided: a
// convolutional encoder which samples the path on a dense
// grid, and a controlled differential equation encoder
// which integrates a latent state along the path.
package anyenc

import (
	"fmt"
	"math/rand"

	"github.com/JasonZHM/magic-microlensing/anyconv"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Encoder kinds accepted by Config.Kind.
const (
	KindConv = "conv"
	KindCDE  = "cde"
)

// Merge modes for bidirectional CDE encoders.
const (
	MergeMean = "mean"
	MergeGate = "gate"
)

// An Encoder maps batches of interpolated paths to
// output vectors.
type Encoder interface {
	anynn.Parameterizer
	anynn.NamedParameterizer

	// Apply produces a (batch, OutputSize()) result.
	//
	// It fails with a *anypath.ShapeMismatchError if the
	// path channel count differs from InputSize().
	Apply(coeffs *anypath.Coeffs) (anydiff.Res, error)

	InputSize() int
	OutputSize() int

	// ParamGroups splits the parameters into the groups
	// that receive separate learning rates.
	ParamGroups() *Groups
}

// Groups holds the parameters of each submodule that is
// trained at its own learning rate.
type Groups struct {
	Initial []*anydiff.Var
	Field   []*anydiff.Var
	Readout []*anydiff.Var
}

// Config describes an encoder.
type Config struct {
	Kind string

	Channels int
	Outputs  int
	Latent   int

	// GridPoints is the number of path samples fed to the
	// convolutional encoder.
	GridPoints int

	// ResBlocks is the number of residual blocks in the
	// convolutional feature extractor.
	ResBlocks int

	// Featurizer, if non-nil, replaces the default
	// feature extractor layout.
	// Its input shape is taken from GridPoints and Latent.
	Featurizer *anyconv.FeaturizerConfig

	// Field network shape for the CDE encoder.
	HiddenSize int
	Hidden     int

	// Bidirectional adds a second CDE solved backward in
	// time from the end of the path.
	Bidirectional bool

	// Merge combines the two end states: MergeMean (the
	// default) averages them, MergeGate applies a PReLU to
	// their sum.
	Merge string

	Solver anysolve.Options

	// Rand seeds the initial weights; nil uses the global
	// source.
	Rand *rand.Rand
}

// DefaultConfig returns the default convolutional
// configuration.
func DefaultConfig(channels, outputs int) Config {
	return Config{
		Kind:       KindConv,
		Channels:   channels,
		Outputs:    outputs,
		Latent:     32,
		GridPoints: 2048,
		ResBlocks:  15,
		HiddenSize: 128,
		Hidden:     3,
		Solver:     anysolve.DefaultOptions(),
	}
}

// New creates a randomly initialized encoder.
func New(c anyvec.Creator, cfg Config) (Encoder, error) {
	if cfg.Channels <= 0 || cfg.Outputs <= 0 || cfg.Latent <= 0 {
		return nil, fmt.Errorf("new encoder: invalid sizes in %+v", cfg)
	}
	switch cfg.Merge {
	case "", MergeMean, MergeGate:
	default:
		return nil, fmt.Errorf("new encoder: unknown merge %q", cfg.Merge)
	}
	switch cfg.Kind {
	case KindConv, "":
		return NewConvEncoder(c, cfg)
	case KindCDE:
		return NewCDEEncoder(c, cfg), nil
	default:
		return nil, fmt.Errorf("new encoder: unknown kind %q", cfg.Kind)
	}
}

func checkChannels(op string, e Encoder, coeffs *anypath.Coeffs) error {
	if coeffs.Channels() != e.InputSize() {
		return &anypath.ShapeMismatchError{
			Op:       op,
			Dim:      "channel",
			Expected: e.InputSize(),
			Actual:   coeffs.Channels(),
		}
	}
	return nil
}

func newInitial(c anyvec.Creator, rng *rand.Rand, in, out int) anynn.Net {
	return anynn.Net{anynn.NewFC(c, rng, in, out), anynn.NewPReLU(c)}
}

var _ Encoder = (*ConvEncoder)(nil)
var _ Encoder = (*CDEEncoder)(nil)

// featurizerConfig adapts the default feature extractor
// to an encoder configuration.
func featurizerConfig(cfg Config) anyconv.FeaturizerConfig {
	if cfg.Featurizer != nil {
		res := *cfg.Featurizer
		res.InputWidth = cfg.GridPoints
		res.InputDepth = cfg.Latent
		res.Rand = cfg.Rand
		return res
	}
	res := anyconv.DefaultFeaturizerConfig(cfg.GridPoints, cfg.Latent)
	res.ResBlocks = cfg.ResBlocks
	res.Rand = cfg.Rand
	return res
}

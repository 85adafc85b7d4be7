package anyenc

import (
	"github.com/JasonZHM/magic-microlensing/anyconv"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// ConvEncoder samples the path on a dense grid, projects
// every sample into a latent space, and compresses the
// grid with a convolutional feature extractor.
type ConvEncoder struct {
	Channels   int
	Outputs    int
	GridPoints int

	Initial    anynn.Net
	Featurizer *anyconv.Featurizer
	Readout    *anynn.FC
}

// NewConvEncoder creates a randomly initialized
// ConvEncoder.
func NewConvEncoder(c anyvec.Creator, cfg Config) (*ConvEncoder, error) {
	feat, err := anyconv.NewFeaturizer(c, featurizerConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &ConvEncoder{
		Channels:   cfg.Channels,
		Outputs:    cfg.Outputs,
		GridPoints: cfg.GridPoints,
		Initial:    newInitial(c, cfg.Rand, cfg.Channels, cfg.Latent),
		Featurizer: feat,
		Readout:    anynn.NewFC(c, cfg.Rand, feat.OutputSize(), cfg.Outputs),
	}, nil
}

// Apply evaluates the encoder.
func (e *ConvEncoder) Apply(coeffs *anypath.Coeffs) (anydiff.Res, error) {
	if err := checkChannels("conv encoder", e, coeffs); err != nil {
		return nil, err
	}
	path := anypath.NewPath(coeffs)
	grid, err := path.EvaluateGrid(path.Linspace(e.GridPoints))
	if err != nil {
		return nil, err
	}
	batch := coeffs.Batch()
	c := e.Readout.Weights.Vector.Creator()
	in := anydiff.NewConst(anynn.MakeVector(c, grid))
	latent := e.Initial.Apply(in, batch*e.GridPoints)
	features := e.Featurizer.Apply(latent, batch)
	return e.Readout.Apply(features, batch), nil
}

// InputSize returns the path channel count.
func (e *ConvEncoder) InputSize() int {
	return e.Channels
}

// OutputSize returns the output dimensionality.
func (e *ConvEncoder) OutputSize() int {
	return e.Outputs
}

// Parameters returns every parameter.
func (e *ConvEncoder) Parameters() []*anydiff.Var {
	return anynn.Vars(e.NamedParameters(""))
}

// ParamGroups places the feature extractor in the field
// group.
func (e *ConvEncoder) ParamGroups() *Groups {
	return &Groups{
		Initial: e.Initial.Parameters(),
		Field:   e.Featurizer.Parameters(),
		Readout: e.Readout.Parameters(),
	}
}

// NamedParameters names parameters under "initial",
// "scaler" and "readout".
func (e *ConvEncoder) NamedParameters(prefix string) []anynn.NamedParam {
	var res []anynn.NamedParam
	res = append(res, anynn.NamedParameters(join(prefix, "initial"), e.Initial)...)
	res = append(res, anynn.NamedParameters(join(prefix, "scaler"), e.Featurizer)...)
	return append(res, anynn.NamedParameters(join(prefix, "readout"), e.Readout)...)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

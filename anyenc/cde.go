package anyenc

import (
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// CDEEncoder integrates a latent state along the path
// with a neural controlled differential equation and reads
// out the final state.
type CDEEncoder struct {
	Channels int
	Outputs  int
	Latent   int

	Initial anynn.Net
	Field   *anysolve.VectorField
	Readout *anynn.FC

	// BackField and Gate are non-nil for bidirectional
	// encoders.
	BackField *anysolve.VectorField
	Gate      *anynn.Gate

	Solver anysolve.Options
}

// NewCDEEncoder creates a randomly initialized
// CDEEncoder.
func NewCDEEncoder(c anyvec.Creator, cfg Config) *CDEEncoder {
	fieldCfg := anysolve.FieldConfig{
		StateSize:  cfg.Latent,
		Channels:   cfg.Channels,
		HiddenSize: cfg.HiddenSize,
		Hidden:     cfg.Hidden,
		Activation: anynn.ReLU,
		Squash:     true,
		Rand:       cfg.Rand,
	}
	res := &CDEEncoder{
		Channels: cfg.Channels,
		Outputs:  cfg.Outputs,
		Latent:   cfg.Latent,
		Initial:  newInitial(c, cfg.Rand, cfg.Channels, cfg.Latent),
		Field:    anysolve.NewVectorField(c, fieldCfg),
		Readout:  anynn.NewFC(c, cfg.Rand, cfg.Latent, cfg.Outputs),
		Solver:   cfg.Solver,
	}
	if cfg.Bidirectional {
		res.BackField = anysolve.NewVectorField(c, fieldCfg)
		if cfg.Merge == MergeGate {
			res.Gate = anynn.NewGate(c)
		} else {
			res.Gate = anynn.NewMeanGate()
		}
	}
	return res
}

// Apply evaluates the encoder.
//
// The latent state is solved through every knot of the
// path so that steps never straddle a knot.
func (e *CDEEncoder) Apply(coeffs *anypath.Coeffs) (anydiff.Res, error) {
	if err := checkChannels("cde encoder", e, coeffs); err != nil {
		return nil, err
	}
	path := anypath.NewPath(coeffs)
	knots := coeffs.Times()
	zT, err := e.solve(e.Field, path, knots)
	if err != nil {
		return nil, err
	}
	batch := coeffs.Batch()
	if e.BackField != nil {
		reversed := make([]float64, len(knots))
		for i, t := range knots {
			reversed[len(knots)-1-i] = t
		}
		z0, err := e.solve(e.BackField, path, reversed)
		if err != nil {
			return nil, err
		}
		zT = e.Gate.Mix(zT, z0, batch)
	}
	return e.Readout.Apply(zT, batch), nil
}

func (e *CDEEncoder) solve(field *anysolve.VectorField, path *anypath.Path,
	times []float64) (anydiff.Res, error) {
	start, err := path.Evaluate(times[0])
	if err != nil {
		return nil, err
	}
	batch := path.Coeffs().Batch()
	c := e.Readout.Weights.Vector.Creator()
	z0 := e.Initial.Apply(anydiff.NewConst(anynn.MakeVector(c, start)), batch)
	dyn := &anysolve.CDE{Field: field, Path: path}
	states, err := anysolve.Solve(dyn, z0, batch, times, e.Solver)
	if err != nil {
		return nil, err
	}
	n := z0.Output().Len()
	end := states.Output().Len()
	return anydiff.Slice(states, end-n, end), nil
}

// InputSize returns the path channel count.
func (e *CDEEncoder) InputSize() int {
	return e.Channels
}

// OutputSize returns the output dimensionality.
func (e *CDEEncoder) OutputSize() int {
	return e.Outputs
}

// Parameters returns every parameter.
func (e *CDEEncoder) Parameters() []*anydiff.Var {
	return anynn.Vars(e.NamedParameters(""))
}

// ParamGroups groups the vector fields together and
// trains the gate with the readout.
func (e *CDEEncoder) ParamGroups() *Groups {
	res := &Groups{
		Initial: e.Initial.Parameters(),
		Field:   e.Field.Parameters(),
		Readout: e.Readout.Parameters(),
	}
	if e.BackField != nil {
		res.Field = append(res.Field, e.BackField.Parameters()...)
		res.Readout = append(res.Readout, e.Gate.Parameters()...)
	}
	return res
}

// NamedParameters names parameters under "initial",
// "func", "func_back", "gate" and "readout".
func (e *CDEEncoder) NamedParameters(prefix string) []anynn.NamedParam {
	var res []anynn.NamedParam
	res = append(res, anynn.NamedParameters(join(prefix, "initial"), e.Initial)...)
	res = append(res, anynn.NamedParameters(join(prefix, "func"), e.Field)...)
	if e.BackField != nil {
		res = append(res, anynn.NamedParameters(join(prefix, "func_back"), e.BackField)...)
		res = append(res, anynn.NamedParameters(join(prefix, "gate"), e.Gate)...)
	}
	return append(res, anynn.NamedParameters(join(prefix, "readout"), e.Readout)...)
}

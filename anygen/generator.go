// Package anygen implements a latent ODE generator which
// reconstructs light curves from their physical labels.
package anygen

import (
	"fmt"
	"math/rand"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anypath"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Config describes a Generator.
type Config struct {
	Labels   int
	Channels int
	Latent   int

	// Units is the width of every hidden layer.
	Units int

	// GenLayers is the number of hidden layers in the ODE
	// function.
	GenLayers int

	Solver anysolve.Options

	// Rand seeds the initial weights; nil uses the global
	// source.
	Rand *rand.Rand
}

// DefaultConfig returns the default generator layout.
func DefaultConfig(labels, channels int) Config {
	return Config{
		Labels:    labels,
		Channels:  channels,
		Latent:    32,
		Units:     1024,
		GenLayers: 5,
		Solver:    anysolve.DefaultOptions(),
	}
}

// A Generator maps labels to an initial latent state,
// evolves it with a neural ODE, and decodes every
// returned state into a light curve sample.
type Generator struct {
	Labels   int
	Channels int
	Latent   int

	Initial anynn.Net
	Field   *anysolve.VectorField
	Decoder *anynn.FC

	Solver anysolve.Options
}

// New creates a randomly initialized Generator.
func New(c anyvec.Creator, cfg Config) (*Generator, error) {
	if cfg.Labels <= 0 || cfg.Channels <= 0 || cfg.Latent <= 0 || cfg.Units <= 0 {
		return nil, fmt.Errorf("new generator: invalid sizes in %+v", cfg)
	}
	return &Generator{
		Labels:   cfg.Labels,
		Channels: cfg.Channels,
		Latent:   cfg.Latent,
		Initial:  anynn.NewMLP(c, cfg.Rand, cfg.Labels, cfg.Latent, cfg.Units, 1, anynn.Tanh),
		Field: anysolve.NewVectorField(c, anysolve.FieldConfig{
			StateSize:  cfg.Latent,
			Channels:   1,
			HiddenSize: cfg.Units,
			Hidden:     cfg.GenLayers,
			Activation: anynn.Tanh,
			Rand:       cfg.Rand,
		}),
		Decoder: anynn.NewFC(c, cfg.Rand, cfg.Latent, cfg.Channels),
		Solver:  cfg.Solver,
	}, nil
}

// Apply reconstructs a batch of light curves at the
// given query times.
//
// The labels are packed as (batch, label) and the result
// is packed as (batch, time, channel).
func (g *Generator) Apply(labels anydiff.Res, batch int,
	times []float64) (anydiff.Res, error) {
	if labels.Output().Len() != batch*g.Labels {
		return nil, &anypath.ShapeMismatchError{
			Op:       "generator",
			Dim:      "label",
			Expected: batch * g.Labels,
			Actual:   labels.Output().Len(),
		}
	}
	z0 := g.Initial.Apply(labels, batch)
	states, err := anysolve.Solve(&anysolve.ODE{Field: g.Field}, z0, batch, times,
		g.Solver)
	if err != nil {
		return nil, err
	}
	decoded := g.Decoder.Apply(states, len(times)*batch)
	return anynn.SwapAxes(decoded, len(times), batch, g.Channels), nil
}

// Parameters returns every parameter.
func (g *Generator) Parameters() []*anydiff.Var {
	return anynn.Vars(g.NamedParameters(""))
}

// NamedParameters names parameters under "initial",
// "func" and "decoder".
func (g *Generator) NamedParameters(prefix string) []anynn.NamedParam {
	var res []anynn.NamedParam
	res = append(res, anynn.NamedParameters(join(prefix, "initial"), g.Initial)...)
	res = append(res, anynn.NamedParameters(join(prefix, "func"), g.Field)...)
	return append(res, anynn.NamedParameters(join(prefix, "decoder"), g.Decoder)...)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

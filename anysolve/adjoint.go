package anysolve

import (
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// solveAdjoint integrates without recording a graph of
// the solver steps.
// Gradients are recovered by solving the adjoint system
// backward in time when the result is propagated.
func solveAdjoint(dyn Dynamics, z0 anydiff.Res, batch int, times []float64,
	opts Options) (anydiff.Res, error) {
	f := func(t float64, z anydiff.Res) anydiff.Res {
		out := dyn.Eval(t, anydiff.NewConst(z.Output()), batch)
		return anydiff.NewConst(out.Output())
	}
	states, err := integrate(f, anydiff.NewConst(z0.Output()), times, opts)
	if err != nil {
		return nil, err
	}
	var outs []anyvec.Vector
	var numStates [][]float64
	for _, s := range states {
		outs = append(outs, s.Output())
		numStates = append(numStates, anynn.Floats(s.Output()))
	}
	params := dyn.Parameters()
	return &adjointRes{
		Dyn:    dyn,
		Batch:  batch,
		Z0:     z0,
		Times:  append([]float64{}, times...),
		States: numStates,
		Opts:   opts,
		Params: params,
		OutVec: z0.Output().Creator().Concat(outs...),
		V:      anydiff.MergeVarSets(z0.Vars(), anydiff.NewVarSet(params...)),
	}, nil
}

type adjointRes struct {
	Dyn    Dynamics
	Batch  int
	Z0     anydiff.Res
	Times  []float64
	States [][]float64
	Opts   Options
	Params []*anydiff.Var
	OutVec anyvec.Vector
	V      anydiff.VarSet
}

func (a *adjointRes) Output() anyvec.Vector {
	return a.OutVec
}

func (a *adjointRes) Vars() anydiff.VarSet {
	return a.V
}

// Propagate solves the augmented system [z, a, a_theta]
// backward between consecutive query times, adding the
// upstream gradient of each query time to the adjoint as
// it is reached.
//
// A solver failure in the backward pass panics with a
// *DivergedError.
func (a *adjointRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	c := u.Creator()
	upstream := anynn.Floats(u)
	size := len(a.States[0])
	last := len(a.Times) - 1

	adj := append([]float64{}, upstream[last*size:]...)
	var paramSize int
	for _, p := range a.Params {
		paramSize += p.Vector.Len()
	}
	paramAdj := make([]float64, paramSize)

	for i := last; i > 0; i-- {
		aug := make([]float64, 0, 2*size+paramSize)
		aug = append(aug, a.States[i]...)
		aug = append(aug, adj...)
		aug = append(aug, paramAdj...)
		sol, err := integrate(a.augmented(size), anydiff.NewConst(anynn.MakeVector(c, aug)),
			[]float64{a.Times[i], a.Times[i-1]}, a.Opts)
		if err != nil {
			panic(err)
		}
		res := anynn.Floats(sol[1].Output())
		adj = res[size : 2*size]
		for j, x := range upstream[(i-1)*size : i*size] {
			adj[j] += x
		}
		paramAdj = res[2*size:]
	}

	var offset int
	for _, p := range a.Params {
		n := p.Vector.Len()
		if gradVec, ok := g[p]; ok {
			gradVec.Add(anynn.MakeVector(c, paramAdj[offset:offset+n]))
		}
		offset += n
	}
	if g.Intersects(a.Z0.Vars()) {
		a.Z0.Propagate(anynn.MakeVector(c, adj), g)
	}
}

// augmented returns the right-hand side of the adjoint
// system for states of the given size.
func (a *adjointRes) augmented(size int) rhs {
	return func(t float64, s anydiff.Res) anydiff.Res {
		c := s.Output().Creator()
		data := anynn.Floats(s.Output())
		zVar := anydiff.NewVar(anynn.MakeVector(c, data[:size]))
		out := a.Dyn.Eval(t, zVar, a.Batch)

		grad := anydiff.NewGrad(append([]*anydiff.Var{zVar}, a.Params...)...)
		out.Propagate(anynn.MakeVector(c, data[size:2*size]), grad)

		res := make([]float64, 0, len(data))
		res = append(res, anynn.Floats(out.Output())...)
		for _, v := range append([]*anydiff.Var{zVar}, a.Params...) {
			for _, x := range anynn.Floats(grad[v]) {
				res = append(res, -x)
			}
		}
		return anydiff.NewConst(anynn.MakeVector(c, res))
	}
}

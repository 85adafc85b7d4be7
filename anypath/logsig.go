package anypath

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// LogSigConfig configures the windowed log-signature
// transform.
type LogSigConfig struct {
	// Depth is the truncation level of the signature.
	Depth int

	// Window is the number of sample intervals summarized
	// by each output step.
	Window int
}

// LogSigWindows compresses a sequence by computing the
// log-signature of the piecewise-linear path over windows
// of samples.
//
// The result has one knot at the start of the sequence
// and one at the end of every window.
// Its value at the first knot is zero, and its increment
// across each window is that window's log-signature.
// The final window may cover fewer samples.
func LogSigWindows(seq Sequence, cfg LogSigConfig) (Sequence, error) {
	if cfg.Depth < 1 || cfg.Window < 1 {
		return Sequence{}, errors.New("log-signature: depth and window must be positive")
	}
	if seq.Len() < 2 {
		return Sequence{}, &ShapeMismatchError{Op: "log-signature", Dim: "time",
			Expected: 2, Actual: seq.Len()}
	}
	channels := seq.Channels()
	words := lyndonWords(channels, cfg.Depth)

	res := Sequence{
		Times:  []float64{seq.Times[0]},
		Values: [][]float64{make([]float64, len(words))},
	}
	for start := 0; start < seq.Len()-1; start += cfg.Window {
		end := start + cfg.Window
		if end > seq.Len()-1 {
			end = seq.Len() - 1
		}
		sig := signature(seq.Values[start:end+1], channels, cfg.Depth)
		logSig := tensorLog(sig, channels, cfg.Depth)
		row := append([]float64{}, res.Values[len(res.Values)-1]...)
		for i, w := range words {
			row[i] += logSig[len(w)][wordIndex(w, channels)]
		}
		res.Times = append(res.Times, seq.Times[end])
		res.Values = append(res.Values, row)
	}
	return res, nil
}

// A tensor is a truncated element of the tensor algebra.
// Level k has channels^k components.
type tensor [][]float64

func newTensor(channels, depth int) tensor {
	res := make(tensor, depth+1)
	size := 1
	for k := range res {
		res[k] = make([]float64, size)
		size *= channels
	}
	return res
}

// signature computes the truncated signature of the
// piecewise-linear path through points using Chen's
// identity.
func signature(points [][]float64, channels, depth int) tensor {
	res := newTensor(channels, depth)
	res[0][0] = 1
	delta := make([]float64, channels)
	for i := 1; i < len(points); i++ {
		floats.SubTo(delta, points[i], points[i-1])
		res = tensorMul(res, tensorExp(delta, depth), channels, depth)
	}
	return res
}

func tensorExp(delta []float64, depth int) tensor {
	channels := len(delta)
	res := newTensor(channels, depth)
	res[0][0] = 1
	for k := 1; k <= depth; k++ {
		prev := res[k-1]
		cur := res[k]
		for i, x := range prev {
			floats.AddScaled(cur[i*channels:(i+1)*channels], x/float64(k), delta)
		}
	}
	return res
}

func tensorMul(x, y tensor, channels, depth int) tensor {
	res := newTensor(channels, depth)
	for k := 0; k <= depth; k++ {
		for i := 0; i <= k; i++ {
			left, right := x[i], y[k-i]
			for p, a := range left {
				if a == 0 {
					continue
				}
				floats.AddScaled(res[k][p*len(right):(p+1)*len(right)], a, right)
			}
		}
	}
	return res
}

// tensorLog computes log(x) for a tensor whose level-0
// component is 1.
func tensorLog(x tensor, channels, depth int) tensor {
	y := newTensor(channels, depth)
	for k := 1; k <= depth; k++ {
		copy(y[k], x[k])
	}
	res := newTensor(channels, depth)
	power := y
	for n := 1; n <= depth; n++ {
		coeff := 1 / float64(n)
		if n%2 == 0 {
			coeff = -coeff
		}
		for k := n; k <= depth; k++ {
			floats.AddScaled(res[k], coeff, power[k])
		}
		power = tensorMul(power, y, channels, depth)
	}
	return res
}

func wordIndex(w []int, channels int) int {
	var idx int
	for _, letter := range w {
		idx = idx*channels + letter
	}
	return idx
}

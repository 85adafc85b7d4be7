package anydata

import (
	"math"
	"math/rand"
	"sort"
)

// Label columns of synthetic datasets.
const (
	ColT0 = iota
	ColU0
	ColTE
	ColRho
	ColQ
	ColS
	ColAlpha
	NumLabels
)

const (
	syntheticSpan     = 200.0
	syntheticBaseline = 14.9
	syntheticNoise    = 0.01
)

// Synthetic builds a dataset of n closed-form
// microlensing light curves.
//
// Each curve is a point-lens magnification with a
// Gaussian bump whose height depends on the mass ratio q
// and whose position depends on the separation s and the
// angle alpha.
// Even curves have length samples; irregular curves have
// length/5 (at least 3) noisy samples with an error
// channel.
func Synthetic(n, length int, seed int64) *Dataset {
	gen := rand.New(rand.NewSource(seed))
	randLength := length / 5
	if randLength < 3 {
		randLength = 3
	}
	res := &Dataset{
		Y:     NewArray(n, NumLabels),
		XEven: NewArray(n, length, 2),
		XRand: NewArray(n, randLength, 3),
	}
	for i := 0; i < n; i++ {
		label := res.Y.Row(i)
		label[ColT0] = syntheticSpan * (0.25 + 0.5*gen.Float64())
		label[ColU0] = 0.05 + 0.95*gen.Float64()
		label[ColTE] = 10 + 50*gen.Float64()
		label[ColRho] = math.Pow(10, -3+2*gen.Float64())
		label[ColQ] = math.Pow(10, -3+3*gen.Float64())
		label[ColS] = math.Pow(10, -0.3+0.6*gen.Float64())
		label[ColAlpha] = 360 * gen.Float64()

		even := res.XEven.Row(i)
		for j := 0; j < length; j++ {
			t := syntheticSpan * float64(j) / float64(length)
			even[2*j] = t
			even[2*j+1] = Magnitude(label, t)
		}

		times := make([]float64, randLength)
		for j := range times {
			times[j] = syntheticSpan * gen.Float64()
		}
		sort.Float64s(times)
		random := res.XRand.Row(i)
		for j, t := range times {
			random[3*j] = t
			random[3*j+1] = Magnitude(label, t) + syntheticNoise*gen.NormFloat64()
			random[3*j+2] = syntheticNoise
		}
	}
	return res
}

// Magnitude evaluates the synthetic light curve of a
// label row at time t.
func Magnitude(label []float64, t float64) float64 {
	tau := (t - label[ColT0]) / label[ColTE]
	u := math.Hypot(label[ColU0], tau)
	u = math.Max(u, label[ColRho])
	mag := (u*u + 2) / (u * math.Sqrt(u*u+4))

	s := label[ColS]
	alpha := label[ColAlpha] * math.Pi / 180
	center := label[ColT0] + label[ColTE]*(s-1/s)*math.Cos(alpha)
	width := label[ColTE] * (0.05 + 0.1*s)
	bump := 2 * math.Sqrt(label[ColQ]) * math.Exp(-math.Pow((t-center)/width, 2))

	return syntheticBaseline - 2.5*math.Log10(mag+bump)
}

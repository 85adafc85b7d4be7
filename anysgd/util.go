package anysgd

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Shuffle shuffles a list of samples in place.
// A nil rng uses the global source.
func Shuffle(s SampleList, rng *rand.Rand) {
	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	for i := 0; i < s.Len(); i++ {
		j := i + intn(s.Len()-i)
		s.Swap(i, j)
	}
}

// A ConstRater is a Rater which always returns the same
// constant learning rate.
type ConstRater float64

// Rate returns float64(c).
func (c ConstRater) Rate(epoch float64) float64 {
	return float64(c)
}

// A DecayRater decays the learning rate exponentially
// once per completed epoch, never going below Min.
//
// During epoch e (counting from 0), the rate is
//
//     max(Base * Decay^(e+1), Min)
type DecayRater struct {
	Base  float64
	Decay float64
	Min   float64
}

// Rate computes the decayed rate.
func (d *DecayRater) Rate(epoch float64) float64 {
	rate := d.Base * math.Pow(d.Decay, math.Floor(epoch)+1)
	return math.Max(rate, d.Min)
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, vec := range g {
		vec.Scale(vec.Creator().MakeNumeric(s))
	}
}

func valueOrDefault(value, def float64) float64 {
	if value == 0 {
		return def
	}
	return value
}

func float64Of(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", n))
	}
}

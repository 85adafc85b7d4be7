package anypath

import (
	"math"
	"sort"
)

// domainSlack is the relative tolerance for queries just
// outside of a path's interval.
const domainSlack = 1e-9

// A Path is a continuous, C1 interpolant of a batch of
// sequences.
//
// Vectors returned by a Path are packed as
// (batch, channel).
type Path struct {
	coeffs *Coeffs
}

// NewPath wraps the coefficients in a Path.
func NewPath(c *Coeffs) *Path {
	return &Path{coeffs: c}
}

// Coeffs returns the underlying coefficients.
func (p *Path) Coeffs() *Coeffs {
	return p.coeffs
}

// Interval returns the domain of the path.
func (p *Path) Interval() (float64, float64) {
	return p.coeffs.Interval()
}

// Linspace returns n evenly spaced times spanning the
// path's domain, including both end points.
func (p *Path) Linspace(n int) []float64 {
	t0, t1 := p.Interval()
	if n == 1 {
		return []float64{t0}
	}
	res := make([]float64, n)
	for i := range res {
		res[i] = t0 + (t1-t0)*float64(i)/float64(n-1)
	}
	res[n-1] = t1
	return res
}

// Evaluate computes the value of the path at time t.
func (p *Path) Evaluate(t float64) ([]float64, error) {
	res := make([]float64, p.coeffs.batch*p.coeffs.channels)
	if err := p.evaluate(t, res, false); err != nil {
		return nil, err
	}
	return res, nil
}

// Derivative computes the time derivative of the path at
// time t.
func (p *Path) Derivative(t float64) ([]float64, error) {
	res := make([]float64, p.coeffs.batch*p.coeffs.channels)
	if err := p.evaluate(t, res, true); err != nil {
		return nil, err
	}
	return res, nil
}

// EvaluateGrid evaluates the path at every time in times.
//
// The result is packed as (batch, time, channel).
func (p *Path) EvaluateGrid(times []float64) ([]float64, error) {
	c := p.coeffs
	res := make([]float64, c.batch*len(times)*c.channels)
	temp := make([]float64, c.batch*c.channels)
	for i, t := range times {
		if err := p.evaluate(t, temp, false); err != nil {
			return nil, err
		}
		for b := 0; b < c.batch; b++ {
			copy(res[(b*len(times)+i)*c.channels:], temp[b*c.channels:(b+1)*c.channels])
		}
	}
	return res, nil
}

func (p *Path) evaluate(t float64, out []float64, deriv bool) error {
	seg, err := p.segment(t)
	if err != nil {
		return err
	}
	c := p.coeffs
	f := t - c.times[seg]
	numSeg := c.Segments()
	for b := 0; b < c.batch; b++ {
		for ch := 0; ch < c.channels; ch++ {
			idx := (b*numSeg+seg)*c.channels + ch
			var val float64
			if deriv {
				val = c.b[idx] + (2*c.c[idx]+3*c.d[idx]*f)*f
			} else {
				val = c.a[idx] + (c.b[idx]+(c.c[idx]+c.d[idx]*f)*f)*f
			}
			out[b*c.channels+ch] = val
		}
	}
	return nil
}

// segment finds the segment containing t, preferring the
// right segment at interior knots.
func (p *Path) segment(t float64) (int, error) {
	times := p.coeffs.times
	t0, t1 := times[0], times[len(times)-1]
	slack := domainSlack * math.Max(1, t1-t0)
	if math.IsNaN(t) || t < t0-slack || t > t1+slack {
		return 0, &OutOfDomainError{T: t, Min: t0, Max: t1}
	}
	seg := sort.Search(len(times), func(i int) bool {
		return times[i] > t
	}) - 1
	if seg < 0 {
		seg = 0
	} else if seg >= len(times)-1 {
		seg = len(times) - 2
	}
	return seg, nil
}

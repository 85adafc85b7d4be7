package anyconv

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Im2Row maps (possibly overlapping) windows of an input
// tensor to rows in a matrix.
// The windows are defined by sliding a window of
// WindowWidth time steps along the input with a stride of
// Stride.
//
// The i-th row corresponds to the i-th time step in the
// output tensor of a Conv.
type Im2Row struct {
	WindowWidth int
	Stride      int

	InputWidth int
	InputDepth int
}

// InputSize returns the total number of components in
// one input tensor.
func (m *Im2Row) InputSize() int {
	return m.InputWidth * m.InputDepth
}

// NumX returns the number of sliding window positions.
func (m *Im2Row) NumX() int {
	stride := m.Stride
	if stride == 0 {
		stride = 1
	}
	w := 1 + (m.InputWidth-m.WindowWidth)/stride
	if w < 0 || m.InputWidth < m.WindowWidth {
		return 0
	}
	return w
}

// MakeOut allocates a row matrix for the output of Map.
func (m *Im2Row) MakeOut() *mat.Dense {
	return mat.NewDense(m.NumX(), m.WindowWidth*m.InputDepth, nil)
}

// Map copies the windows of one input tensor into the
// rows of out.
func (m *Im2Row) Map(in []float64, out *mat.Dense) {
	rowSize := m.WindowWidth * m.InputDepth
	for x := 0; x < m.NumX(); x++ {
		start := x * m.stride() * m.InputDepth
		out.SetRow(x, in[start:start+rowSize])
	}
}

// MapTranspose adds the rows of a row matrix back into
// the input positions they were copied from.
func (m *Im2Row) MapTranspose(rows *mat.Dense, out []float64) {
	rowSize := m.WindowWidth * m.InputDepth
	for x := 0; x < m.NumX(); x++ {
		start := x * m.stride() * m.InputDepth
		row := rows.RawRowView(x)
		dest := out[start : start+rowSize]
		for i, v := range row {
			dest[i] += v
		}
	}
}

func (m *Im2Row) stride() int {
	if m.Stride == 0 {
		return 1
	}
	return m.Stride
}

// parallelFor calls f for every index in [0, n) from
// GOMAXPROCS goroutines.
// Each goroutine gets its own worker id in
// [0, GOMAXPROCS).
func parallelFor(n int, f func(worker, i int)) {
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers(); w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range jobs {
				f(w, i)
			}
		}(w)
	}
	wg.Wait()
}

func numWorkers() int {
	return runtime.GOMAXPROCS(0)
}

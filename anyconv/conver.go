package anyconv

import (
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"gonum.org/v1/gonum/mat"
)

type convRes struct {
	Layer     *Conv
	Im2Row    *Im2Row
	BatchSize int
	In        anydiff.Res
	Filters   *mat.Dense
	Rows      []*mat.Dense
	OutVec    anyvec.Vector
	V         anydiff.VarSet
}

func newConvRes(c *Conv, in anydiff.Res, batchSize int) *convRes {
	im2row := c.im2row()
	numX := im2row.NumX()
	filterSize := c.FilterWidth * c.InputDepth
	filters := mat.NewDense(c.FilterCount, filterSize, anynn.Floats(c.Filters.Vector))
	biases := anynn.Floats(c.Biases.Vector)
	inData := anynn.Floats(in.Output())

	res := &convRes{
		Layer:     c,
		Im2Row:    im2row,
		BatchSize: batchSize,
		In:        in,
		Filters:   filters,
		Rows:      make([]*mat.Dense, batchSize),
		V: anydiff.MergeVarSets(in.Vars(),
			anydiff.NewVarSet(c.Filters, c.Biases)),
	}
	outSize := numX * c.FilterCount
	out := make([]float64, batchSize*outSize)
	inSize := im2row.InputSize()
	parallelFor(batchSize, func(_, b int) {
		rows := im2row.MakeOut()
		im2row.Map(inData[b*inSize:(b+1)*inSize], rows)
		res.Rows[b] = rows

		outMat := mat.NewDense(numX, c.FilterCount, out[b*outSize:(b+1)*outSize])
		outMat.Mul(rows, filters.T())
		for x := 0; x < numX; x++ {
			row := outMat.RawRowView(x)
			for i, bias := range biases {
				row[i] += bias
			}
		}
	})
	res.OutVec = anynn.MakeVector(in.Output().Creator(), out)
	return res
}

func (c *convRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	cr := u.Creator()
	upstream := anynn.Floats(u)
	numX := c.Im2Row.NumX()
	count := c.Layer.FilterCount
	outSize := numX * count

	_, needFilters := g[c.Layer.Filters]
	_, needBiases := g[c.Layer.Biases]
	needIn := g.Intersects(c.In.Vars())

	workers := numWorkers()
	filterGrads := make([]*mat.Dense, workers)
	biasGrads := make([][]float64, workers)
	for i := range filterGrads {
		_, cols := c.Filters.Dims()
		filterGrads[i] = mat.NewDense(count, cols, nil)
		biasGrads[i] = make([]float64, count)
	}

	var inGrad []float64
	inSize := c.Im2Row.InputSize()
	if needIn {
		inGrad = make([]float64, c.BatchSize*inSize)
	}

	parallelFor(c.BatchSize, func(w, b int) {
		uMat := mat.NewDense(numX, count, upstream[b*outSize:(b+1)*outSize])
		if needFilters {
			var prod mat.Dense
			prod.Mul(uMat.T(), c.Rows[b])
			filterGrads[w].Add(filterGrads[w], &prod)
		}
		if needBiases {
			for x := 0; x < numX; x++ {
				for i, v := range uMat.RawRowView(x) {
					biasGrads[w][i] += v
				}
			}
		}
		if needIn {
			var rowGrad mat.Dense
			rowGrad.Mul(uMat, c.Filters)
			c.Im2Row.MapTranspose(&rowGrad, inGrad[b*inSize:(b+1)*inSize])
		}
	})

	if needFilters {
		total := filterGrads[0]
		for _, fg := range filterGrads[1:] {
			total.Add(total, fg)
		}
		g[c.Layer.Filters].Add(anynn.MakeVector(cr, total.RawMatrix().Data))
	}
	if needBiases {
		total := biasGrads[0]
		for _, bg := range biasGrads[1:] {
			for i, v := range bg {
				total[i] += v
			}
		}
		g[c.Layer.Biases].Add(anynn.MakeVector(cr, total))
	}
	if needIn {
		c.In.Propagate(anynn.MakeVector(cr, inGrad), g)
	}
}

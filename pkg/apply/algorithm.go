// Package apply runs a per-voxel Algorithm over a set of aligned volumes in
// parallel and collects its outputs into parameter, residual and iteration
// maps.
package apply

// Algorithm is a voxel-wise model fit. The engine derives every shape from
// it, so it must be set before any volumes are bound.
//
// Apply is called concurrently from many workers and must not modify any
// state shared between calls. Algorithms that run an optimizer allocate its
// scratch space inside Apply.
type Algorithm interface {
	// NumInputs is the number of input volumes
	NumInputs() int

	// NumConsts is the number of scalar constant volumes
	NumConsts() int

	// NumOutputs is the number of parameter maps produced
	NumOutputs() int

	// DataSize is the total number of input components per voxel, summed
	// over all input volumes
	DataSize() int

	// OutputSize is the number of components per output voxel
	OutputSize() int

	// DefaultConsts holds the constant values used when no constant volume
	// is bound. It has NumConsts entries.
	DefaultConsts() []float64

	// Zero is the output value written for masked voxels. It has
	// OutputSize entries.
	Zero() []float64

	// Apply fits one voxel. inputs holds one vector per input volume and
	// consts one value per constant. index is the voxel coordinate and is
	// only valid for the duration of the call. Results are written into res,
	// whose buffers arrive pre-filled with Zero (and zeros for Resids). A
	// non-nil error marks the voxel as failed; whatever was written to res
	// is still stored.
	Apply(inputs [][]float64, consts []float64, index []int, res *Result) error
}

// Result receives the output of one Apply call
type Result struct {
	// Outputs has NumOutputs vectors of OutputSize values
	Outputs [][]float64

	// Residual has OutputSize values
	Residual []float64

	// Resids holds one residual per input data point. It is empty unless the
	// engine was asked for all residuals, in which case it has DataSize
	// entries.
	Resids []float64

	// Iterations is the number of optimizer iterations used
	Iterations int
}

func newResult(algo Algorithm, allResiduals bool) *Result {
	res := &Result{
		Outputs:  make([][]float64, algo.NumOutputs()),
		Residual: make([]float64, algo.OutputSize()),
	}
	for i := range res.Outputs {
		res.Outputs[i] = make([]float64, algo.OutputSize())
	}
	if allResiduals {
		res.Resids = make([]float64, algo.DataSize())
	}
	return res
}

// reset prepares the buffers for the next voxel
func (r *Result) reset(zero []float64) {
	for _, out := range r.Outputs {
		copy(out, zero)
	}
	copy(r.Residual, zero)
	for i := range r.Resids {
		r.Resids[i] = 0
	}
	r.Iterations = 0
}

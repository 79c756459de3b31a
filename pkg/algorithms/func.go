package algorithms

import (
	"strconv"

	"qitools/pkg/apply"
)

// VoxelFunc computes one voxel for a Func algorithm
type VoxelFunc func(inputs [][]float64, consts []float64, index []int, res *apply.Result) error

// Func adapts a plain function into an apply.Algorithm. Shapes are given
// explicitly; Zero defaults to zeros and DefaultConsts to ones.
type Func struct {
	Inputs     int
	Consts     int
	Outputs    int
	Data       int
	Size       int
	Defaults   []float64
	ZeroValue  []float64
	OutputName []string
	Fn         VoxelFunc
}

// NewScalarFunc wraps a scalar function of one scalar input
func NewScalarFunc(name string, fn func(x float64) float64) *Func {
	return &Func{
		Inputs:     1,
		Outputs:    1,
		Data:       1,
		Size:       1,
		OutputName: []string{name},
		Fn: func(inputs [][]float64, _ []float64, _ []int, res *apply.Result) error {
			res.Outputs[0][0] = fn(inputs[0][0])
			return nil
		},
	}
}

func (f *Func) NumInputs() int  { return f.Inputs }
func (f *Func) NumConsts() int  { return f.Consts }
func (f *Func) NumOutputs() int { return f.Outputs }
func (f *Func) DataSize() int   { return f.Data }
func (f *Func) OutputSize() int { return f.Size }

func (f *Func) DefaultConsts() []float64 {
	if f.Defaults != nil {
		return f.Defaults
	}
	def := make([]float64, f.Consts)
	for i := range def {
		def[i] = 1
	}
	return def
}

func (f *Func) Zero() []float64 {
	if f.ZeroValue != nil {
		return f.ZeroValue
	}
	return make([]float64, f.Size)
}

// Names returns the output names, numbering any that were not given
func (f *Func) Names() []string {
	names := make([]string, f.Outputs)
	for i := range names {
		if i < len(f.OutputName) {
			names[i] = f.OutputName[i]
		} else {
			names[i] = "out" + strconv.Itoa(i)
		}
	}
	return names
}

func (f *Func) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	return f.Fn(inputs, consts, index, res)
}

// Named is implemented by algorithms that name their outputs
type Named interface {
	Names() []string
}

// OutputNames returns the names of the outputs of algo, falling back to
// numbered names
func OutputNames(algo apply.Algorithm) []string {
	if n, ok := algo.(Named); ok {
		if names := n.Names(); len(names) == algo.NumOutputs() {
			return names
		}
	}
	names := make([]string, algo.NumOutputs())
	for i := range names {
		names[i] = "out" + strconv.Itoa(i)
	}
	return names
}

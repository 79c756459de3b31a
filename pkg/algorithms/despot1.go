package algorithms

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"qitools/pkg/apply"
	"qitools/pkg/sequence"
)

// DESPOT1Method selects the linear fitting scheme
type DESPOT1Method int

const (
	// LLS is an unweighted linear least-squares fit
	LLS DESPOT1Method = iota
	// WLLS re-weights the linear fit to account for the transformed noise
	WLLS
)

// ParseDESPOT1Method maps a method name to a DESPOT1Method
func ParseDESPOT1Method(name string) (DESPOT1Method, error) {
	switch name {
	case "", "l", "lls", "LLS":
		return LLS, nil
	case "w", "wlls", "WLLS":
		return WLLS, nil
	}
	return LLS, fmt.Errorf("unknown DESPOT1 method %q", name)
}

// DESPOT1 estimates T1 and PD from variable flip-angle SPGR data with the
// linearised signal equation S/sin(a) = E1 S/tan(a) + PD (1 - E1).
// Constant 0 is the relative B1.
type DESPOT1 struct {
	seq        sequence.SPGR
	flip       []float64
	method     DESPOT1Method
	iterations int
}

// NewDESPOT1 creates a fit for the given sequence. iterations bounds the
// WLLS re-weighting loop.
func NewDESPOT1(seq *sequence.SPGR, method DESPOT1Method, iterations int) (*DESPOT1, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if iterations < 1 {
		iterations = 15
	}
	return &DESPOT1{
		seq:        *seq,
		flip:       seq.FlipAnglesRadians(),
		method:     method,
		iterations: iterations,
	}, nil
}

func (d *DESPOT1) NumInputs() int           { return 1 }
func (d *DESPOT1) NumConsts() int           { return 1 }
func (d *DESPOT1) NumOutputs() int          { return 2 }
func (d *DESPOT1) DataSize() int            { return len(d.flip) }
func (d *DESPOT1) OutputSize() int          { return 1 }
func (d *DESPOT1) DefaultConsts() []float64 { return []float64{1} }
func (d *DESPOT1) Zero() []float64          { return []float64{0} }
func (d *DESPOT1) Names() []string          { return []string{"PD", "T1"} }

// Signal returns the SPGR signal for PD, T1 and a B1 scaling
func (d *DESPOT1) Signal(pd, t1, b1 float64) []float64 {
	e1 := math.Exp(-d.seq.TR / t1)
	out := make([]float64, len(d.flip))
	for i, a := range d.flip {
		a *= b1
		out[i] = pd * (1 - e1) * math.Sin(a) / (1 - e1*math.Cos(a))
	}
	return out
}

// Apply fits one voxel
func (d *DESPOT1) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	data := inputs[0]
	b1 := consts[0]
	if b1 <= 0 {
		return fmt.Errorf("invalid B1 %g", b1)
	}

	n := len(d.flip)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, a := range d.flip {
		a *= b1
		y[i] = data[i] / math.Sin(a)
		x[i] = data[i] / math.Tan(a)
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	res.Iterations = 1

	if d.method == WLLS {
		var err error
		intercept, slope, err = d.reweight(x, y, b1, intercept, slope, res)
		if err != nil {
			return err
		}
	}

	if slope <= 0 || slope >= 1 {
		return fmt.Errorf("non-physical slope %g", slope)
	}
	t1 := -d.seq.TR / math.Log(slope)
	pd := intercept / (1 - slope)
	res.Outputs[0][0] = pd
	res.Outputs[1][0] = t1

	model := d.Signal(pd, t1, b1)
	sum := 0.0
	for i := range data {
		r := data[i] - model[i]
		sum += r * r
		if i < len(res.Resids) {
			res.Resids[i] = r
		}
	}
	res.Residual[0] = math.Sqrt(sum / float64(n))
	return nil
}

// reweight iterates the weighted fit, solving the 2 parameter least-squares
// system with a QR factorisation at each step
func (d *DESPOT1) reweight(x, y []float64, b1, intercept, slope float64, res *apply.Result) (float64, float64, error) {
	n := len(x)
	a := mat.NewDense(n, 2, nil)
	b := mat.NewVecDense(n, nil)
	var sol mat.VecDense

	for it := 0; it < d.iterations; it++ {
		if slope <= 0 || slope >= 1 {
			break
		}
		for i, fa := range d.flip {
			fa *= b1
			w := math.Sin(fa) / (1 - slope*math.Cos(fa))
			a.Set(i, 0, w*x[i])
			a.Set(i, 1, w)
			b.SetVec(i, w*y[i])
		}
		if err := sol.SolveVec(a, b); err != nil {
			return intercept, slope, fmt.Errorf("weighted fit failed: %w", err)
		}
		next := sol.AtVec(0)
		intercept = sol.AtVec(1)
		res.Iterations++
		if math.Abs(next-slope) < 1e-9 {
			slope = next
			break
		}
		slope = next
	}
	return intercept, slope, nil
}

// Package algorithms holds the voxel-wise model fits run by the tools.
// Every type here implements apply.Algorithm and is safe for concurrent use.
package algorithms

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"qitools/pkg/apply"
	"qitools/pkg/sequence"
)

// Default CASL physiological constants for 3T
const (
	DefaultBloodT1  = 1.65
	DefaultAlpha    = 0.9
	DefaultLambda   = 0.9
	caslScaleFactor = 6000 // ml/g/s to ml/100g/min
)

// CASLOptions configures a CASL fit
type CASLOptions struct {
	// BloodT1 in seconds
	BloodT1 float64

	// Alpha is the labelling efficiency
	Alpha float64

	// Lambda is the blood-brain partition coefficient in ml/g
	Lambda float64

	// InputSize is the number of volumes in the label/control series
	InputSize int

	// Average the CBF time-series into a single value
	Average bool

	// SliceTime selects a post-label delay per slice (axis 2)
	SliceTime bool
}

// CASL computes cerebral blood flow from a pCASL series of interleaved
// control (even) and label (odd) volumes. Constant 0 is the tissue T1 and
// constant 1 the proton density; zero means unavailable.
type CASL struct {
	seq  sequence.CASL
	opts CASLOptions
	n    int
}

// NewCASL validates the options against the sequence
func NewCASL(seq *sequence.CASL, opts CASLOptions) (*CASL, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if opts.InputSize < 2 || opts.InputSize%2 != 0 {
		return nil, fmt.Errorf("CASL input must have an even number of volumes, got %d", opts.InputSize)
	}
	if !opts.SliceTime && len(seq.PostLabelDelay) != 1 {
		return nil, fmt.Errorf("more than one post-label delay specified, but not in slice-timing correction mode")
	}
	if opts.BloodT1 <= 0 {
		opts.BloodT1 = DefaultBloodT1
	}
	if opts.Alpha <= 0 {
		opts.Alpha = DefaultAlpha
	}
	if opts.Lambda <= 0 {
		opts.Lambda = DefaultLambda
	}
	return &CASL{seq: *seq, opts: opts, n: opts.InputSize / 2}, nil
}

func (c *CASL) NumInputs() int  { return 1 }
func (c *CASL) NumConsts() int  { return 2 }
func (c *CASL) NumOutputs() int { return 1 }
func (c *CASL) DataSize() int   { return c.opts.InputSize }

func (c *CASL) OutputSize() int {
	if c.opts.Average {
		return 1
	}
	return c.n
}

func (c *CASL) DefaultConsts() []float64 { return []float64{0, 0} }
func (c *CASL) Zero() []float64          { return make([]float64, c.OutputSize()) }
func (c *CASL) Names() []string          { return []string{"CBF"} }

// Apply computes CBF for every label/control pair
func (c *CASL) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	data := inputs[0]
	t1b := c.opts.BloodT1

	pld := c.seq.PostLabelDelay[0]
	if len(c.seq.PostLabelDelay) > 1 {
		if len(index) < 3 || index[2] >= len(c.seq.PostLabelDelay) {
			return fmt.Errorf("no post-label delay for slice %v", index)
		}
		pld = c.seq.PostLabelDelay[index[2]]
	}

	t1Tissue, pdConst := consts[0], consts[1]
	pdCorrection := 1.0
	if t1Tissue > 0 {
		pdCorrection = 1 - math.Exp(-c.seq.TR/t1Tissue)
	}

	num := caslScaleFactor * c.opts.Lambda * math.Exp(pld/t1b)
	den := 2 * c.opts.Alpha * t1b * (1 - math.Exp(-c.seq.LabelTime/t1b))

	cbf := make([]float64, c.n)
	for i := 0; i < c.n; i++ {
		control, label := data[2*i], data[2*i+1]
		pd := label
		if pdConst != 0 {
			pd = pdConst
		}
		pd /= pdCorrection
		cbf[i] = num * (label - control) / (den * pd)
	}

	if c.opts.Average {
		res.Outputs[0][0] = stat.Mean(cbf, nil)
	} else {
		copy(res.Outputs[0], cbf)
	}
	return nil
}

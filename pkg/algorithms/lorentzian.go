package algorithms

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"qitools/pkg/apply"
)

// lorentzBounds holds the lower and upper limits of f0, FWHM, saturation
// and PD
var lorentzBounds = [4][2]float64{
	{-2, 2},
	{0.001, 100},
	{0.1, 1},
	{0.1, 10},
}

// lorentzStart is the initial guess for f0, FWHM, saturation and PD
var lorentzStart = []float64{0, 2, 0.9, 2}

// Lorentz evaluates a Lorentzian line of height a and full width fwhm
// centred on f0 at each offset in f
func Lorentz(f0, fwhm, a float64, f []float64) []float64 {
	out := make([]float64, len(f))
	for i, fi := range f {
		x := (f0 - fi) / (fwhm / 2)
		out[i] = a / (1 + x*x)
	}
	return out
}

// Lorentzian fits a single inverted Lorentzian to the central part of a
// Z-spectrum, between the offsets closest to -2 and +2 ppm. Outputs are the
// centre frequency, the full width at half maximum, the saturation and PD.
type Lorentzian struct {
	frqs     []float64
	lo, hi   int
	maxIters int
}

// NewLorentzian creates a fit for the given saturation offsets in ppm
func NewLorentzian(frqs []float64) (*Lorentzian, error) {
	lo := closest(frqs, -2)
	hi := closest(frqs, 2)
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi-lo < 4 {
		return nil, fmt.Errorf("only %d offsets between -2 and +2 ppm, need at least 4", hi-lo)
	}
	return &Lorentzian{
		frqs:     append([]float64(nil), frqs...),
		lo:       lo,
		hi:       hi,
		maxIters: 2000,
	}, nil
}

func closest(values []float64, target float64) int {
	best := 0
	for i, v := range values {
		if math.Abs(v-target) < math.Abs(values[best]-target) {
			best = i
		}
	}
	return best
}

func (l *Lorentzian) NumInputs() int           { return 1 }
func (l *Lorentzian) NumConsts() int           { return 0 }
func (l *Lorentzian) NumOutputs() int          { return 4 }
func (l *Lorentzian) DataSize() int            { return len(l.frqs) }
func (l *Lorentzian) OutputSize() int          { return 1 }
func (l *Lorentzian) DefaultConsts() []float64 { return []float64{} }
func (l *Lorentzian) Zero() []float64          { return []float64{0} }
func (l *Lorentzian) Names() []string          { return []string{"f0", "w", "sat", "PD"} }

func clampParams(p []float64) {
	for i := range p {
		p[i] = math.Max(lorentzBounds[i][0], math.Min(lorentzBounds[i][1], p[i]))
	}
}

// Apply runs a Nelder-Mead fit. The optimizer and its working memory are
// created per call.
func (l *Lorentzian) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	frqs := l.frqs[l.lo:l.hi]
	z := append([]float64(nil), inputs[0][l.lo:l.hi]...)

	scale := floats.Max(z)
	if scale <= 0 {
		return fmt.Errorf("Z-spectrum has no positive signal")
	}
	floats.Scale(1/scale, z)

	trial := make([]float64, 4)
	cost := func(p []float64) float64 {
		copy(trial, p)
		clampParams(trial)
		sat := Lorentz(trial[0], trial[1], trial[2], frqs)
		sum := 0.0
		for i := range z {
			r := trial[3]*(1-sat[i]) - z[i]
			sum += r * r
		}
		// penalise leaving the box so the simplex walks back inside
		return 0.5*sum + floats.Distance(trial, p, 2)
	}

	settings := &optimize.Settings{
		MajorIterations: l.maxIters,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-9,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: cost}, lorentzStart, settings, &optimize.NelderMead{})
	if err != nil {
		return fmt.Errorf("lorentzian fit failed: %w", err)
	}

	p := append([]float64(nil), result.X...)
	clampParams(p)
	res.Outputs[0][0] = p[0]
	res.Outputs[1][0] = p[1]
	res.Outputs[2][0] = p[2]
	res.Outputs[3][0] = p[3] * scale
	res.Residual[0] = result.F
	res.Iterations = result.MajorIterations

	if len(res.Resids) > 0 {
		sat := Lorentz(p[0], p[1], p[2], l.frqs)
		for i, s := range inputs[0] {
			res.Resids[i] = s - p[3]*scale*(1-sat[i])
		}
	}
	return nil
}

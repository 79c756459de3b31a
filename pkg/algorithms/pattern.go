package algorithms

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"qitools/pkg/apply"
)

// PatternKind selects how a Pattern fills an image
type PatternKind int

const (
	// PatternFill sets every voxel to Low
	PatternFill PatternKind = iota
	// PatternGradient ramps linearly from Low to High along Axis
	PatternGradient
	// PatternSteps ramps from Low to High in Steps discrete blocks along Axis
	PatternSteps
)

// Pattern generates synthetic images from the voxel index alone. Its single
// input only fixes the image geometry.
type Pattern struct {
	Kind  PatternKind
	Axis  int
	Low   float64
	High  float64
	Steps int

	// Wrap, when positive, takes every value modulo Wrap
	Wrap float64

	// Length is the image size along Axis
	Length int
}

// NewFillPattern fills with a constant
func NewFillPattern(value float64) *Pattern {
	return &Pattern{Kind: PatternFill, Low: value, High: value, Length: 1}
}

// ParsePattern parses "axis,low,high" for gradients or
// "axis,low,high,steps" for steps against an image size
func ParsePattern(kind PatternKind, arg string, size []int) (*Pattern, error) {
	fields := strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' })
	want := 3
	if kind == PatternSteps {
		want = 4
	}
	if len(fields) != want {
		return nil, fmt.Errorf("pattern %q needs %d values", arg, want)
	}

	p := &Pattern{Kind: kind}
	var err error
	if p.Axis, err = strconv.Atoi(fields[0]); err != nil {
		return nil, fmt.Errorf("invalid pattern axis %q: %w", fields[0], err)
	}
	if p.Low, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, fmt.Errorf("invalid pattern low value %q: %w", fields[1], err)
	}
	if p.High, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return nil, fmt.Errorf("invalid pattern high value %q: %w", fields[2], err)
	}
	if kind == PatternSteps {
		if p.Steps, err = strconv.Atoi(fields[3]); err != nil {
			return nil, fmt.Errorf("invalid step count %q: %w", fields[3], err)
		}
		if p.Steps < 2 {
			return nil, fmt.Errorf("must have more than 1 step, only have %d", p.Steps)
		}
	}
	if p.Axis < 0 || p.Axis >= len(size) {
		return nil, fmt.Errorf("fill dimension %d is larger than image dimension %d", p.Axis, len(size))
	}
	p.Length = size[p.Axis]
	if kind == PatternSteps && p.Steps > p.Length {
		return nil, fmt.Errorf("%d steps do not fit in %d voxels", p.Steps, p.Length)
	}
	return p, nil
}

func (p *Pattern) NumInputs() int           { return 1 }
func (p *Pattern) NumConsts() int           { return 0 }
func (p *Pattern) NumOutputs() int          { return 1 }
func (p *Pattern) DataSize() int            { return 1 }
func (p *Pattern) OutputSize() int          { return 1 }
func (p *Pattern) DefaultConsts() []float64 { return []float64{} }
func (p *Pattern) Zero() []float64          { return []float64{0} }
func (p *Pattern) Names() []string          { return []string{"image"} }

// Value returns the pattern value at position i along the axis
func (p *Pattern) Value(i int) float64 {
	val := p.Low
	switch p.Kind {
	case PatternGradient:
		if p.Length > 1 {
			val += float64(i) * (p.High - p.Low) / float64(p.Length-1)
		}
	case PatternSteps:
		stepLength := p.Length / p.Steps
		val += float64(i/stepLength) * (p.High - p.Low) / float64(p.Steps-1)
	}
	if p.Wrap > 0 {
		val = math.Mod(val, p.Wrap)
	}
	return val
}

func (p *Pattern) Apply(inputs [][]float64, consts []float64, index []int, res *apply.Result) error {
	i := 0
	if p.Kind != PatternFill {
		i = index[p.Axis]
	}
	res.Outputs[0][0] = p.Value(i)
	return nil
}

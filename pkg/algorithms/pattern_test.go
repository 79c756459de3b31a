package algorithms

import (
	"math"
	"testing"

	"qitools/pkg/apply"
	"qitools/pkg/volume"
)

func TestPatternValues(t *testing.T) {
	tests := []struct {
		name string
		p    *Pattern
		want []float64
	}{
		{"fill", NewFillPattern(3), []float64{3, 3, 3, 3}},
		{"gradient", &Pattern{Kind: PatternGradient, Low: 0, High: 3, Length: 4}, []float64{0, 1, 2, 3}},
		{"steps", &Pattern{Kind: PatternSteps, Low: 0, High: 10, Steps: 2, Length: 4}, []float64{0, 0, 10, 10}},
		{"wrap", &Pattern{Kind: PatternGradient, Low: 0, High: 6, Length: 4, Wrap: 4}, []float64{0, 2, 0, 2}},
		{"single voxel", &Pattern{Kind: PatternGradient, Low: 5, High: 9, Length: 1}, []float64{5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for i, want := range tc.want {
				if got := tc.p.Value(i); math.Abs(got-want) > 1e-12 {
					t.Errorf("Value(%d): expected %f, got %f", i, want, got)
				}
			}
		})
	}
}

func TestParsePattern(t *testing.T) {
	size := []int{8, 4, 2}
	p, err := ParsePattern(PatternSteps, "0,1,4,4", size)
	if err != nil {
		t.Fatalf("ParsePattern failed: %v", err)
	}
	if p.Axis != 0 || p.Low != 1 || p.High != 4 || p.Steps != 4 || p.Length != 8 {
		t.Errorf("Unexpected pattern %+v", p)
	}

	bad := []struct {
		kind PatternKind
		arg  string
	}{
		{PatternGradient, "0,1"},
		{PatternGradient, "3,0,1"},
		{PatternGradient, "x,0,1"},
		{PatternSteps, "0,0,1,1"},
		{PatternSteps, "2,0,1,3"},
	}
	for _, b := range bad {
		if _, err := ParsePattern(b.kind, b.arg, size); err == nil {
			t.Errorf("Expected error for %q", b.arg)
		}
	}
}

// TestPatternEngine fills an image through the engine
func TestPatternEngine(t *testing.T) {
	blank := volume.New([]int{3, 5, 2}, 1)
	p, err := ParsePattern(PatternGradient, "1 0 8", blank.Size)
	if err != nil {
		t.Fatal(err)
	}

	e := apply.NewEngine()
	e.SetPoolsize(2)
	if err := e.SetAlgorithm(p); err != nil {
		t.Fatal(err)
	}
	e.SetInput(0, blank)
	if err := e.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, _ := e.Output(0)
	for z := 0; z < 2; z++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < 3; x++ {
				if got := out.At([]int{x, y, z})[0]; got != float64(2*y) {
					t.Errorf("(%d,%d,%d): expected %d, got %f", x, y, z, 2*y, got)
				}
			}
		}
	}
}

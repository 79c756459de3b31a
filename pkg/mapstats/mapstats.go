// Package mapstats summarises parameter maps over a mask.
package mapstats

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"qitools/pkg/volume"
)

// Summary holds descriptive statistics of one map component
type Summary struct {
	Name      string
	Component int

	// Count is the number of finite voxels inside the mask
	Count int

	// NonFinite is the number of NaN or infinite voxels inside the mask
	NonFinite int

	Mean   float64
	Std    float64
	Median float64
	P05    float64
	P95    float64
	Min    float64
	Max    float64
}

// Values returns the finite values of one component inside the mask.
// A nil mask selects every voxel. The second result counts skipped
// non-finite values.
func Values(v *volume.Volume, component int, mask *volume.Volume) ([]float64, int, error) {
	if component < 0 || component >= v.Components {
		return nil, 0, fmt.Errorf("component %d out of range (volume has %d)", component, v.Components)
	}
	if mask != nil {
		if err := v.SameGeometry(mask); err != nil {
			return nil, 0, fmt.Errorf("mask: %w", err)
		}
	}

	n := v.NumVoxels()
	values := make([]float64, 0, n)
	bad := 0
	for i := 0; i < n; i++ {
		if mask != nil && mask.Pixel(i)[0] == 0 {
			continue
		}
		x := v.Pixel(i)[component]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			bad++
			continue
		}
		values = append(values, x)
	}
	return values, bad, nil
}

// Compute summarises one component of v inside mask
func Compute(name string, v *volume.Volume, component int, mask *volume.Volume) (Summary, error) {
	s := Summary{Name: name, Component: component}
	values, bad, err := Values(v, component, mask)
	if err != nil {
		return s, err
	}
	s.NonFinite = bad
	s.Count = len(values)
	if s.Count == 0 {
		return s, nil
	}

	s.Mean, s.Std = stat.MeanStdDev(values, nil)
	if s.Count < 2 {
		s.Std = 0
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)

	sort.Float64s(values)
	s.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	s.P05 = stat.Quantile(0.05, stat.Empirical, values, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, values, nil)
	return s, nil
}

// ComputeAll summarises every component of v
func ComputeAll(name string, v *volume.Volume, mask *volume.Volume) ([]Summary, error) {
	out := make([]Summary, v.Components)
	for c := range out {
		label := name
		if v.Components > 1 {
			label = fmt.Sprintf("%s[%d]", name, c)
		}
		s, err := Compute(label, v, c, mask)
		if err != nil {
			return nil, err
		}
		out[c] = s
	}
	return out, nil
}

// WriteTable prints summaries as an aligned text table
func WriteTable(w io.Writer, summaries []Summary) error {
	if _, err := fmt.Fprintf(w, "%-20s %8s %12s %12s %12s %12s %12s\n",
		"map", "voxels", "mean", "std", "median", "min", "max"); err != nil {
		return err
	}
	for _, s := range summaries {
		if _, err := fmt.Fprintf(w, "%-20s %8d %12.5g %12.5g %12.5g %12.5g %12.5g\n",
			s.Name, s.Count, s.Mean, s.Std, s.Median, s.Min, s.Max); err != nil {
			return err
		}
	}
	return nil
}

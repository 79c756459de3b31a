package volume

import (
	"errors"
	"testing"

	"qitools/internal/models"
)

// TestNewVolume checks allocation and default metadata
func TestNewVolume(t *testing.T) {
	v := New([]int{4, 3, 2}, 2)

	if v.NumVoxels() != 24 {
		t.Errorf("Expected 24 voxels, got %d", v.NumVoxels())
	}
	if len(v.Data) != 48 {
		t.Errorf("Expected 48 values, got %d", len(v.Data))
	}
	for d := 0; d < 3; d++ {
		if v.Spacing[d] != 1 {
			t.Errorf("Spacing[%d] = %f, want 1", d, v.Spacing[d])
		}
		if v.Direction[d*3+d] != 1 {
			t.Errorf("Direction diagonal %d = %f, want 1", d, v.Direction[d*3+d])
		}
	}
}

// TestOffsetRasterOrder verifies that axis 0 varies fastest
func TestOffsetRasterOrder(t *testing.T) {
	v := New([]int{2, 2, 1}, 1)
	copy(v.Data, []float64{1, 2, 3, 4})

	tests := []struct {
		idx  []int
		want float64
	}{
		{[]int{0, 0, 0}, 1},
		{[]int{1, 0, 0}, 2},
		{[]int{0, 1, 0}, 3},
		{[]int{1, 1, 0}, 4},
	}
	for _, tc := range tests {
		if got := v.At(tc.idx)[0]; got != tc.want {
			t.Errorf("At(%v) = %f, want %f", tc.idx, got, tc.want)
		}
	}
}

// TestSetAndPixel checks vector voxel access
func TestSetAndPixel(t *testing.T) {
	v := New([]int{3, 3}, 3)
	v.Set([]int{2, 1}, 7, 8, 9)

	px := v.Pixel(v.Offset([]int{2, 1}))
	if px[0] != 7 || px[1] != 8 || px[2] != 9 {
		t.Errorf("Unexpected pixel %v", px)
	}
	if v.Offset([]int{2, 1}) != 5 {
		t.Errorf("Expected offset 5, got %d", v.Offset([]int{2, 1}))
	}
}

// TestSameGeometry covers each kind of metadata mismatch
func TestSameGeometry(t *testing.T) {
	ref := New([]int{4, 4, 2}, 1)

	if err := ref.SameGeometry(NewLike(ref, 5)); err != nil {
		t.Errorf("Component count should not matter: %v", err)
	}

	tests := []struct {
		name   string
		modify func(v *Volume) *Volume
	}{
		{"size", func(v *Volume) *Volume { return New([]int{4, 4, 3}, 1) }},
		{"dim", func(v *Volume) *Volume { return New([]int{4, 4}, 1) }},
		{"spacing", func(v *Volume) *Volume { c := v.Clone(); c.Spacing[2] = 2.5; return c }},
		{"origin", func(v *Volume) *Volume { c := v.Clone(); c.Origin[0] = -10; return c }},
		{"direction", func(v *Volume) *Volume { c := v.Clone(); c.Direction[0] = -1; return c }},
		{"nil", func(v *Volume) *Volume { return nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ref.SameGeometry(tc.modify(ref))
			if !errors.Is(err, ErrGeometry) {
				t.Errorf("Expected ErrGeometry, got %v", err)
			}
		})
	}

	// Differences below the tolerance are accepted
	near := ref.Clone()
	near.Spacing[0] += 1e-6
	if err := ref.SameGeometry(near); err != nil {
		t.Errorf("Tiny spacing difference rejected: %v", err)
	}
}

// TestComponentAndStack round-trips components through Stack
func TestComponentAndStack(t *testing.T) {
	a := New([]int{2, 2}, 1)
	b := New([]int{2, 2}, 2)
	for i := 0; i < 4; i++ {
		a.Data[i] = float64(i)
		b.Data[2*i] = float64(10 + i)
		b.Data[2*i+1] = float64(20 + i)
	}

	s, err := Stack(a, b)
	if err != nil {
		t.Fatalf("Stack failed: %v", err)
	}
	if s.Components != 3 {
		t.Fatalf("Expected 3 components, got %d", s.Components)
	}
	px := s.Pixel(3)
	if px[0] != 3 || px[1] != 13 || px[2] != 23 {
		t.Errorf("Unexpected stacked pixel %v", px)
	}

	c, err := s.Component(2)
	if err != nil {
		t.Fatalf("Component failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if c.Data[i] != float64(20+i) {
			t.Errorf("Component 2 voxel %d = %f, want %d", i, c.Data[i], 20+i)
		}
	}

	if _, err := s.Component(3); err == nil {
		t.Error("Expected error for out of range component")
	}
	if _, err := Stack(a, New([]int{3, 2}, 1)); !errors.Is(err, ErrGeometry) {
		t.Errorf("Expected ErrGeometry stacking misaligned volumes, got %v", err)
	}
}

// TestLargestRegion checks the full lattice region
func TestLargestRegion(t *testing.T) {
	v := New([]int{5, 6, 7}, 1)
	want := models.RegionOfSize([]int{5, 6, 7})
	if !v.LargestRegion().Equal(want) {
		t.Errorf("Expected %v, got %v", want, v.LargestRegion())
	}
}

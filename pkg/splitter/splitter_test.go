package splitter

import (
	"testing"

	"qitools/internal/models"
)

// coverage counts how many sub-regions touch each voxel of the lattice
func coverage(t *testing.T, size []int, subs []models.Region) []int {
	t.Helper()
	full := models.RegionOfSize(size)
	counts := make([]int, full.NumVoxels())

	for _, sub := range subs {
		if !full.IsInside(sub) {
			t.Fatalf("Sub-region %v is outside %v", sub, full)
		}
		idx := append([]int(nil), sub.Index...)
		for n := 0; n < sub.NumVoxels(); n++ {
			off, stride := 0, 1
			for d := range size {
				off += idx[d] * stride
				stride *= size[d]
			}
			counts[off]++
			for d := range idx {
				idx[d]++
				if idx[d] < sub.Index[d]+sub.Size[d] {
					break
				}
				idx[d] = sub.Index[d]
			}
		}
	}
	return counts
}

// TestSplitTiling checks that splits are disjoint and cover the region for
// a range of shapes and requested counts
func TestSplitTiling(t *testing.T) {
	shapes := [][]int{
		{10, 10, 4},
		{7, 5, 13},
		{16, 16, 1},
		{9, 1, 1},
		{1, 1, 1},
		{3, 4, 5, 6},
	}
	s := New()

	for _, size := range shapes {
		for requested := 1; requested <= 20; requested++ {
			subs := s.SplitAll(models.RegionOfSize(size), requested)
			if len(subs) < 1 || len(subs) > requested {
				t.Errorf("%v/%d: got %d splits", size, requested, len(subs))
			}
			for i, c := range coverage(t, size, subs) {
				if c != 1 {
					t.Fatalf("%v/%d: voxel %d covered %d times", size, requested, i, c)
				}
			}
		}
	}
}

// TestSplitClampsToSlices requests more splits than the axis has slices
func TestSplitClampsToSlices(t *testing.T) {
	s := New()
	region := models.RegionOfSize([]int{8, 8, 4})

	n := s.NumberOfSplits(region, 10)
	if n > 4 {
		t.Errorf("Expected at most 4 splits, got %d", n)
	}
	for i, c := range coverage(t, []int{8, 8, 4}, s.SplitAll(region, 10)) {
		if c != 1 {
			t.Errorf("Voxel %d covered %d times", i, c)
		}
	}
}

// TestSplitSlowestAxis checks which axis is cut
func TestSplitSlowestAxis(t *testing.T) {
	s := New()

	tests := []struct {
		name     string
		region   models.Region
		split    int
		wantAxis int
	}{
		{"3D", models.RegionOfSize([]int{4, 4, 4}), 2, 2},
		{"single slice", models.RegionOfSize([]int{4, 6, 1}), 2, 1},
		{"line", models.RegionOfSize([]int{9, 1, 1}), 3, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := s.Split(1, tc.split, tc.region)
			for d := range sub.Size {
				if d == tc.wantAxis {
					if sub.Size[d] >= tc.region.Size[d] {
						t.Errorf("Axis %d was not split: %v", d, sub)
					}
				} else if sub.Size[d] != tc.region.Size[d] {
					t.Errorf("Axis %d should not be split: %v", d, sub)
				}
			}
		})
	}
}

// TestSplitPieceSizes checks the slab arithmetic on an offset region
func TestSplitPieceSizes(t *testing.T) {
	s := New()
	region := models.NewRegion([]int{2, 2, 3}, []int{4, 4, 10})

	if n := s.NumberOfSplits(region, 4); n != 4 {
		t.Fatalf("Expected 4 splits, got %d", n)
	}
	// ceil(10/4) = 3 slices per slab, the last gets the remainder
	wantIndex := []int{3, 6, 9, 12}
	wantSize := []int{3, 3, 3, 1}
	for i := 0; i < 4; i++ {
		sub := s.Split(i, 4, region)
		if sub.Index[2] != wantIndex[i] || sub.Size[2] != wantSize[i] {
			t.Errorf("Split %d: %v, want index %d size %d", i, sub, wantIndex[i], wantSize[i])
		}
	}

	// 10 slices into 6 pieces: slabs of 2, only 5 are needed
	if n := s.NumberOfSplits(region, 6); n != 5 {
		t.Errorf("Expected 5 splits, got %d", n)
	}
}

// TestSplitDoesNotAliasInput checks that sub-regions are independent copies
func TestSplitDoesNotAliasInput(t *testing.T) {
	s := New()
	region := models.RegionOfSize([]int{4, 4, 4})
	sub := s.Split(1, 2, region)
	sub.Index[0] = 99
	if region.Index[0] != 0 {
		t.Error("Split modified the input region")
	}
}

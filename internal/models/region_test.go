package models

import (
	"testing"
)

// TestRegionNumVoxels verifies voxel counting for a few shapes
func TestRegionNumVoxels(t *testing.T) {
	tests := []struct {
		size []int
		want int
	}{
		{[]int{2, 2, 1}, 4},
		{[]int{4, 3, 2}, 24},
		{[]int{7}, 7},
		{[]int{5, 0, 3}, 0},
		{nil, 0},
	}

	for _, tc := range tests {
		r := RegionOfSize(tc.size)
		if got := r.NumVoxels(); got != tc.want {
			t.Errorf("NumVoxels(%v) = %d, want %d", tc.size, got, tc.want)
		}
	}
}

// TestRegionIsInside checks containment of sub-regions
func TestRegionIsInside(t *testing.T) {
	full := RegionOfSize([]int{10, 10, 4})

	tests := []struct {
		name string
		sub  Region
		want bool
	}{
		{"same", RegionOfSize([]int{10, 10, 4}), true},
		{"corner", NewRegion([]int{0, 0, 0}, []int{1, 1, 1}), true},
		{"interior", NewRegion([]int{2, 3, 1}, []int{5, 5, 2}), true},
		{"past end", NewRegion([]int{8, 0, 0}, []int{3, 1, 1}), false},
		{"negative", NewRegion([]int{-1, 0, 0}, []int{2, 1, 1}), false},
		{"wrong dim", NewRegion([]int{0, 0}, []int{1, 1}), false},
		{"empty", NewRegion([]int{0, 0, 0}, []int{0, 1, 1}), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := full.IsInside(tc.sub); got != tc.want {
				t.Errorf("IsInside(%v) = %v, want %v", tc.sub, got, tc.want)
			}
		})
	}
}

// TestParseRegion covers the command-line region syntax
func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("10,20,0,32,16,8")
	if err != nil {
		t.Fatalf("ParseRegion failed: %v", err)
	}
	want := NewRegion([]int{10, 20, 0}, []int{32, 16, 8})
	if !r.Equal(want) {
		t.Errorf("Expected %v, got %v", want, r)
	}

	for _, bad := range []string{"", "1,2,3", "a,b", "0,0,0,0", "-1,0,4,4"} {
		if _, err := ParseRegion(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

// TestContainsIndex checks point membership at the borders
func TestContainsIndex(t *testing.T) {
	r := NewRegion([]int{1, 1}, []int{2, 3})

	if !r.ContainsIndex([]int{1, 1}) {
		t.Error("First voxel should be inside")
	}
	if !r.ContainsIndex([]int{2, 3}) {
		t.Error("Last voxel should be inside")
	}
	if r.ContainsIndex([]int{3, 1}) {
		t.Error("Voxel past the end of axis 0 should be outside")
	}
	if r.ContainsIndex([]int{1}) {
		t.Error("Index of the wrong dimension should be outside")
	}
}

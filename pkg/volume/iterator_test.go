package volume

import (
	"testing"

	"qitools/internal/models"
)

// TestIteratorFullRegion walks a whole lattice and checks offsets
func TestIteratorFullRegion(t *testing.T) {
	size := []int{3, 2, 2}
	v := New(size, 1)
	it := NewIterator(size, v.LargestRegion())

	count := 0
	for it.Next() {
		if it.Offset() != count {
			t.Errorf("Voxel %d: offset %d", count, it.Offset())
		}
		if v.Offset(it.Index()) != it.Offset() {
			t.Errorf("Index %v does not match offset %d", it.Index(), it.Offset())
		}
		count++
	}
	if count != 12 {
		t.Errorf("Expected 12 voxels, visited %d", count)
	}
	if it.Next() {
		t.Error("Next should keep returning false after exhaustion")
	}
}

// TestIteratorSubRegion checks the visiting order inside a sub-region
func TestIteratorSubRegion(t *testing.T) {
	size := []int{4, 4, 3}
	v := New(size, 1)
	region := models.NewRegion([]int{1, 2, 1}, []int{2, 2, 2})

	want := [][]int{
		{1, 2, 1}, {2, 2, 1}, {1, 3, 1}, {2, 3, 1},
		{1, 2, 2}, {2, 2, 2}, {1, 3, 2}, {2, 3, 2},
	}

	it := NewIterator(size, region)
	i := 0
	for it.Next() {
		if i >= len(want) {
			t.Fatalf("Iterator visited more than %d voxels", len(want))
		}
		idx := it.Index()
		for d := range idx {
			if idx[d] != want[i][d] {
				t.Errorf("Step %d: index %v, want %v", i, idx, want[i])
				break
			}
		}
		if it.Offset() != v.Offset(want[i]) {
			t.Errorf("Step %d: offset %d, want %d", i, it.Offset(), v.Offset(want[i]))
		}
		i++
	}
	if i != len(want) {
		t.Errorf("Visited %d voxels, want %d", i, len(want))
	}
}

// TestIteratorEmptyRegion checks that an empty region yields nothing
func TestIteratorEmptyRegion(t *testing.T) {
	it := NewIterator([]int{4, 4}, models.NewRegion([]int{0, 0}, []int{0, 4}))
	if it.Next() {
		t.Error("Expected no voxels from an empty region")
	}
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is an axis-aligned box over the voxel lattice.
// Index holds the first voxel of the box and Size the number of voxels
// along each axis. Axis 0 is the fastest varying axis in raster order.
type Region struct {
	// Index is the starting voxel coordinate of the region
	Index []int

	// Size is the extent of the region along each axis
	Size []int
}

// NewRegion creates a region from an index and a size.
// Both slices are copied so the caller may reuse them.
func NewRegion(index, size []int) Region {
	return Region{
		Index: append([]int(nil), index...),
		Size:  append([]int(nil), size...),
	}
}

// RegionOfSize returns the region starting at the origin with the given size
func RegionOfSize(size []int) Region {
	return Region{
		Index: make([]int, len(size)),
		Size:  append([]int(nil), size...),
	}
}

// Dim returns the number of axes of the region
func (r Region) Dim() int {
	return len(r.Size)
}

// NumVoxels returns the number of voxels inside the region
func (r Region) NumVoxels() int {
	if len(r.Size) == 0 {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		n *= s
	}
	return n
}

// Clone returns a deep copy of the region
func (r Region) Clone() Region {
	return NewRegion(r.Index, r.Size)
}

// ContainsIndex reports whether the voxel index lies inside the region
func (r Region) ContainsIndex(idx []int) bool {
	if len(idx) != len(r.Size) {
		return false
	}
	for d := range r.Size {
		if idx[d] < r.Index[d] || idx[d] >= r.Index[d]+r.Size[d] {
			return false
		}
	}
	return true
}

// IsInside reports whether other lies entirely within r.
// An empty region is never considered inside.
func (r Region) IsInside(other Region) bool {
	if other.Dim() != r.Dim() || other.NumVoxels() == 0 {
		return false
	}
	for d := range r.Size {
		if other.Index[d] < r.Index[d] {
			return false
		}
		if other.Index[d]+other.Size[d] > r.Index[d]+r.Size[d] {
			return false
		}
	}
	return true
}

// Equal reports whether two regions cover exactly the same voxels
func (r Region) Equal(other Region) bool {
	if r.Dim() != other.Dim() {
		return false
	}
	for d := range r.Size {
		if r.Index[d] != other.Index[d] || r.Size[d] != other.Size[d] {
			return false
		}
	}
	return true
}

// String formats the region as "[i j k]+[si sj sk]"
func (r Region) String() string {
	return fmt.Sprintf("%v+%v", r.Index, r.Size)
}

// ParseRegion parses a region given as a comma or space separated list of
// start indices followed by sizes, e.g. "10,10,0,32,32,8" for a 3D region.
func ParseRegion(s string) (Region, error) {
	fields := strings.FieldsFunc(s, func(c rune) bool {
		return c == ',' || c == ' ' || c == 'x'
	})
	if len(fields) == 0 || len(fields)%2 != 0 {
		return Region{}, fmt.Errorf("region %q must have an even number of values (index then size)", s)
	}

	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Region{}, fmt.Errorf("invalid region value %q: %w", f, err)
		}
		values[i] = v
	}

	dim := len(values) / 2
	r := NewRegion(values[:dim], values[dim:])
	for d := 0; d < dim; d++ {
		if r.Index[d] < 0 {
			return Region{}, fmt.Errorf("region index must be non-negative, got %v", r.Index)
		}
		if r.Size[d] <= 0 {
			return Region{}, fmt.Errorf("region size must be positive, got %v", r.Size)
		}
	}
	return r, nil
}

// Package volume provides the in-memory voxel volume used by every tool:
// an N-dimensional lattice of fixed-length voxel vectors together with the
// spatial metadata (spacing, origin, direction) needed to place it in space.
package volume

import (
	"errors"
	"fmt"
	"math"

	"qitools/internal/models"
)

// ErrGeometry is returned when two volumes do not share the same lattice
// or spatial metadata.
var ErrGeometry = errors.New("volume geometry mismatch")

// geometryTolerance is the largest difference allowed between spacing,
// origin or direction entries for two volumes to be considered aligned.
const geometryTolerance = 1e-4

// Volume is a voxel lattice with Components values per voxel.
// Data is stored in raster order with axis 0 varying fastest and the
// components of one voxel stored contiguously.
type Volume struct {
	// Size is the number of voxels along each axis
	Size []int

	// Components is the number of scalar values stored per voxel
	Components int

	// Spacing is the physical voxel size along each axis in mm
	Spacing []float64

	// Origin is the physical position of voxel zero
	Origin []float64

	// Direction is the row-major Dim x Dim direction cosine matrix
	Direction []float64

	// Data holds NumVoxels*Components values
	Data []float64
}

// New allocates a zero-filled volume with unit spacing, zero origin and an
// identity direction matrix.
func New(size []int, components int) *Volume {
	dim := len(size)
	if components < 1 {
		components = 1
	}
	v := &Volume{
		Size:       append([]int(nil), size...),
		Components: components,
		Spacing:    make([]float64, dim),
		Origin:     make([]float64, dim),
		Direction:  make([]float64, dim*dim),
	}
	for d := 0; d < dim; d++ {
		v.Spacing[d] = 1
		v.Direction[d*dim+d] = 1
	}
	v.Data = make([]float64, v.NumVoxels()*components)
	return v
}

// NewLike allocates a zero-filled volume with the lattice and spatial
// metadata of ref but a different number of components.
func NewLike(ref *Volume, components int) *Volume {
	v := New(ref.Size, components)
	copy(v.Spacing, ref.Spacing)
	copy(v.Origin, ref.Origin)
	copy(v.Direction, ref.Direction)
	return v
}

// Dim returns the number of axes
func (v *Volume) Dim() int {
	return len(v.Size)
}

// NumVoxels returns the number of voxels in the lattice
func (v *Volume) NumVoxels() int {
	return models.RegionOfSize(v.Size).NumVoxels()
}

// LargestRegion returns the region covering the whole lattice
func (v *Volume) LargestRegion() models.Region {
	return models.RegionOfSize(v.Size)
}

// Offset converts a voxel index to a linear voxel offset.
// The caller is responsible for the index being inside the lattice.
func (v *Volume) Offset(idx []int) int {
	off := 0
	stride := 1
	for d, s := range v.Size {
		off += idx[d] * stride
		stride *= s
	}
	return off
}

// Pixel returns the components of the voxel at a linear offset.
// The returned slice aliases the volume data.
func (v *Volume) Pixel(off int) []float64 {
	return v.Data[off*v.Components : (off+1)*v.Components]
}

// At returns the components of the voxel at idx, aliasing the volume data
func (v *Volume) At(idx []int) []float64 {
	return v.Pixel(v.Offset(idx))
}

// Set stores values into the voxel at idx
func (v *Volume) Set(idx []int, values ...float64) {
	copy(v.At(idx), values)
}

// Fill sets every component of every voxel to value
func (v *Volume) Fill(value float64) {
	for i := range v.Data {
		v.Data[i] = value
	}
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	c := NewLike(v, v.Components)
	copy(c.Data, v.Data)
	return c
}

// SameGeometry checks that other shares the lattice size, spacing, origin
// and direction of v. Component counts are allowed to differ.
func (v *Volume) SameGeometry(other *Volume) error {
	if other == nil {
		return fmt.Errorf("%w: nil volume", ErrGeometry)
	}
	if v.Dim() != other.Dim() {
		return fmt.Errorf("%w: dimension %d vs %d", ErrGeometry, v.Dim(), other.Dim())
	}
	for d := range v.Size {
		if v.Size[d] != other.Size[d] {
			return fmt.Errorf("%w: size %v vs %v", ErrGeometry, v.Size, other.Size)
		}
	}
	if !closeEnough(v.Spacing, other.Spacing) {
		return fmt.Errorf("%w: spacing %v vs %v", ErrGeometry, v.Spacing, other.Spacing)
	}
	if !closeEnough(v.Origin, other.Origin) {
		return fmt.Errorf("%w: origin %v vs %v", ErrGeometry, v.Origin, other.Origin)
	}
	if !closeEnough(v.Direction, other.Direction) {
		return fmt.Errorf("%w: direction %v vs %v", ErrGeometry, v.Direction, other.Direction)
	}
	return nil
}

func closeEnough(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > geometryTolerance {
			return false
		}
	}
	return true
}

// Component extracts a single component into a new scalar volume
func (v *Volume) Component(c int) (*Volume, error) {
	if c < 0 || c >= v.Components {
		return nil, fmt.Errorf("component %d out of range (volume has %d)", c, v.Components)
	}
	out := NewLike(v, 1)
	n := v.NumVoxels()
	for i := 0; i < n; i++ {
		out.Data[i] = v.Data[i*v.Components+c]
	}
	return out, nil
}

// Stack concatenates the components of several aligned volumes voxel by
// voxel, in argument order.
func Stack(vols ...*Volume) (*Volume, error) {
	if len(vols) == 0 {
		return nil, fmt.Errorf("no volumes to stack")
	}
	total := 0
	for i, v := range vols {
		if err := vols[0].SameGeometry(v); err != nil {
			return nil, fmt.Errorf("volume %d: %w", i, err)
		}
		total += v.Components
	}

	out := NewLike(vols[0], total)
	n := out.NumVoxels()
	for i := 0; i < n; i++ {
		dst := out.Pixel(i)
		pos := 0
		for _, v := range vols {
			pos += copy(dst[pos:], v.Pixel(i))
		}
	}
	return out, nil
}

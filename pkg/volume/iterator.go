package volume

import (
	"qitools/internal/models"
)

// Iterator walks a region of a lattice in raster order (axis 0 fastest).
// It yields both the voxel index and the linear voxel offset, so every
// volume sharing the lattice can be read or written at the same position
// without a separate iterator per volume.
type Iterator struct {
	region    models.Region
	strides   []int
	index     []int
	offset    int
	remaining int
	started   bool
}

// NewIterator creates an iterator over region of a lattice with the given
// size. The region must lie inside the lattice.
func NewIterator(size []int, region models.Region) *Iterator {
	dim := len(size)
	it := &Iterator{
		region:    region.Clone(),
		strides:   make([]int, dim),
		index:     append([]int(nil), region.Index...),
		remaining: region.NumVoxels(),
	}
	stride := 1
	for d := 0; d < dim; d++ {
		it.strides[d] = stride
		it.offset += region.Index[d] * stride
		stride *= size[d]
	}
	return it
}

// Next advances to the next voxel. It must be called before the first
// voxel is read and returns false once the region is exhausted.
func (it *Iterator) Next() bool {
	if it.remaining <= 0 {
		return false
	}
	if !it.started {
		it.started = true
		it.remaining--
		return true
	}
	for d := range it.index {
		it.index[d]++
		it.offset += it.strides[d]
		if it.index[d] < it.region.Index[d]+it.region.Size[d] {
			break
		}
		// carry into the next axis
		it.offset -= it.strides[d] * it.region.Size[d]
		it.index[d] = it.region.Index[d]
	}
	it.remaining--
	return true
}

// Index returns the current voxel index. The slice is reused between
// calls to Next and must be copied if retained.
func (it *Iterator) Index() []int {
	return it.index
}

// Offset returns the linear voxel offset of the current voxel
func (it *Iterator) Offset() int {
	return it.offset
}

// Package splitter divides a voxel region into disjoint sub-regions for
// parallel processing.
package splitter

import (
	"qitools/internal/models"
)

// Splitter cuts a region into slabs along its slowest varying axis, the
// highest axis with more than one voxel. Every slab except possibly the
// last has the same thickness, so the achieved count may be smaller than
// the requested one.
type Splitter struct{}

// New returns a slab splitter
func New() *Splitter {
	return &Splitter{}
}

// axis returns the axis to split along, or -1 if every axis has size 1
func axis(region models.Region) int {
	for d := region.Dim() - 1; d >= 0; d-- {
		if region.Size[d] > 1 {
			return d
		}
	}
	return -1
}

// thickness returns the slab thickness along axis for a requested count
func thickness(extent, requested int) int {
	return (extent + requested - 1) / requested
}

// NumberOfSplits returns how many sub-regions Split will produce when asked
// for requested pieces. It is always between 1 and requested.
func (s *Splitter) NumberOfSplits(region models.Region, requested int) int {
	if requested < 1 || region.NumVoxels() == 0 {
		return 1
	}
	ax := axis(region)
	if ax < 0 {
		return 1
	}
	extent := region.Size[ax]
	per := thickness(extent, requested)
	return (extent + per - 1) / per
}

// Split returns sub-region i of the region cut into requested pieces.
// i must be below NumberOfSplits(region, requested).
func (s *Splitter) Split(i, requested int, region models.Region) models.Region {
	sub := region.Clone()
	if requested < 1 || region.NumVoxels() == 0 {
		return sub
	}
	ax := axis(region)
	if ax < 0 {
		return sub
	}

	extent := region.Size[ax]
	per := thickness(extent, requested)
	last := (extent+per-1)/per - 1

	sub.Index[ax] += i * per
	if i < last {
		sub.Size[ax] = per
	} else {
		sub.Size[ax] = extent - i*per
	}
	return sub
}

// SplitAll returns every sub-region for a requested count
func (s *Splitter) SplitAll(region models.Region, requested int) []models.Region {
	n := s.NumberOfSplits(region, requested)
	out := make([]models.Region, n)
	for i := range out {
		out[i] = s.Split(i, requested, region)
	}
	return out
}

// Package visualization exports 2D views of parameter maps as images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"qitools/internal/models"
	"qitools/pkg/mapstats"
	"qitools/pkg/volume"
)

// Viewer renders slices of one component of a 3D map. Values are windowed
// linearly between Low and High onto the 16-bit gray range.
type Viewer struct {
	// vol is the map being viewed
	vol *volume.Volume

	// component is the voxel component rendered
	component int

	// dimensions of the volume
	width  int
	height int
	depth  int

	// Low and High bound the display window
	Low  float64
	High float64
}

// NewViewer creates a viewer over one component of a 2D or 3D volume, with
// the window set from the 5th to 95th percentile of the finite values
func NewViewer(vol *volume.Volume, component int) (*Viewer, error) {
	if vol.Dim() < 2 || vol.Dim() > 3 {
		return nil, fmt.Errorf("viewer needs a 2D or 3D volume, got %dD", vol.Dim())
	}
	if component < 0 || component >= vol.Components {
		return nil, fmt.Errorf("component %d out of range (volume has %d)", component, vol.Components)
	}

	v := &Viewer{
		vol:       vol,
		component: component,
		width:     vol.Size[0],
		height:    vol.Size[1],
		depth:     1,
		High:      1,
	}
	if vol.Dim() == 3 {
		v.depth = vol.Size[2]
	}

	s, err := mapstats.Compute("", vol, component, nil)
	if err != nil {
		return nil, err
	}
	if s.Count > 0 && s.P95 > s.P05 {
		v.Low, v.High = s.P05, s.P95
	} else if s.Count > 0 && s.Max > s.Min {
		v.Low, v.High = s.Min, s.Max
	}
	return v, nil
}

// SetWindow sets the display window
func (v *Viewer) SetWindow(low, high float64) error {
	if !(high > low) {
		return fmt.Errorf("window high %g must exceed low %g", high, low)
	}
	v.Low, v.High = low, high
	return nil
}

// ParseWindow parses a "LOW,HIGH" display window
func ParseWindow(s string) (low, high float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("window %q must be LOW,HIGH", s)
	}
	if low, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid window low %q: %w", parts[0], err)
	}
	if high, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid window high %q: %w", parts[1], err)
	}
	if !(high > low) {
		return 0, 0, fmt.Errorf("window high %g must exceed low %g", high, low)
	}
	return low, high, nil
}

func (v *Viewer) value(x, y, z int) float64 {
	idx := z*v.width*v.height + y*v.width + x
	return v.vol.Data[idx*v.vol.Components+v.component]
}

func (v *Viewer) gray(val float64) color.Gray16 {
	if math.IsNaN(val) {
		return color.Gray16{}
	}
	t := (val - v.Low) / (v.High - v.Low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.value(position, y, z)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.value(x, position, z)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.value(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a region of the viewed component into a new scalar
// volume. The origin of the copy is the physical position of the region's
// first voxel, so it stays aligned with the source.
func (v *Viewer) ExtractRegion(region models.Region) (*volume.Volume, error) {
	if !v.vol.LargestRegion().IsInside(region) {
		return nil, fmt.Errorf("region %v extends beyond volume %v", region, v.vol.Size)
	}

	out := volume.New(region.Size, 1)
	copy(out.Spacing, v.vol.Spacing)
	copy(out.Direction, v.vol.Direction)
	dim := len(out.Origin)
	for r := 0; r < dim; r++ {
		out.Origin[r] = v.vol.Origin[r]
		for c := 0; c < dim; c++ {
			out.Origin[r] += v.vol.Direction[r*dim+c] * float64(region.Index[c]) * v.vol.Spacing[c]
		}
	}

	it := volume.NewIterator(v.vol.Size, region)
	i := 0
	for it.Next() {
		out.Data[i] = v.vol.Pixel(it.Offset())[v.component]
		i++
	}
	return out, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// as <prefix>_<axis>_NNN.jpg
func (v *Viewer) SaveSliceSequence(axis, outputDir, prefix string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if prefix == "" {
		prefix = "slice"
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%03d.jpg", prefix, axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

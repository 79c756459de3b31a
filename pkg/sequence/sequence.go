// Package sequence decodes the acquisition parameter blocks that accompany
// each input image. Blocks are JSON documents; since JSON is a subset of
// YAML they are parsed with the YAML decoder, which also accepts
// hand-written YAML.
package sequence

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// CASL describes a (pseudo-)continuous arterial spin labelling acquisition
type CASL struct {
	// TR is the repetition time in seconds
	TR float64 `yaml:"TR"`

	// LabelTime is the labelling duration in seconds
	LabelTime float64 `yaml:"label_time"`

	// PostLabelDelay holds one delay per slice in slice-timing mode,
	// otherwise a single delay, in seconds
	PostLabelDelay []float64 `yaml:"post_label_delay,flow"`
}

// Validate checks the CASL parameters
func (c *CASL) Validate() error {
	if c.TR <= 0 {
		return fmt.Errorf("CASL TR must be positive, got %g", c.TR)
	}
	if c.LabelTime <= 0 {
		return fmt.Errorf("CASL label_time must be positive, got %g", c.LabelTime)
	}
	if len(c.PostLabelDelay) == 0 {
		return fmt.Errorf("CASL post_label_delay must have at least one value")
	}
	for _, d := range c.PostLabelDelay {
		if d < 0 {
			return fmt.Errorf("CASL post_label_delay must be non-negative, got %g", d)
		}
	}
	return nil
}

// SPGR describes a spoiled gradient echo variable flip-angle acquisition
type SPGR struct {
	// TR is the repetition time in seconds
	TR float64 `yaml:"TR"`

	// FA holds the flip angles in degrees
	FA []float64 `yaml:"FA,flow"`
}

// Size returns the number of volumes in the acquisition
func (s *SPGR) Size() int {
	return len(s.FA)
}

// FlipAnglesRadians returns FA converted to radians
func (s *SPGR) FlipAnglesRadians() []float64 {
	out := make([]float64, len(s.FA))
	for i, fa := range s.FA {
		out[i] = fa * math.Pi / 180
	}
	return out
}

// Validate checks the SPGR parameters
func (s *SPGR) Validate() error {
	if s.TR <= 0 {
		return fmt.Errorf("SPGR TR must be positive, got %g", s.TR)
	}
	if len(s.FA) < 2 {
		return fmt.Errorf("SPGR needs at least 2 flip angles, got %d", len(s.FA))
	}
	for _, fa := range s.FA {
		if fa <= 0 || fa >= 180 {
			return fmt.Errorf("SPGR flip angle out of range: %g", fa)
		}
	}
	return nil
}

// ZSpectrum holds the saturation offsets of a Z-spectrum in ppm
type ZSpectrum struct {
	Frequencies []float64 `yaml:"z_frqs,flow"`
}

// Validate checks the offsets
func (z *ZSpectrum) Validate() error {
	if len(z.Frequencies) < 4 {
		return fmt.Errorf("Z-spectrum needs at least 4 offsets, got %d", len(z.Frequencies))
	}
	return nil
}

// Document is a decoded parameter block. Each tool reads the key it needs.
type Document struct {
	CASL   *CASL     `yaml:"CASL,omitempty"`
	SPGR   *SPGR     `yaml:"SPGR,omitempty"`
	ZFreqs []float64 `yaml:"z_frqs,omitempty,flow"`
}

// Decode parses a parameter block from r
func Decode(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading parameters: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing parameters: %w", err)
	}
	return &doc, nil
}

// Load parses a parameter block from a file, or from stdin when path is
// empty or "-"
func Load(path string) (*Document, error) {
	if path == "" || path == "-" {
		return Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// CASLSequence returns the validated CASL block
func (d *Document) CASLSequence() (*CASL, error) {
	if d.CASL == nil {
		return nil, fmt.Errorf("parameters have no CASL block")
	}
	if err := d.CASL.Validate(); err != nil {
		return nil, err
	}
	return d.CASL, nil
}

// SPGRSequence returns the validated SPGR block
func (d *Document) SPGRSequence() (*SPGR, error) {
	if d.SPGR == nil {
		return nil, fmt.Errorf("parameters have no SPGR block")
	}
	if err := d.SPGR.Validate(); err != nil {
		return nil, err
	}
	return d.SPGR, nil
}

// ZSpectrum returns the validated Z-spectrum offsets
func (d *Document) ZSpectrum() (*ZSpectrum, error) {
	z := &ZSpectrum{Frequencies: d.ZFreqs}
	if err := z.Validate(); err != nil {
		return nil, err
	}
	return z, nil
}

// Encode writes a parameter block as YAML
func Encode(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("error writing parameters: %w", err)
	}
	return enc.Close()
}

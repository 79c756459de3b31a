package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ErrChecksum is returned when voxel data does not match the header digest
var ErrChecksum = errors.New("voxel data checksum mismatch")

// Extension is the file extension used for volume files
const Extension = ".qvol"

const (
	magic         = "QVOL1\n"
	headerEnd     = "...\n"
	formatVersion = 1

	datatypeFloat32 = "float32"

	// CompressionZstd stores voxel data as a zstd stream
	CompressionZstd = "zstd"
	// CompressionNone stores raw little-endian voxel data
	CompressionNone = "none"
)

// Header is the YAML document at the start of every volume file
type Header struct {
	Version     int       `yaml:"version"`
	Size        []int     `yaml:"size,flow"`
	Components  int       `yaml:"components"`
	Spacing     []float64 `yaml:"spacing,flow"`
	Origin      []float64 `yaml:"origin,flow"`
	Direction   []float64 `yaml:"direction,flow"`
	Datatype    string    `yaml:"datatype"`
	Compression string    `yaml:"compression"`
	Description string    `yaml:"description,omitempty"`

	// Checksum is the hex BLAKE3-256 digest of the uncompressed voxel data
	Checksum string `yaml:"checksum,omitempty"`
}

// WriteOptions controls how a volume is written
type WriteOptions struct {
	// Compression is CompressionZstd (default) or CompressionNone
	Compression string

	// Level is a zstd level name: fastest, default, better or best
	Level string

	// Description is stored verbatim in the header
	Description string
}

// Write stores a volume at path, creating parent directories as needed
func Write(path string, v *Volume, opts WriteOptions) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %w", err)
	}

	if err := Encode(file, v, opts); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Encode writes a volume to w in the .qvol layout
func Encode(w io.Writer, v *Volume, opts WriteOptions) error {
	compression := opts.Compression
	if compression == "" {
		compression = CompressionZstd
	}
	if compression != CompressionZstd && compression != CompressionNone {
		return fmt.Errorf("unknown compression %q", compression)
	}

	payload := make([]byte, 4*len(v.Data))
	for i, val := range v.Data {
		binary.LittleEndian.PutUint32(payload[4*i:], math.Float32bits(float32(val)))
	}
	sum := blake3.Sum256(payload)

	hdr := Header{
		Version:     formatVersion,
		Size:        v.Size,
		Components:  v.Components,
		Spacing:     v.Spacing,
		Origin:      v.Origin,
		Direction:   v.Direction,
		Datatype:    datatypeFloat32,
		Compression: compression,
		Description: opts.Description,
		Checksum:    hex.EncodeToString(sum[:]),
	}
	hdrBytes, err := yaml.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("error marshaling header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}
	if _, err := bw.Write(hdrBytes); err != nil {
		return err
	}
	if _, err := bw.WriteString(headerEnd); err != nil {
		return err
	}

	if compression == CompressionZstd {
		_, level := zstd.EncoderLevelFromString(opts.Level)
		enc, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(level))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if _, err := enc.Write(payload); err != nil {
			enc.Close()
			return fmt.Errorf("failed to compress voxel data: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	} else if _, err := bw.Write(payload); err != nil {
		return err
	}

	return bw.Flush()
}

// Read loads a volume file
func Read(path string) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	v, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

// ReadHeader loads only the header of a volume file
func ReadHeader(path string) (*Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hdr, err := decodeHeader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return hdr, nil
}

// Decode reads a volume in the .qvol layout from r
func Decode(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)
	hdr, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}

	v := New(hdr.Size, hdr.Components)
	if len(hdr.Spacing) == v.Dim() {
		copy(v.Spacing, hdr.Spacing)
	}
	if len(hdr.Origin) == v.Dim() {
		copy(v.Origin, hdr.Origin)
	}
	if len(hdr.Direction) == v.Dim()*v.Dim() {
		copy(v.Direction, hdr.Direction)
	}

	var src io.Reader = br
	if hdr.Compression == CompressionZstd {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		src = dec
	}

	payload := make([]byte, 4*len(v.Data))
	if _, err := io.ReadFull(src, payload); err != nil {
		return nil, fmt.Errorf("truncated voxel data: %w", err)
	}
	if hdr.Checksum != "" {
		sum := blake3.Sum256(payload)
		if hex.EncodeToString(sum[:]) != hdr.Checksum {
			return nil, ErrChecksum
		}
	}
	for i := range v.Data {
		v.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:])))
	}
	return v, nil
}

func decodeHeader(br *bufio.Reader) (*Header, error) {
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(br, m); err != nil || string(m) != magic {
		return nil, fmt.Errorf("not a volume file (bad magic)")
	}

	var buf bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("unterminated header: %w", err)
		}
		if line == headerEnd {
			break
		}
		buf.WriteString(line)
	}

	var hdr Header
	if err := yaml.Unmarshal(buf.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("error parsing header: %w", err)
	}
	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", hdr.Version)
	}
	if hdr.Datatype != datatypeFloat32 {
		return nil, fmt.Errorf("unsupported datatype %q", hdr.Datatype)
	}
	if len(hdr.Size) == 0 || hdr.Components < 1 {
		return nil, fmt.Errorf("invalid header: size %v components %d", hdr.Size, hdr.Components)
	}
	for _, s := range hdr.Size {
		if s <= 0 {
			return nil, fmt.Errorf("invalid header: size %v", hdr.Size)
		}
	}
	return &hdr, nil
}

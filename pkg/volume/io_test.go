package volume

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testVolume() *Volume {
	v := New([]int{5, 4, 3}, 2)
	v.Spacing = []float64{1.5, 1.5, 3}
	v.Origin = []float64{-10, 20.5, 0}
	for i := range v.Data {
		v.Data[i] = float64(i)*0.25 - 7
	}
	return v
}

// TestWriteReadRoundTrip writes a volume with each compression mode
func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, compression := range []string{CompressionZstd, CompressionNone} {
		t.Run(compression, func(t *testing.T) {
			v := testVolume()
			path := filepath.Join(dir, "nested", "vol_"+compression+Extension)

			opts := WriteOptions{Compression: compression, Level: "best", Description: "test map"}
			if err := Write(path, v, opts); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if err := v.SameGeometry(got); err != nil {
				t.Errorf("Geometry lost: %v", err)
			}
			if got.Components != 2 {
				t.Errorf("Expected 2 components, got %d", got.Components)
			}
			for i := range v.Data {
				if got.Data[i] != v.Data[i] {
					t.Fatalf("Value %d: got %f, want %f", i, got.Data[i], v.Data[i])
				}
			}

			hdr, err := ReadHeader(path)
			if err != nil {
				t.Fatalf("ReadHeader failed: %v", err)
			}
			if hdr.Compression != compression || hdr.Description != "test map" {
				t.Errorf("Unexpected header %+v", hdr)
			}
		})
	}
}

// TestZstdIsSmaller checks that a constant volume compresses
func TestZstdIsSmaller(t *testing.T) {
	v := New([]int{32, 32, 8}, 1)
	v.Fill(3)

	var raw, packed bytes.Buffer
	if err := Encode(&raw, v, WriteOptions{Compression: CompressionNone}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := Encode(&packed, v, WriteOptions{}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if packed.Len() >= raw.Len() {
		t.Errorf("Expected compressed size < %d, got %d", raw.Len(), packed.Len())
	}
}

// TestDecodeErrors covers malformed files
func TestDecodeErrors(t *testing.T) {
	var good bytes.Buffer
	if err := Encode(&good, testVolume(), WriteOptions{Compression: CompressionNone}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	full := good.String()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad magic", "NIFTI\n" + full[len(magic):]},
		{"no terminator", magic + "version: 1\n"},
		{"bad version", strings.Replace(full, "version: 1", "version: 9", 1)},
		{"truncated", full[:len(full)-10]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tc.input)); err == nil {
				t.Error("Expected decode error")
			}
		})
	}

	if err := Encode(&bytes.Buffer{}, testVolume(), WriteOptions{Compression: "lz4"}); err == nil {
		t.Error("Expected error for unknown compression")
	}
}

// TestReadMissingFile checks the error path for a missing file
func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.qvol"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

// TestChecksum detects corrupted voxel data
func TestChecksum(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testVolume(), WriteOptions{Compression: CompressionNone}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if !strings.Contains(string(data), "checksum: ") {
		t.Fatal("Expected checksum in header")
	}

	// flip a bit in the last voxel
	data[len(data)-1] ^= 0x01
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrChecksum) {
		t.Errorf("Expected ErrChecksum, got %v", err)
	}
}

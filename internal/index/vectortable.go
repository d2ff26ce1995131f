// Package index provides the persisted segment index: a binary vector table,
// a SQLite metadata table, and the immutable in-memory snapshot joined from
// the two.
package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// WriteVectorTable writes segment vectors to path. Layout (little-endian):
// dimensions (4), count (4), then per segment: idLen (4), id bytes,
// vector (dimensions*4 bytes). Each call writes a unique temp file in the
// target directory and renames it into place, so readers never observe a
// partial table and overlapping writers cannot interleave into one file.
func WriteVectorTable(path string, segments []*models.Segment, dimensions int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := writeVectors(f, segments, dimensions); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vector table: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish vector table: %w", err)
	}
	return nil
}

func writeVectors(f *os.File, segments []*models.Segment, dimensions int) error {
	if err := binary.Write(f, binary.LittleEndian, uint32(dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(segments))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, seg := range segments {
		if len(seg.Embedding) != dimensions {
			return fmt.Errorf("segment %s: vector dimension mismatch: got %d, expected %d",
				seg.ID, len(seg.Embedding), dimensions)
		}
		idBytes := []byte(seg.ID)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(seg.Embedding)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// ReadVectorTable reads the vector table at path and returns the segment-id
// to vector mapping plus the dimensionality.
func ReadVectorTable(path string) (map[string][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open vector table: %w", err)
	}
	defer f.Close()

	var dims, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dims); err != nil {
		return nil, 0, fmt.Errorf("%w: read dimensions: %v", models.ErrIndexCorrupt, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, 0, fmt.Errorf("%w: read count: %v", models.ErrIndexCorrupt, err)
	}
	vectors := make(map[string][]float32, n)
	buf := make([]byte, int(dims)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, 0, fmt.Errorf("%w: read id len: %v", models.ErrIndexCorrupt, err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return nil, 0, fmt.Errorf("%w: read id: %v", models.ErrIndexCorrupt, err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, 0, fmt.Errorf("%w: read vector: %v", models.ErrIndexCorrupt, err)
		}
		id := string(idBytes)
		if _, dup := vectors[id]; dup {
			return nil, 0, fmt.Errorf("%w: duplicate segment id %s", models.ErrIndexCorrupt, id)
		}
		vectors[id] = bytesToFloat32Slice(buf)
	}
	return vectors, int(dims), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

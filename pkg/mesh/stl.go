package mesh

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Triangle represents a single triangle in an STL model with its
// precomputed surface normal.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// stlHeaderSize is the fixed binary STL header length in bytes.
const stlHeaderSize = 80

// SaveToSTL writes triangles to a binary STL file. Binary STL is the
// standard interchange format consumed by downstream mesh viewers.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer file.Close()

	// 80-byte header; contents are ignored by readers
	header := make([]byte, stlHeaderSize)
	copy(header, []byte("cellshape3d binary STL"))
	if _, err := file.Write(header); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}

	// Triangle count
	if err := binary.Write(file, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %v", err)
	}

	// Each triangle: normal, three vertices, attribute byte count
	for _, t := range triangles {
		for _, vec := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, v := range vec {
				if err := binary.Write(file, binary.LittleEndian, v); err != nil {
					return fmt.Errorf("failed to write triangle data: %v", err)
				}
			}
		}
		if err := binary.Write(file, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("failed to write attribute count: %v", err)
		}
	}

	return nil
}

// LoadFromSTL reads a binary STL file back into triangles. Used by
// tests and tooling that verify persisted artifacts.
func LoadFromSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open STL file: %v", err)
	}
	defer file.Close()

	header := make([]byte, stlHeaderSize)
	if _, err := file.Read(header); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %v", err)
	}

	var count uint32
	if err := binary.Read(file, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read triangle count: %v", err)
	}

	triangles := make([]Triangle, 0, count)
	for i := uint32(0); i < count; i++ {
		var t Triangle
		vecs := []*[3]float32{&t.Normal, &t.Vertex1, &t.Vertex2, &t.Vertex3}
		for _, vec := range vecs {
			for j := 0; j < 3; j++ {
				if err := binary.Read(file, binary.LittleEndian, &vec[j]); err != nil {
					return nil, fmt.Errorf("failed to read triangle %d: %v", i, err)
				}
			}
		}
		var attr uint16
		if err := binary.Read(file, binary.LittleEndian, &attr); err != nil {
			return nil, fmt.Errorf("failed to read attribute count: %v", err)
		}
		triangles = append(triangles, t)
	}

	return triangles, nil
}

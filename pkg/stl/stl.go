package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/pkg/tubemesh"
)

// Triangle is a single STL facet with its outward normal
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromMesh flattens a tube mesh into STL facets, splitting quads and
// computing unit normals from the winding order.
func FromMesh(m *tubemesh.Mesh) []Triangle {
	tris := m.Triangles()
	out := make([]Triangle, 0, len(tris))
	for _, tri := range tris {
		a := m.Vertices[tri[0]]
		b := m.Vertices[tri[1]]
		c := m.Vertices[tri[2]]
		out = append(out, Triangle{
			Normal:  vec32(normalOf(a, b, c)),
			Vertex1: vec32(a),
			Vertex2: vec32(b),
			Vertex3: vec32(c),
		})
	}
	return out
}

// normalOf computes the unit normal of a triangle wound a, b, c. Degenerate
// triangles get a zero normal, which binary STL readers accept.
func normalOf(a, b, c r3.Vector) r3.Vector {
	n := b.Sub(a).Cross(c.Sub(a))
	if norm := n.Norm(); norm > 1e-12 {
		return n.Mul(1 / norm)
	}
	return r3.Vector{}
}

func vec32(v r3.Vector) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// SaveToSTL writes triangles as a binary STL file: an 80-byte header, a
// little-endian uint32 facet count and one 50-byte record per facet.
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	var header [80]byte
	copy(header[:], "vessel-tool binary STL")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %v", err)
	}
	for _, tri := range triangles {
		if err := binary.Write(w, binary.LittleEndian, tri); err != nil {
			return fmt.Errorf("failed to write triangle: %v", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("failed to write attribute bytes: %v", err)
		}
	}
	return w.Flush()
}

// LoadFromSTL reads a binary STL file back into triangles. The declared
// facet count is checked against the file size before anything is allocated.
func LoadFromSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open STL file: %v", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat STL file: %v", err)
	}

	r := bufio.NewReader(file)
	var header [80]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %v", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read triangle count: %v", err)
	}
	if want := int64(84) + int64(count)*50; info.Size() < want {
		return nil, fmt.Errorf("failed to read STL file: %d bytes for %d declared triangles", info.Size(), count)
	}

	triangles := make([]Triangle, 0, count)
	for i := uint32(0); i < count; i++ {
		var tri Triangle
		if err := binary.Read(r, binary.LittleEndian, &tri); err != nil {
			return nil, fmt.Errorf("failed to read triangle %d: %v", i, err)
		}
		var attr uint16
		if err := binary.Read(r, binary.LittleEndian, &attr); err != nil {
			return nil, fmt.Errorf("failed to read attribute bytes: %v", err)
		}
		triangles = append(triangles, tri)
	}
	return triangles, nil
}

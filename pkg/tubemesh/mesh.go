package tubemesh

import (
	"github.com/golang/geo/r3"
)

// Mesh is an indexed surface built from tube rings.
type Mesh struct {
	// Vertices holds every ring, cap and pole position
	Vertices []r3.Vector

	// Quads are vertex index quadruples forming the tube side walls,
	// wound counterclockwise seen from outside
	Quads [][4]int

	// Tris are vertex index triples from caps, welds and hemispheres
	Tris [][3]int
}

func (m *Mesh) addVertex(p r3.Vector) int {
	m.Vertices = append(m.Vertices, p)
	return len(m.Vertices) - 1
}

func (m *Mesh) addRing(verts []r3.Vector) []int {
	idx := make([]int, len(verts))
	for i, v := range verts {
		idx[i] = m.addVertex(v)
	}
	return idx
}

// stitch connects two rings slot by slot with side quads running from ring a
// toward ring b. Slots that share a vertex on ring a collapse into
// triangles, which happens on welded junction rings.
func (m *Mesh) stitch(a, b []int) {
	s := len(a)
	for j := 0; j < s; j++ {
		k := (j + 1) % s
		if a[j] == a[k] {
			m.Tris = append(m.Tris, [3]int{a[j], b[k], b[j]})
			continue
		}
		m.Quads = append(m.Quads, [4]int{a[j], a[k], b[k], b[j]})
	}
}

// fanCap closes a ring with a triangle fan around center. Distal caps face
// along the travel direction, proximal caps against it.
func (m *Mesh) fanCap(ring []int, center r3.Vector, distal bool) {
	c := m.addVertex(center)
	s := len(ring)
	for j := 0; j < s; j++ {
		k := (j + 1) % s
		if ring[j] == ring[k] {
			continue
		}
		if distal {
			m.Tris = append(m.Tris, [3]int{c, ring[j], ring[k]})
		} else {
			m.Tris = append(m.Tris, [3]int{c, ring[k], ring[j]})
		}
	}
}

// Triangles returns the surface as triangles, splitting each quad along its
// first diagonal.
func (m *Mesh) Triangles() [][3]int {
	out := make([][3]int, 0, len(m.Tris)+2*len(m.Quads))
	out = append(out, m.Tris...)
	for _, q := range m.Quads {
		out = append(out, [3]int{q[0], q[1], q[2]})
		out = append(out, [3]int{q[0], q[2], q[3]})
	}
	return out
}

// Transform applies fn to every vertex in place.
func (m *Mesh) Transform(fn func(r3.Vector) r3.Vector) {
	for i, v := range m.Vertices {
		m.Vertices[i] = fn(v)
	}
}

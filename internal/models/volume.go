package models

import (
	"github.com/golang/geo/r3"
)

// Voxel is an integer coordinate in mask index space
type Voxel struct {
	X, Y, Z int
}

// Vec converts the voxel to a float vector in voxel units.
func (v Voxel) Vec() r3.Vector {
	return r3.Vector{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Less orders voxels lexicographically by X, then Y, then Z.
func (v Voxel) Less(o Voxel) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

// NoPrior marks a line point with no predecessor (the first point of a
// root trace).
var NoPrior = Voxel{X: -1, Y: -1, Z: -1}

// LinePoint is a skeleton voxel together with the voxel it was reached from
type LinePoint struct {
	// Point is the skeleton voxel itself
	Point Voxel

	// Prior is the voxel the trace arrived from; NoPrior for the first
	// point of the root line
	Prior Voxel
}

// Mask represents a binary 3D volume
type Mask struct {
	// Data is the mask as a 1D array in row-major order (x fastest)
	Data []bool

	// Width is the extent of the mask along X in voxels
	Width int

	// Height is the extent of the mask along Y in voxels
	Height int

	// Depth is the extent of the mask along Z in voxels
	Depth int

	// Spacing is the physical size of one voxel step along each axis in mm
	Spacing [3]float64

	// Origin is the physical position of voxel (0,0,0) in mm
	Origin [3]float64

	// Direction maps voxel axes to physical axes (row-major 3x3)
	Direction [3][3]float64
}

// NewMask allocates an empty mask with unit spacing, zero origin and an
// identity direction matrix.
func NewMask(width, height, depth int) *Mask {
	return &Mask{
		Data:      make([]bool, width*height*depth),
		Width:     width,
		Height:    height,
		Depth:     depth,
		Spacing:   [3]float64{1, 1, 1},
		Direction: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}
}

// Index returns the Data offset of voxel (x,y,z).
func (m *Mask) Index(x, y, z int) int {
	return z*m.Width*m.Height + y*m.Width + x
}

// InBounds reports whether v lies inside the mask extents.
func (m *Mask) InBounds(v Voxel) bool {
	return v.X >= 0 && v.X < m.Width &&
		v.Y >= 0 && v.Y < m.Height &&
		v.Z >= 0 && v.Z < m.Depth
}

// At returns the mask value at v. Voxels outside the extents read as false.
func (m *Mask) At(v Voxel) bool {
	if !m.InBounds(v) {
		return false
	}
	return m.Data[m.Index(v.X, v.Y, v.Z)]
}

// Set writes the mask value at v. Out-of-bounds writes are ignored.
func (m *Mask) Set(v Voxel, val bool) {
	if !m.InBounds(v) {
		return
	}
	m.Data[m.Index(v.X, v.Y, v.Z)] = val
}

// ToPhysical maps a point from voxel space to physical space using the
// mask's spacing, origin and direction.
func (m *Mask) ToPhysical(p r3.Vector) r3.Vector {
	sx := p.X * m.Spacing[0]
	sy := p.Y * m.Spacing[1]
	sz := p.Z * m.Spacing[2]
	return r3.Vector{
		X: m.Direction[0][0]*sx + m.Direction[0][1]*sy + m.Direction[0][2]*sz + m.Origin[0],
		Y: m.Direction[1][0]*sx + m.Direction[1][1]*sy + m.Direction[1][2]*sz + m.Origin[1],
		Z: m.Direction[2][0]*sx + m.Direction[2][1]*sy + m.Direction[2][2]*sz + m.Origin[2],
	}
}

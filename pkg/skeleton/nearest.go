package skeleton

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ChenxrC/vessel-tool/internal/models"
)

// site lifts a skeleton voxel into KD-tree coordinates
type site struct {
	pos r3.Vector
	vox models.Voxel
}

// Compare implements the kdtree.Comparable interface
func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return s.pos.X - q.pos.X
	case 1:
		return s.pos.Y - q.pos.Y
	case 2:
		return s.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (s site) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two sites
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx := s.pos.X - q.pos.X
	dy := s.pos.Y - q.pos.Y
	dz := s.pos.Z - q.pos.Z
	return dx*dx + dy*dy + dz*dz // Return squared distance for efficiency
}

// sites is a collection of site that satisfies kdtree.Interface
type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p sites) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sitePlane{sites: p, Dim: d}, kdtree.MedianOfRandoms(sitePlane{sites: p, Dim: d}, 100))
}

// sitePlane implements sort.Interface and kdtree.SortSlicer for sites
type sitePlane struct {
	sites
	kdtree.Dim
}

func (p sitePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sites[i].pos.X < p.sites[j].pos.X
	case 1:
		return p.sites[i].pos.Y < p.sites[j].pos.Y
	case 2:
		return p.sites[i].pos.Z < p.sites[j].pos.Z
	default:
		panic("illegal dimension")
	}
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	return sitePlane{sites: p.sites[start:end], Dim: p.Dim}
}

func (p sitePlane) Swap(i, j int) {
	p.sites[i], p.sites[j] = p.sites[j], p.sites[i]
}

// NearestVoxel returns the candidate voxel closest to the anchor point.
// The KD-tree query finds the nearest distance; exact ties resolve to the
// lexicographically smallest voxel so root selection is deterministic.
func NearestVoxel(candidates []models.Voxel, anchor r3.Vector) (models.Voxel, error) {
	if len(candidates) == 0 {
		return models.Voxel{}, fmt.Errorf("failed to select nearest voxel: empty candidate set")
	}

	points := make(sites, len(candidates))
	for i, v := range candidates {
		points[i] = site{pos: v.Vec(), vox: v}
	}
	tree := kdtree.New(points, true)

	got, best := tree.Nearest(site{pos: anchor})
	nearest := got.(site).vox

	for _, v := range candidates {
		d := site{pos: v.Vec()}.Distance(site{pos: anchor})
		if d == best && v.Less(nearest) {
			nearest = v
		}
	}
	return nearest, nil
}

// Centroid returns the mean position of the voxel set in voxel units.
func Centroid(voxels []models.Voxel) r3.Vector {
	if len(voxels) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, v := range voxels {
		sum = sum.Add(v.Vec())
	}
	return sum.Mul(1 / float64(len(voxels)))
}

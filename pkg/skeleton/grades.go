package skeleton

import (
	"fmt"
	"sort"

	"github.com/ChenxrC/vessel-tool/internal/models"
)

// Connectivity selects which voxel neighborhoods count as adjacent
type Connectivity int

const (
	Connectivity6  Connectivity = 6  // face neighbors
	Connectivity18 Connectivity = 18 // face and edge neighbors
	Connectivity26 Connectivity = 26 // face, edge and corner neighbors
)

// Valid reports whether c is one of the supported neighborhoods.
func (c Connectivity) Valid() bool {
	return c == Connectivity6 || c == Connectivity18 || c == Connectivity26
}

// Offsets returns the neighbor offsets for the connectivity. The offsets are
// in lexicographic order so traversals visit neighbors deterministically.
func (c Connectivity) Offsets() []models.Voxel {
	switch c {
	case Connectivity6:
		return offsets6
	case Connectivity18:
		return offsets18
	default:
		return offsets26
	}
}

var (
	offsets6  = buildOffsets(1)
	offsets18 = buildOffsets(2)
	offsets26 = buildOffsets(3)
)

// buildOffsets enumerates the non-zero offsets in {-1,0,1}^3 with squared
// length at most maxSq, in lexicographic (X, Y, Z) order.
func buildOffsets(maxSq int) []models.Voxel {
	var offs []models.Voxel
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				if dx*dx+dy*dy+dz*dz > maxSq {
					continue
				}
				offs = append(offs, models.Voxel{X: dx, Y: dy, Z: dz})
			}
		}
	}
	return offs
}

// DisconnectedSkeletonError reports skeleton voxels that grade labeling
// could not reach from the root
type DisconnectedSkeletonError struct {
	// Root is the voxel the search started from
	Root models.Voxel

	// Unreachable lists the voxels no path reached, lexicographically sorted
	Unreachable []models.Voxel
}

func (e *DisconnectedSkeletonError) Error() string {
	shown := e.Unreachable
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Sprintf("skeleton is disconnected: %d voxels unreachable from root %v, first %v",
		len(e.Unreachable), e.Root, shown)
}

// Grades holds the BFS depth and predecessor of every skeleton voxel
// reachable from the root
type Grades struct {
	level  map[models.Voxel]int
	parent map[models.Voxel]models.Voxel
	root   models.Voxel
	conn   Connectivity
	max    int
}

// At returns the grade of v and whether v was labeled.
func (g *Grades) At(v models.Voxel) (int, bool) {
	lv, ok := g.level[v]
	return lv, ok
}

// Parent returns the voxel v was first reached from. The root has no parent.
func (g *Grades) Parent(v models.Voxel) (models.Voxel, bool) {
	p, ok := g.parent[v]
	return p, ok
}

// Root returns the voxel the labeling started from.
func (g *Grades) Root() models.Voxel { return g.root }

// Max returns the highest grade assigned.
func (g *Grades) Max() int { return g.max }

// Len returns the number of labeled voxels.
func (g *Grades) Len() int { return len(g.level) }

// Connectivity returns the neighborhood the labeling used.
func (g *Grades) Connectivity() Connectivity { return g.conn }

// Labeler assigns breadth-first grades to skeleton voxels
type Labeler struct {
	conn Connectivity
}

// NewLabeler creates a labeler for the given connectivity. Invalid values
// fall back to 26-connectivity.
func NewLabeler(conn Connectivity) *Labeler {
	if !conn.Valid() {
		conn = Connectivity26
	}
	return &Labeler{conn: conn}
}

// Label runs a breadth-first search over the skeleton voxels starting at the
// root and records each voxel's depth and predecessor. The root gets grade 0
// and every other voxel the length of its shortest path from the root.
// Neighbors are expanded in the fixed offset order, so the assignment is
// deterministic for a given input.
//
// Voxels the search cannot reach make the skeleton invalid and are returned
// inside a DisconnectedSkeletonError.
func (l *Labeler) Label(voxels []models.Voxel, root models.Voxel) (*Grades, error) {
	if len(voxels) == 0 {
		return nil, fmt.Errorf("failed to label grades: empty skeleton")
	}
	members := make(map[models.Voxel]struct{}, len(voxels))
	for _, v := range voxels {
		members[v] = struct{}{}
	}
	if _, ok := members[root]; !ok {
		return nil, fmt.Errorf("failed to label grades: root %v is not a skeleton voxel", root)
	}

	g := &Grades{
		level:  make(map[models.Voxel]int, len(members)),
		parent: make(map[models.Voxel]models.Voxel, len(members)),
		root:   root,
		conn:   l.conn,
	}
	offsets := l.conn.Offsets()

	queue := []models.Voxel{root}
	g.level[root] = 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := g.level[cur]
		if depth > g.max {
			g.max = depth
		}
		for _, off := range offsets {
			next := models.Voxel{X: cur.X + off.X, Y: cur.Y + off.Y, Z: cur.Z + off.Z}
			if _, ok := members[next]; !ok {
				continue
			}
			if _, seen := g.level[next]; seen {
				continue
			}
			g.level[next] = depth + 1
			g.parent[next] = cur
			queue = append(queue, next)
		}
	}

	if len(g.level) != len(members) {
		unreachable := make([]models.Voxel, 0, len(members)-len(g.level))
		for v := range members {
			if _, ok := g.level[v]; !ok {
				unreachable = append(unreachable, v)
			}
		}
		sort.Slice(unreachable, func(i, j int) bool { return unreachable[i].Less(unreachable[j]) })
		return nil, &DisconnectedSkeletonError{Root: root, Unreachable: unreachable}
	}

	return g, nil
}

package skeleton

import (
	"github.com/ChenxrC/vessel-tool/internal/models"
)

// Segment is a maximal voxel run produced by tracing the graded skeleton
type Segment struct {
	// Points is the ordered run, proximal end first
	Points []models.LinePoint

	// Parent is the index of the segment this one branched from,
	// -1 for the root segment
	Parent int

	// Attach is the junction voxel on the parent segment this run
	// starts from; NoPrior for the root segment
	Attach models.Voxel
}

// Segments traces the graded skeleton into branch runs. Tracing starts at
// the root and repeatedly inspects the unconsumed neighbors of the current
// tail whose grade is strictly higher: a single such neighbor extends the
// run, two or more end the run at a junction and spawn one child run per
// neighbor in lexicographic order, none end the run at a leaf.
//
// Every labeled voxel's predecessor chain ascends one grade per hop, so
// every voxel is consumed by exactly one run: the union of all segment
// points is the labeled voxel set.
func (g *Grades) Segments() []Segment {
	type pending struct {
		seed   models.Voxel
		prior  models.Voxel
		parent int
	}

	offsets := g.conn.Offsets()
	consumed := make(map[models.Voxel]struct{}, len(g.level))
	consumed[g.root] = struct{}{}

	segments := make([]Segment, 0, 16)
	queue := []pending{{seed: g.root, prior: models.NoPrior, parent: -1}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		seg := Segment{
			Points: []models.LinePoint{{Point: p.seed, Prior: p.prior}},
			Parent: p.parent,
			Attach: p.prior,
		}
		cur := p.seed
		for {
			next := g.ascending(cur, offsets, consumed)
			if len(next) == 1 {
				consumed[next[0]] = struct{}{}
				seg.Points = append(seg.Points, models.LinePoint{Point: next[0], Prior: cur})
				cur = next[0]
				continue
			}
			if len(next) > 1 {
				// Junction: this run ends here and each outgoing
				// direction becomes its own run
				segIdx := len(segments)
				for _, c := range next {
					consumed[c] = struct{}{}
					queue = append(queue, pending{seed: c, prior: cur, parent: segIdx})
				}
			}
			break
		}
		segments = append(segments, seg)
	}

	return segments
}

// ascending returns the unconsumed neighbors of v with a strictly higher
// grade, in offset order.
func (g *Grades) ascending(v models.Voxel, offsets []models.Voxel, consumed map[models.Voxel]struct{}) []models.Voxel {
	base := g.level[v]
	var out []models.Voxel
	for _, off := range offsets {
		n := models.Voxel{X: v.X + off.X, Y: v.Y + off.Y, Z: v.Z + off.Z}
		lv, ok := g.level[n]
		if !ok || lv <= base {
			continue
		}
		if _, used := consumed[n]; used {
			continue
		}
		out = append(out, n)
	}
	return out
}

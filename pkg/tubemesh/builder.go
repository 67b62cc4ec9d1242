package tubemesh

import (
	"fmt"
	"math"
	"runtime"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/internal/models"
	"github.com/ChenxrC/vessel-tool/pkg/curve"
	"github.com/ChenxrC/vessel-tool/pkg/tree"
)

// Builder sweeps radius-tapered rings along fitted branch curves and welds
// child tubes onto their parent's junction rings.
type Builder struct {
	// Policy controls the radius taper
	Policy RadiusPolicy

	// Sides is the vertex count of each ring
	Sides int

	// Workers caps how many branch curves are fitted concurrently
	Workers int

	// Fitter smooths and resamples branch lines; nil uses curve.NewFitter
	Fitter *curve.Fitter

	// Progress optionally receives per-branch fitting progress
	Progress func(completed, total int)
}

// SkippedBranch records a branch left out of the mesh and why
type SkippedBranch struct {
	// First and Last delimit the branch's voxel run
	First, Last models.Voxel

	// Points is the branch line's point count
	Points int

	// Reason is the underlying curve failure
	Reason string
}

// NewBuilder validates the policy up front so an invalid configuration never
// starts a build.
func NewBuilder(policy RadiusPolicy, fitter *curve.Fitter) (*Builder, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		Policy:  policy,
		Sides:   DefaultSides,
		Workers: runtime.NumCPU(),
		Fitter:  fitter,
	}, nil
}

func (b *Builder) sides() int {
	if b.Sides >= 3 {
		return b.Sides
	}
	return DefaultSides
}

func (b *Builder) workers() int {
	if b.Workers >= 1 {
		return b.Workers
	}
	return runtime.NumCPU()
}

func (b *Builder) fitter() *curve.Fitter {
	if b.Fitter != nil {
		return b.Fitter
	}
	return curve.NewFitter()
}

// Build fits every branch line and sweeps rings along the fitted curves.
// Curves are fitted level by level from the root, siblings in parallel, so
// each child inherits its parent's direction at the junction as a fallback.
// The mesh itself is assembled in trace order and the output is
// deterministic. Branches whose lines cannot be oriented are skipped with a
// warning record; their subtrees still render, unwelded.
func (b *Builder) Build(root *tree.Branch) (*Mesh, []SkippedBranch, error) {
	if err := b.Policy.Validate(); err != nil {
		return nil, nil, err
	}
	if root == nil || len(root.Line) == 0 {
		return nil, nil, fmt.Errorf("failed to build mesh: empty tree")
	}

	curves, skipped := b.fitAll(root)

	info := make(map[*tree.Branch]*branchInfo)
	spans(root, curves, info)

	mesh := &Mesh{}
	b.emit(mesh, root, info, b.Policy.MaxRadius, nil)
	return mesh, skipped, nil
}

// branchInfo carries the fitted curve and the arc bookkeeping that drives
// the radius taper.
type branchInfo struct {
	curve *curve.Curve

	// cum is the prefix arc length at each curve sample
	cum []float64

	// remaining is the arc distance from each sample to the deepest tip
	// reachable through it, following junctions into subtrees
	remaining []float64

	// span is the remaining distance at the proximal sample
	span float64
}

// fitAll fits branch curves level by level from the root. Siblings within a
// level run in parallel under a worker semaphore; results are reassembled by
// index so the outcome does not depend on scheduling.
func (b *Builder) fitAll(root *tree.Branch) (map[*tree.Branch]*curve.Curve, []SkippedBranch) {
	type task struct {
		node     *tree.Branch
		fallback r3.Vector
	}
	type fitResult struct {
		index int
		curve *curve.Curve
		err   error
	}

	fitter := b.fitter()
	sem := make(chan struct{}, b.workers())
	curves := make(map[*tree.Branch]*curve.Curve)
	var skipped []SkippedBranch

	total := root.BranchCount()
	done := 0

	wave := []task{{node: root}}
	for len(wave) > 0 {
		resultChan := make(chan fitResult, len(wave))
		for i, tk := range wave {
			sem <- struct{}{}
			go func(i int, tk task) {
				defer func() { <-sem }()
				c, err := fitter.Fit(linePoints(tk.node), tk.fallback)
				resultChan <- fitResult{index: i, curve: c, err: err}
			}(i, tk)
		}
		outcomes := make([]fitResult, len(wave))
		for range wave {
			r := <-resultChan
			outcomes[r.index] = r
		}

		var next []task
		for i, tk := range wave {
			done++
			if b.Progress != nil {
				b.Progress(done, total)
			}
			if outcomes[i].err != nil {
				skipped = append(skipped, skipRecord(tk.node, outcomes[i].err))
				for _, child := range tk.node.Subtree {
					next = append(next, task{node: child})
				}
				continue
			}
			c := outcomes[i].curve
			curves[tk.node] = c
			for ci, child := range tk.node.Subtree {
				j := junctionSample(tk.node, ci, len(c.Points))
				next = append(next, task{node: child, fallback: c.Tangents[j]})
			}
		}
		wave = next
	}
	return curves, skipped
}

// spans fills in arc bookkeeping bottom-up and returns the node's span. A
// sample's remaining distance is the longest continuation through either the
// branch's own distal end or any junction at or past that sample.
func spans(node *tree.Branch, curves map[*tree.Branch]*curve.Curve, info map[*tree.Branch]*branchInfo) float64 {
	c := curves[node]
	if c == nil {
		// Skipped branch: subtrees carry on as independent roots.
		for _, child := range node.Subtree {
			spans(child, curves, info)
		}
		return 0
	}

	childSpans := make([]float64, len(node.Subtree))
	for i, child := range node.Subtree {
		childSpans[i] = spans(child, curves, info)
	}

	m := len(c.Points)
	cum := make([]float64, m)
	for i := 1; i < m; i++ {
		cum[i] = cum[i-1] + c.Points[i].Sub(c.Points[i-1]).Norm()
	}

	best := make([]float64, m)
	for i := range best {
		best[i] = math.Inf(-1)
	}
	best[m-1] = cum[m-1]
	for i := range node.Subtree {
		j := junctionSample(node, i, m)
		if v := cum[j] + childSpans[i]; v > best[j] {
			best[j] = v
		}
	}
	for i := m - 2; i >= 0; i-- {
		if best[i+1] > best[i] {
			best[i] = best[i+1]
		}
	}

	remaining := make([]float64, m)
	for i := range remaining {
		remaining[i] = best[i] - cum[i]
	}
	info[node] = &branchInfo{curve: c, cum: cum, remaining: remaining, span: remaining[0]}
	return remaining[0]
}

// emit generates the node's rings and faces, then descends into children
// with the junction ring and the junction radius. A nil parentRing means the
// branch starts fresh: it gets its own proximal ring and cap.
func (b *Builder) emit(mesh *Mesh, node *tree.Branch, info map[*tree.Branch]*branchInfo, branchMax float64, parentRing []int) {
	f := info[node]
	if f == nil {
		for _, child := range node.Subtree {
			b.emit(mesh, child, info, b.Policy.MaxRadius, nil)
		}
		return
	}

	c := f.curve
	m := len(c.Points)
	radii := make([]float64, m)
	for i := range radii {
		radii[i] = b.Policy.radiusAt(branchMax, f.remaining[i], f.span)
	}

	var rings [][]int
	if m == 1 {
		b.hemisphere(mesh, c.Points[0], c.Tangents[0], radii[0])
		rings = [][]int{nil}
	} else {
		normals := frames(c.Tangents)
		rings = make([][]int, m)
		nominal := ringVertices(c.Points[0], normals[0], c.Tangents[0].Cross(normals[0]), radii[0], b.sides())
		if parentRing == nil {
			rings[0] = mesh.addRing(nominal)
			mesh.fanCap(rings[0], c.Points[0], false)
		} else {
			rings[0] = matchRing(mesh, parentRing, nominal)
		}
		for i := 1; i < m; i++ {
			rings[i] = mesh.addRing(ringVertices(c.Points[i], normals[i], c.Tangents[i].Cross(normals[i]), radii[i], b.sides()))
		}
		for i := 0; i+1 < m; i++ {
			mesh.stitch(rings[i], rings[i+1])
		}
		mesh.fanCap(rings[m-1], c.Points[m-1], true)
	}

	for ci, child := range node.Subtree {
		j := junctionSample(node, ci, m)
		b.emit(mesh, child, info, radii[j], rings[j])
	}
}

// hemisphere domes a single-sample branch along its direction, with a base
// disk closing the flat side. The dome sits at the junction unwelded.
func (b *Builder) hemisphere(mesh *Mesh, center, dir r3.Vector, radius float64) {
	sides := b.sides()
	rows := sides / 4
	if rows < 2 {
		rows = 2
	}
	if dir.Norm() < 1e-12 {
		dir = r3.Vector{Z: 1}
	} else {
		dir = dir.Normalize()
	}
	n := seedNormal(dir)
	bi := dir.Cross(n)

	rings := make([][]int, rows)
	for r := 0; r < rows; r++ {
		lat := (math.Pi / 2) * float64(r) / float64(rows)
		c := center.Add(dir.Mul(radius * math.Sin(lat)))
		rings[r] = mesh.addRing(ringVertices(c, n, bi, radius*math.Cos(lat), sides))
	}
	for r := 0; r+1 < rows; r++ {
		mesh.stitch(rings[r], rings[r+1])
	}

	pole := mesh.addVertex(center.Add(dir.Mul(radius)))
	last := rings[rows-1]
	for j := 0; j < sides; j++ {
		k := (j + 1) % sides
		mesh.Tris = append(mesh.Tris, [3]int{pole, last[j], last[k]})
	}
	mesh.fanCap(rings[0], center, false)
}

// ringVertices places one cross-section ring. The normal and binormal span
// the ring plane; the first slot sits along the normal.
func ringVertices(center, normal, binormal r3.Vector, radius float64, sides int) []r3.Vector {
	verts := make([]r3.Vector, sides)
	for j := 0; j < sides; j++ {
		a := 2 * math.Pi * float64(j) / float64(sides)
		dir := normal.Mul(math.Cos(a)).Add(binormal.Mul(math.Sin(a)))
		verts[j] = center.Add(dir.Mul(radius))
	}
	return verts
}

// matchRing pairs each nominal ring position with the nearest existing
// vertex of the parent's junction ring. Several slots may land on the same
// parent vertex; stitch degrades those slots to triangles.
func matchRing(mesh *Mesh, parentRing []int, nominal []r3.Vector) []int {
	out := make([]int, len(nominal))
	for j, p := range nominal {
		best := parentRing[0]
		bestD := math.Inf(1)
		for _, idx := range parentRing {
			if d := mesh.Vertices[idx].Sub(p).Norm2(); d < bestD {
				best, bestD = idx, d
			}
		}
		out[j] = best
	}
	return out
}

// frames propagates a rotation-minimizing normal along the tangents so
// consecutive rings never twist against each other.
func frames(tangents []r3.Vector) []r3.Vector {
	normals := make([]r3.Vector, len(tangents))
	n := seedNormal(tangents[0])
	for i, t := range tangents {
		proj := n.Sub(t.Mul(n.Dot(t)))
		if proj.Norm() < 1e-9 {
			proj = seedNormal(t)
		}
		n = proj.Normalize()
		normals[i] = n
	}
	return normals
}

// seedNormal picks a stable perpendicular by crossing the tangent with the
// coordinate axis it is least aligned with.
func seedNormal(t r3.Vector) r3.Vector {
	axis := r3.Vector{X: 1}
	ax, ay, az := math.Abs(t.X), math.Abs(t.Y), math.Abs(t.Z)
	if ay <= ax && ay <= az {
		axis = r3.Vector{Y: 1}
	} else if az <= ax && az <= ay {
		axis = r3.Vector{Z: 1}
	}
	return t.Cross(axis).Normalize()
}

// junctionSample maps a child's attachment index on the raw branch line into
// the resampled curve.
func junctionSample(node *tree.Branch, childIdx, samples int) int {
	if samples <= 1 {
		return 0
	}
	raw := len(node.Line)
	idx := raw - 1
	if childIdx < len(node.DividePointIndex) {
		idx = node.DividePointIndex[childIdx]
	}
	if raw <= 1 {
		return 0
	}
	j := int(math.Round(float64(idx) * float64(samples-1) / float64(raw-1)))
	if j < 0 {
		j = 0
	}
	if j > samples-1 {
		j = samples - 1
	}
	return j
}

func linePoints(node *tree.Branch) []r3.Vector {
	out := make([]r3.Vector, len(node.Line))
	for i, lp := range node.Line {
		out[i] = lp.Point.Vec()
	}
	return out
}

func skipRecord(node *tree.Branch, err error) SkippedBranch {
	s := SkippedBranch{Points: len(node.Line), Reason: err.Error()}
	if len(node.Line) > 0 {
		s.First = node.Line[0].Point
		s.Last = node.Line[len(node.Line)-1].Point
	}
	return s
}

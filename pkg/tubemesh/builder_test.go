package tubemesh

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/internal/models"
	"github.com/ChenxrC/vessel-tool/pkg/skeleton"
	"github.com/ChenxrC/vessel-tool/pkg/tree"
)

func lineVoxels(n int) []models.Voxel {
	voxels := make([]models.Voxel, n)
	for i := range voxels {
		voxels[i] = models.Voxel{X: i}
	}
	return voxels
}

func yVoxels(rootLen, armLen int) []models.Voxel {
	var voxels []models.Voxel
	for i := 0; i < rootLen; i++ {
		voxels = append(voxels, models.Voxel{X: i})
	}
	tip := rootLen - 1
	for j := 1; j <= armLen; j++ {
		voxels = append(voxels, models.Voxel{X: tip + j, Y: j})
		voxels = append(voxels, models.Voxel{X: tip + j, Y: -j})
	}
	return voxels
}

func buildTree(t *testing.T, voxels []models.Voxel, root models.Voxel) *tree.Branch {
	t.Helper()
	grades, err := skeleton.NewLabeler(skeleton.Connectivity26).Label(voxels, root)
	if err != nil {
		t.Fatalf("Failed to label skeleton: %v", err)
	}
	br, err := tree.Build(grades)
	if err != nil {
		t.Fatalf("Failed to build tree: %v", err)
	}
	return br
}

func toLine(voxels []models.Voxel) []models.LinePoint {
	line := make([]models.LinePoint, len(voxels))
	for i, v := range voxels {
		prior := models.NoPrior
		if i > 0 {
			prior = voxels[i-1]
		}
		line[i] = models.LinePoint{Point: v, Prior: prior}
	}
	return line
}

func edgeCounts(tris [][3]int) map[[2]int]int {
	counts := make(map[[2]int]int)
	for _, tri := range tris {
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			counts[[2]int{a, b}]++
		}
	}
	return counts
}

func TestRadiusSchedule(t *testing.T) {
	b, err := NewBuilder(RadiusPolicy{MaxRadius: 5, MinRadius: 1, Decay: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	root := buildTree(t, lineVoxels(10), models.Voxel{})

	curves, skipped := b.fitAll(root)
	if len(skipped) != 0 {
		t.Fatalf("Expected no skipped branches, got %d", len(skipped))
	}
	info := make(map[*tree.Branch]*branchInfo)
	spans(root, curves, info)

	f := info[root]
	if f == nil {
		t.Fatal("Expected span info for the root branch")
	}
	n := len(f.curve.Points)
	if n != 10 {
		t.Fatalf("Expected 10 curve samples, got %d", n)
	}
	prev := math.Inf(1)
	for i := 0; i < n; i++ {
		want := 1 + 4*float64(n-1-i)/float64(n-1)
		got := b.Policy.radiusAt(5, f.remaining[i], f.span)
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("Sample %d: expected radius %v, got %v", i, want, got)
		}
		if got > prev {
			t.Errorf("Sample %d: radius %v grew past %v", i, got, prev)
		}
		prev = got
	}
}

func TestBuildStraightTube(t *testing.T) {
	b, err := NewBuilder(RadiusPolicy{MaxRadius: 5, MinRadius: 1, Decay: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	b.Sides = 8
	b.Workers = 2
	root := buildTree(t, lineVoxels(10), models.Voxel{})

	mesh, skipped, err := b.Build(root)
	if err != nil {
		t.Fatalf("Failed to build mesh: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Expected no skipped branches, got %d", len(skipped))
	}

	// 10 rings of 8 vertices plus the two cap centers
	if len(mesh.Vertices) != 82 {
		t.Errorf("Expected 82 vertices, got %d", len(mesh.Vertices))
	}

	// Interior ring vertices sit in 4 quads, end ring vertices in 2,
	// cap centers in none.
	quadCount := make([]int, len(mesh.Vertices))
	for _, q := range mesh.Quads {
		for _, idx := range q {
			quadCount[idx]++
		}
	}
	histogram := make(map[int]int)
	for _, c := range quadCount {
		histogram[c]++
	}
	if histogram[4] != 64 {
		t.Errorf("Expected 64 interior ring vertices with 4 quads, got %d", histogram[4])
	}
	if histogram[2] != 16 {
		t.Errorf("Expected 16 end ring vertices with 2 quads, got %d", histogram[2])
	}
	if histogram[0] != 2 {
		t.Errorf("Expected 2 cap centers with no quads, got %d", histogram[0])
	}

	// A capped straight tube is a closed surface: every edge in 2 faces.
	for edge, n := range edgeCounts(mesh.Triangles()) {
		if n != 2 {
			t.Errorf("Edge %v appears in %d triangles, expected 2", edge, n)
		}
	}

	// Ring radii follow the taper from max at the root to min at the tip.
	fitted, err := b.fitter().Fit(linePoints(root), r3.Vector{})
	if err != nil {
		t.Fatalf("Failed to refit curve: %v", err)
	}
	ringRadii := make(map[int][]float64)
	for i, v := range mesh.Vertices {
		if quadCount[i] == 0 {
			continue
		}
		nearest, nearestD := -1, math.Inf(1)
		for j, c := range fitted.Points {
			if d := v.Sub(c).Norm(); d < nearestD {
				nearest, nearestD = j, d
			}
		}
		ringRadii[nearest] = append(ringRadii[nearest], nearestD)
	}
	if len(ringRadii) != 10 {
		t.Fatalf("Expected vertices on 10 rings, got %d", len(ringRadii))
	}
	prev := math.Inf(1)
	for j := 0; j < 10; j++ {
		radii := ringRadii[j]
		if len(radii) != 8 {
			t.Fatalf("Ring %d: expected 8 vertices, got %d", j, len(radii))
		}
		for _, r := range radii {
			if math.Abs(r-radii[0]) > 1e-6 {
				t.Errorf("Ring %d: uneven radius %v vs %v", j, r, radii[0])
			}
		}
		if radii[0] > prev+1e-9 {
			t.Errorf("Ring %d: radius %v grew past %v", j, radii[0], prev)
		}
		prev = radii[0]
	}
	if math.Abs(ringRadii[0][0]-5) > 1e-6 {
		t.Errorf("Expected root ring radius 5, got %v", ringRadii[0][0])
	}
	if math.Abs(ringRadii[9][0]-1) > 1e-6 {
		t.Errorf("Expected tip ring radius 1, got %v", ringRadii[9][0])
	}
}

func TestBuildDeterministic(t *testing.T) {
	root := buildTree(t, yVoxels(6, 5), models.Voxel{})
	b, err := NewBuilder(RadiusPolicy{MaxRadius: 4, MinRadius: 1, Decay: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	b.Sides = 8
	b.Workers = 4

	first, skippedFirst, err := b.Build(root)
	if err != nil {
		t.Fatalf("Failed to build mesh: %v", err)
	}
	second, skippedSecond, err := b.Build(root)
	if err != nil {
		t.Fatalf("Failed to build mesh again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical meshes from repeated builds")
	}
	if !reflect.DeepEqual(skippedFirst, skippedSecond) {
		t.Error("Expected identical skip records from repeated builds")
	}
}

func TestBuildWeldedJunction(t *testing.T) {
	root := buildTree(t, yVoxels(5, 5), models.Voxel{})
	b, err := NewBuilder(RadiusPolicy{MaxRadius: 4, MinRadius: 1, Decay: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	b.Sides = 8

	mesh, skipped, err := b.Build(root)
	if err != nil {
		t.Fatalf("Failed to build mesh: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Expected no skipped branches, got %d", len(skipped))
	}
	if len(mesh.Quads) == 0 || len(mesh.Tris) == 0 {
		t.Fatal("Expected both quads and triangles in a welded mesh")
	}

	// Welding reuses parent ring vertices, so the whole tree is one
	// connected component and every vertex sits in at least one face.
	parent := make([]int, len(mesh.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	referenced := make([]bool, len(mesh.Vertices))
	for _, tri := range mesh.Triangles() {
		for _, idx := range tri {
			referenced[idx] = true
		}
		parent[find(tri[1])] = find(tri[0])
		parent[find(tri[2])] = find(tri[0])
	}
	components := make(map[int]bool)
	for i := range mesh.Vertices {
		if !referenced[i] {
			t.Errorf("Vertex %d is not referenced by any face", i)
			continue
		}
		components[find(i)] = true
	}
	if len(components) != 1 {
		t.Errorf("Expected a single connected component, got %d", len(components))
	}
}

func TestBuildHemisphereForSinglePointBranch(t *testing.T) {
	twig := &tree.Branch{
		Line:  toLine([]models.Voxel{{X: 5, Y: 1}}),
		Layer: 1,
	}
	root := &tree.Branch{
		Line:             toLine(lineVoxels(5)),
		Subtree:          []*tree.Branch{twig},
		DividePointIndex: []int{4},
	}
	bare := &tree.Branch{Line: toLine(lineVoxels(5))}

	b, err := NewBuilder(RadiusPolicy{MaxRadius: 4, MinRadius: 1, Decay: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	b.Sides = 8

	withTwig, skipped, err := b.Build(root)
	if err != nil {
		t.Fatalf("Failed to build mesh: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("Expected no skipped branches, got %d", len(skipped))
	}
	withoutTwig, _, err := b.Build(bare)
	if err != nil {
		t.Fatalf("Failed to build bare tube: %v", err)
	}

	// The twig adds a dome of two latitude rings, a pole and a base center.
	extra := len(withTwig.Vertices) - len(withoutTwig.Vertices)
	if extra != 2*8+2 {
		t.Errorf("Expected 18 hemisphere vertices, got %d", extra)
	}

	// The junction sits at the root's tip where the radius bottoms out at
	// the minimum, so the dome pole lands one unit along the root tangent.
	pole := r3.Vector{X: 6, Y: 1}
	found := false
	for _, v := range withTwig.Vertices {
		if v.Sub(pole).Norm() < 1e-6 {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected a dome pole vertex near %v", pole)
	}
}

func TestBuildSkipsDegenerate(t *testing.T) {
	b, err := NewBuilder(DefaultRadiusPolicy(), nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	b.Sides = 8

	single := &tree.Branch{Line: toLine([]models.Voxel{{X: 3, Y: 3, Z: 3}})}
	mesh, skipped, err := b.Build(single)
	if err != nil {
		t.Fatalf("Expected a skip, not a failure: %v", err)
	}
	if len(mesh.Vertices) != 0 {
		t.Errorf("Expected an empty mesh, got %d vertices", len(mesh.Vertices))
	}
	if len(skipped) != 1 {
		t.Fatalf("Expected 1 skipped branch, got %d", len(skipped))
	}
	want := models.Voxel{X: 3, Y: 3, Z: 3}
	if skipped[0].First != want || skipped[0].Last != want || skipped[0].Points != 1 {
		t.Errorf("Unexpected skip record %+v", skipped[0])
	}
	if skipped[0].Reason == "" {
		t.Error("Expected a reason on the skip record")
	}

	// Children of a skipped branch still render, unwelded.
	child := &tree.Branch{
		Line:  toLine([]models.Voxel{{X: 1}, {X: 2}, {X: 3}, {X: 4}, {X: 5}}),
		Layer: 1,
	}
	root := &tree.Branch{
		Line:             toLine([]models.Voxel{{}}),
		Subtree:          []*tree.Branch{child},
		DividePointIndex: []int{0},
	}
	mesh, skipped, err = b.Build(root)
	if err != nil {
		t.Fatalf("Expected a skip, not a failure: %v", err)
	}
	if len(skipped) != 1 {
		t.Fatalf("Expected 1 skipped branch, got %d", len(skipped))
	}
	if len(mesh.Vertices) == 0 {
		t.Error("Expected the child tube to render")
	}
	for edge, n := range edgeCounts(mesh.Triangles()) {
		if n != 2 {
			t.Errorf("Edge %v appears in %d triangles, expected 2", edge, n)
		}
	}
}

func TestBuildEmptyTree(t *testing.T) {
	b, err := NewBuilder(DefaultRadiusPolicy(), nil)
	if err != nil {
		t.Fatalf("Failed to create builder: %v", err)
	}
	if _, _, err := b.Build(nil); err == nil {
		t.Error("Expected an error for a nil tree")
	}
	if _, _, err := b.Build(&tree.Branch{}); err == nil {
		t.Error("Expected an error for an empty tree")
	}
}

func TestRadiusPolicyValidate(t *testing.T) {
	cases := []struct {
		name   string
		policy RadiusPolicy
	}{
		{"zero min radius", RadiusPolicy{MaxRadius: 5, MinRadius: 0, Decay: 1}},
		{"max below min", RadiusPolicy{MaxRadius: 1, MinRadius: 2, Decay: 1}},
		{"zero decay", RadiusPolicy{MaxRadius: 5, MinRadius: 1, Decay: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			var policyErr *InvalidRadiusPolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("Expected InvalidRadiusPolicyError, got %v", err)
			}
			if _, err := NewBuilder(tc.policy, nil); err == nil {
				t.Error("Expected NewBuilder to reject the policy")
			}
			bad := &Builder{Policy: tc.policy}
			if _, _, err := bad.Build(&tree.Branch{Line: toLine(lineVoxels(3))}); err == nil {
				t.Error("Expected Build to reject the policy")
			}
		})
	}

	if err := DefaultRadiusPolicy().Validate(); err != nil {
		t.Errorf("Expected the default policy to validate, got %v", err)
	}
	equal := RadiusPolicy{MaxRadius: 2, MinRadius: 2, Decay: 1}
	if err := equal.Validate(); err != nil {
		t.Errorf("Expected equal radii to validate, got %v", err)
	}
}

func TestFramesStayPerpendicular(t *testing.T) {
	n := 40
	tangents := make([]r3.Vector, n)
	for i := range tangents {
		a := float64(i) / float64(n-1) * math.Pi / 2
		tangents[i] = r3.Vector{X: math.Cos(a), Y: math.Sin(a), Z: 0.3}.Normalize()
	}

	normals := frames(tangents)
	for i, nrm := range normals {
		if math.Abs(nrm.Norm()-1) > 1e-9 {
			t.Errorf("Normal %d is not unit length: %v", i, nrm.Norm())
		}
		if dot := math.Abs(nrm.Dot(tangents[i])); dot > 1e-9 {
			t.Errorf("Normal %d is not perpendicular to its tangent: %v", i, dot)
		}
		if i > 0 && nrm.Dot(normals[i-1]) < 0.99 {
			t.Errorf("Normal %d twisted away from its predecessor", i)
		}
	}
}

func TestJunctionSampleMapping(t *testing.T) {
	node := &tree.Branch{
		Line:             toLine(lineVoxels(10)),
		DividePointIndex: []int{9, 4},
	}
	if got := junctionSample(node, 0, 20); got != 19 {
		t.Errorf("Expected sample 19 for the line end, got %d", got)
	}
	if got := junctionSample(node, 1, 20); got != 8 {
		t.Errorf("Expected sample 8 for raw index 4, got %d", got)
	}
	if got := junctionSample(node, 0, 1); got != 0 {
		t.Errorf("Expected sample 0 for a single-sample curve, got %d", got)
	}
	// Children beyond the recorded divide points attach at the line end.
	if got := junctionSample(node, 5, 10); got != 9 {
		t.Errorf("Expected sample 9 for a missing divide index, got %d", got)
	}
}

func TestMeshTrianglesAndTransform(t *testing.T) {
	m := &Mesh{}
	m.addRing([]r3.Vector{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}})
	m.Quads = append(m.Quads, [4]int{0, 1, 2, 3})
	m.Tris = append(m.Tris, [3]int{0, 1, 2})

	tris := m.Triangles()
	if len(tris) != 3 {
		t.Fatalf("Expected 3 triangles, got %d", len(tris))
	}
	if tris[1] != [3]int{0, 1, 2} || tris[2] != [3]int{0, 2, 3} {
		t.Errorf("Unexpected quad split: %v, %v", tris[1], tris[2])
	}

	m.Transform(func(v r3.Vector) r3.Vector {
		return v.Add(r3.Vector{X: 10, Y: 20, Z: 30})
	})
	if m.Vertices[0] != (r3.Vector{X: 10, Y: 20, Z: 30}) {
		t.Errorf("Expected the transform to move vertex 0, got %v", m.Vertices[0])
	}
}

func TestStitchCollapsedSlot(t *testing.T) {
	m := &Mesh{}
	m.addRing([]r3.Vector{{}, {X: 1}, {X: 2}, {X: 3}, {X: 4}})
	m.stitch([]int{0, 0, 1}, []int{2, 3, 4})
	if len(m.Tris) != 1 || len(m.Quads) != 2 {
		t.Fatalf("Expected 1 triangle and 2 quads, got %d and %d", len(m.Tris), len(m.Quads))
	}
	if m.Tris[0] != [3]int{0, 3, 2} {
		t.Errorf("Unexpected collapsed slot triangle %v", m.Tris[0])
	}
}

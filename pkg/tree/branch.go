package tree

import (
	"fmt"

	"github.com/ChenxrC/vessel-tool/internal/models"
	"github.com/ChenxrC/vessel-tool/pkg/skeleton"
)

// Branch is one traced vessel run and the subtree hanging off its line
type Branch struct {
	// Line is the ordered voxel run, proximal end first
	Line []models.LinePoint

	// Subtree holds the child branches in trace order
	Subtree []*Branch

	// Deep holds, per child, its topological depth (parent depth + 1)
	Deep []int

	// SubLength holds, per child, the cumulative arc length from the tree
	// root to the end of that child's line
	SubLength []float64

	// DividePointIndex holds, per child, the index into Line where the
	// child attaches
	DividePointIndex []int

	// Layer is the tree level of this branch, root at 0
	Layer int

	// Trunk marks branches on the dominant path
	Trunk bool
}

// Leaf reports whether the branch has no children.
func (b *Branch) Leaf() bool { return len(b.Subtree) == 0 }

// ArcLength returns the Euclidean length of the branch's own line.
func (b *Branch) ArcLength() float64 {
	total := 0.0
	for i := 1; i < len(b.Line); i++ {
		total += b.Line[i-1].Point.Vec().Sub(b.Line[i].Point.Vec()).Norm()
	}
	return total
}

// Walk visits the branch and every descendant in depth-first preorder,
// children in trace order.
func (b *Branch) Walk(fn func(*Branch)) {
	stack := []*Branch{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := len(cur.Subtree) - 1; i >= 0; i-- {
			stack = append(stack, cur.Subtree[i])
		}
	}
}

// PointCount returns the number of line points in the branch and its subtree.
func (b *Branch) PointCount() int {
	total := 0
	b.Walk(func(n *Branch) { total += len(n.Line) })
	return total
}

// BranchCount returns the number of branches in the subtree including b.
func (b *Branch) BranchCount() int {
	total := 0
	b.Walk(func(*Branch) { total++ })
	return total
}

// MalformedTreeError reports a branch attachment that cannot be reconciled
// with its parent line
type MalformedTreeError struct {
	// Junction is the voxel the branch claims to attach at
	Junction models.Voxel

	// Reason describes the inconsistency
	Reason string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed tree at junction %v: %s", e.Junction, e.Reason)
}

// Build assembles the traced skeleton segments into a branch tree. Children
// keep the deterministic trace order and each child's attachment point is
// recorded in the parent's DividePointIndex.
func Build(grades *skeleton.Grades) (*Branch, error) {
	if grades == nil || grades.Len() == 0 {
		return nil, fmt.Errorf("failed to build tree: no graded skeleton")
	}
	return assemble(grades.Segments())
}

func assemble(segments []skeleton.Segment) (*Branch, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("failed to build tree: no segments")
	}

	branches := make([]*Branch, len(segments))
	for i, seg := range segments {
		if len(seg.Points) == 0 {
			return nil, &MalformedTreeError{Junction: seg.Attach, Reason: "empty segment"}
		}
		branches[i] = &Branch{Line: append([]models.LinePoint(nil), seg.Points...)}
	}

	for i, seg := range segments {
		if seg.Parent < 0 {
			if i != 0 {
				return nil, &MalformedTreeError{Junction: seg.Attach, Reason: "more than one root segment"}
			}
			continue
		}
		if seg.Parent >= i {
			return nil, &MalformedTreeError{Junction: seg.Attach, Reason: "segment traced before its parent"}
		}

		parent := branches[seg.Parent]
		last := len(parent.Line) - 1
		if parent.Line[last].Point != seg.Attach {
			return nil, &MalformedTreeError{
				Junction: seg.Attach,
				Reason:   fmt.Sprintf("parent line ends at %v, not at the attachment", parent.Line[last].Point),
			}
		}
		if seg.Points[0].Prior != seg.Attach {
			return nil, &MalformedTreeError{
				Junction: seg.Attach,
				Reason:   fmt.Sprintf("first point %v was not reached from the junction", seg.Points[0].Point),
			}
		}

		child := branches[i]
		child.Layer = parent.Layer + 1
		parent.Subtree = append(parent.Subtree, child)
		parent.DividePointIndex = append(parent.DividePointIndex, last)
	}

	return branches[0], nil
}

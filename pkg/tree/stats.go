package tree

import (
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a branch tree
type Stats struct {
	// TotalPoints is the number of line points across all branches
	TotalPoints int

	// TotalBranches is the number of branches
	TotalBranches int

	// MaxDepth is the deepest topological level
	MaxDepth int

	// MaxLength is the longest cumulative root-to-leaf arc length
	MaxLength float64

	// AvgBranchPoints is the mean number of line points per branch
	AvgBranchPoints float64
}

// Summarize computes statistics over the tree without modifying it.
func Summarize(root *Branch) Stats {
	var s Stats
	if root == nil {
		return s
	}

	var sizes []float64
	root.Walk(func(b *Branch) {
		s.TotalBranches++
		s.TotalPoints += len(b.Line)
		sizes = append(sizes, float64(len(b.Line)))
	})
	s.AvgBranchPoints = stat.Mean(sizes, nil)

	var walk func(b *Branch, depth int, cum float64)
	walk = func(b *Branch, depth int, cum float64) {
		end := cum + b.ArcLength()
		if b.Leaf() {
			if depth > s.MaxDepth {
				s.MaxDepth = depth
			}
			if end > s.MaxLength {
				s.MaxLength = end
			}
		}
		for _, c := range b.Subtree {
			walk(c, depth+1, end)
		}
	}
	walk(root, 0, 0)

	return s
}

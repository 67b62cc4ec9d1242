package tree

// AssignDepth recomputes, for every branch, the per-child topological depth
// and the cumulative root-to-child-end arc length, replacing whatever was
// stored before. It returns the maximum depth and the maximum cumulative
// length over all leaves; a tree of just a root yields depth 0 and the
// root's own arc length.
func AssignDepth(root *Branch) (int, float64) {
	if root == nil {
		return 0, 0
	}

	maxDepth := 0
	maxLength := 0.0
	var walk func(b *Branch, depth int, cum float64)
	walk = func(b *Branch, depth int, cum float64) {
		end := cum + b.ArcLength()
		if b.Leaf() {
			if depth > maxDepth {
				maxDepth = depth
			}
			if end > maxLength {
				maxLength = end
			}
			b.Deep = nil
			b.SubLength = nil
			return
		}
		b.Deep = make([]int, 0, len(b.Subtree))
		b.SubLength = make([]float64, 0, len(b.Subtree))
		for _, child := range b.Subtree {
			b.Deep = append(b.Deep, depth+1)
			b.SubLength = append(b.SubLength, end+child.ArcLength())
			walk(child, depth+1, end)
		}
	}
	walk(root, 0, 0)

	return maxDepth, maxLength
}

package tree

// OptimizeOptions controls which leaf branches count as insignificant
type OptimizeOptions struct {
	// MinPoints is the smallest point count a leaf branch may keep;
	// zero disables the check
	MinPoints int

	// MinLength is the smallest arc length a leaf branch may keep;
	// zero disables the check
	MinLength float64
}

// Optimize splices insignificant leaf branches into their parent lines,
// refreshes the depth information and tags the dominant path. A branch is
// insignificant when it has no children left and its line falls below the
// configured point or length threshold. Running Optimize on an already
// optimized tree changes nothing.
func Optimize(root *Branch, opts OptimizeOptions) *Branch {
	if root == nil {
		return nil
	}
	splice(root, opts)
	AssignDepth(root)
	relayer(root)
	tagTrunk(root)
	return root
}

// splice absorbs sub-threshold leaves bottom up, so a chain of twigs
// collapses in a single pass. Surviving children keep their attachment
// indices; absorbed points land at the end of the parent line.
func splice(root *Branch, opts OptimizeOptions) {
	type frame struct {
		node    *Branch
		visited bool
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f.visited {
			stack = append(stack, frame{node: f.node, visited: true})
			for _, c := range f.node.Subtree {
				stack = append(stack, frame{node: c})
			}
			continue
		}

		n := f.node
		var kept []*Branch
		var keptDivide []int
		for i, c := range n.Subtree {
			if c.Leaf() && insignificant(c, opts) {
				n.Line = append(n.Line, c.Line...)
				continue
			}
			kept = append(kept, c)
			if i < len(n.DividePointIndex) {
				keptDivide = append(keptDivide, n.DividePointIndex[i])
			}
		}
		n.Subtree = kept
		n.DividePointIndex = keptDivide
		n.Deep = nil
		n.SubLength = nil
	}
}

func insignificant(b *Branch, opts OptimizeOptions) bool {
	if opts.MinPoints > 0 && len(b.Line) < opts.MinPoints {
		return true
	}
	return opts.MinLength > 0 && b.ArcLength() < opts.MinLength
}

// relayer rewrites Layer top down after splicing.
func relayer(root *Branch) {
	type frame struct {
		node  *Branch
		layer int
	}
	stack := []frame{{node: root, layer: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f.node.Layer = f.layer
		for _, c := range f.node.Subtree {
			stack = append(stack, frame{node: c, layer: f.layer + 1})
		}
	}
}

// tagTrunk clears old trunk marks and then follows, level by level, the
// child whose subtree reaches the greatest cumulative length, marking every
// branch along the way. Ties keep the earlier child. Requires SubLength to
// be current.
func tagTrunk(root *Branch) {
	root.Walk(func(b *Branch) { b.Trunk = false })

	cur := root
	cur.Trunk = true
	for !cur.Leaf() {
		best := 0
		bestLen := deepestLength(cur.Subtree[0], cur.SubLength[0])
		for i := 1; i < len(cur.Subtree); i++ {
			if l := deepestLength(cur.Subtree[i], cur.SubLength[i]); l > bestLen {
				best, bestLen = i, l
			}
		}
		cur = cur.Subtree[best]
		cur.Trunk = true
	}
}

// deepestLength returns the maximum cumulative length over the leaves under
// b, where end is b's own cumulative end length.
func deepestLength(b *Branch, end float64) float64 {
	max := end
	for i, c := range b.Subtree {
		if l := deepestLength(c, b.SubLength[i]); l > max {
			max = l
		}
	}
	return max
}

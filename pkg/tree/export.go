package tree

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// branchJSON mirrors Branch for serialization with coordinates flattened
// into triples
type branchJSON struct {
	Line             [][3]int      `json:"line"`
	Layer            int           `json:"layer"`
	Trunk            bool          `json:"trunk"`
	Deep             []int         `json:"deep,omitempty"`
	SubLength        []float64     `json:"subLength,omitempty"`
	DividePointIndex []int         `json:"dividePointIndex,omitempty"`
	Subtree          []*branchJSON `json:"subtree,omitempty"`
}

func toJSON(b *Branch) *branchJSON {
	out := &branchJSON{
		Line:             make([][3]int, len(b.Line)),
		Layer:            b.Layer,
		Trunk:            b.Trunk,
		Deep:             b.Deep,
		SubLength:        b.SubLength,
		DividePointIndex: b.DividePointIndex,
	}
	for i, lp := range b.Line {
		out.Line[i] = [3]int{lp.Point.X, lp.Point.Y, lp.Point.Z}
	}
	for _, c := range b.Subtree {
		out.Subtree = append(out.Subtree, toJSON(c))
	}
	return out
}

// EncodeJSON writes the tree to w as indented JSON.
func EncodeJSON(w io.Writer, root *Branch) error {
	if root == nil {
		return fmt.Errorf("failed to encode tree: nil root")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toJSON(root)); err != nil {
		return fmt.Errorf("failed to encode tree: %v", err)
	}
	return nil
}

// SaveJSON writes the tree to a file as indented JSON.
func SaveJSON(path string, root *Branch) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tree file: %v", err)
	}
	defer f.Close()

	if err := EncodeJSON(f, root); err != nil {
		return err
	}
	return nil
}

package bptree

import (
	"fmt"
	"strings"
)

// Dump renders the tree one line per level, internal nodes as I[...]
// and leaves as L[...], left to right.
func (t *Tree) Dump() string {
	var levels [][]string

	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		for len(levels) <= depth {
			levels = append(levels, nil)
		}
		tag := "L"
		if !n.isLeaf() {
			tag = "I"
		}
		levels[depth] = append(levels[depth], fmt.Sprintf("%s%v", tag, n.keys))
		if !n.isLeaf() {
			for _, c := range n.children {
				walk(c, depth+1)
			}
		}
	}
	walk(t.root, 0)

	var b strings.Builder
	for _, level := range levels {
		b.WriteString(strings.Join(level, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

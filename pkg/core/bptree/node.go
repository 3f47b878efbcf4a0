package bptree

import "splitdb/pkg/common"

type nodeKind uint8

const (
	leafNode nodeKind = iota
	internalNode
)

// node is a tagged variant over the two node kinds. values and next are
// set only on leaves, children only on internal nodes. parent is a
// non-owning back-reference used to propagate splits upward.
type node struct {
	kind     nodeKind
	keys     []common.KeyType
	values   []common.ValueType // parallel to keys
	children []*node            // len(keys)+1
	parent   *node
	next     *node // leaf chain for in-order scans
}

func newLeaf() *node {
	return &node{kind: leafNode}
}

func newInternal() *node {
	return &node{kind: internalNode}
}

func (n *node) isLeaf() bool {
	return n.kind == leafNode
}

// childIndex picks the child to descend into: the first child i such
// that key < keys[i], else the last one. Equal keys go right.
func (n *node) childIndex(key common.KeyType) int {
	i := 0
	for i < len(n.keys) && key >= n.keys[i] {
		i++
	}
	return i
}

// insertEntry places (key, value) into a leaf in sorted position.
// Duplicate keys coexist; a new duplicate lands before existing equals.
func (n *node) insertEntry(key common.KeyType, value common.ValueType) {
	i := 0
	for i < len(n.keys) && key > n.keys[i] {
		i++
	}
	n.keys = append(n.keys, 0)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = key

	n.values = append(n.values, nil)
	copy(n.values[i+1:], n.values[i:])
	n.values[i] = value
}

// insertSplit records a child split in an internal node: the promoted
// key goes to slot pos and the new right sibling just after the child
// that split.
func (n *node) insertSplit(pos int, key common.KeyType, right *node) {
	n.keys = append(n.keys, 0)
	copy(n.keys[pos+1:], n.keys[pos:])
	n.keys[pos] = key

	n.children = append(n.children, nil)
	copy(n.children[pos+2:], n.children[pos+1:])
	n.children[pos+1] = right
	right.parent = n
}

func (n *node) childPos(child *node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

package bptree

import (
	"splitdb/pkg/common"
	"splitdb/pkg/metrics"
)

// DefaultOrder keeps nodes small: a node holds up to three keys, the
// fourth triggers a split.
const DefaultOrder = 3

// Tree is an in-memory B+ tree. Order is the maximum number of keys a
// node may hold before splitting. Not safe for concurrent use.
type Tree struct {
	root    *node
	order   int
	entries int
	leaves  int
	height  int
}

func New(order int) *Tree {
	if order < 2 {
		order = DefaultOrder
	}
	return &Tree{
		root:   newLeaf(),
		order:  order,
		leaves: 1,
		height: 1,
	}
}

func (t *Tree) Order() int  { return t.order }
func (t *Tree) Len() int    { return t.entries }
func (t *Tree) Leaves() int { return t.leaves }
func (t *Tree) Height() int { return t.height }

// Search returns the value stored under key. A miss is the normal
// (nil, false) return, never an error.
func (t *Tree) Search(key common.KeyType) (common.ValueType, bool) {
	n := t.root
	for !n.isLeaf() {
		n = n.children[n.childIndex(key)]
	}
	for i, k := range n.keys {
		if k == key {
			return n.values[i], true
		}
	}
	return nil, false
}

// Insert adds (key, value) to the tree. Duplicate keys are accepted and
// coexist at the leaf level.
func (t *Tree) Insert(key common.KeyType, value common.ValueType) {
	leaf := t.root
	for !leaf.isLeaf() {
		leaf = leaf.children[leaf.childIndex(key)]
	}
	leaf.insertEntry(key, value)
	t.entries++
	metrics.InsertsTotal.WithLabelValues("bptree").Inc()

	if len(leaf.keys) > t.order {
		t.split(leaf)
	}
}

// split divides an overfull node and pushes a separator key into the
// parent, cascading upward while the parent overflows in turn. A root
// split creates a new root and grows the tree by one level.
func (t *Tree) split(n *node) {
	mid := len(n.keys) / 2

	var right *node
	var promoted common.KeyType

	if n.isLeaf() {
		right = newLeaf()
		right.keys = append(right.keys, n.keys[mid:]...)
		right.values = append(right.values, n.values[mid:]...)
		n.keys = n.keys[:mid]
		n.values = n.values[:mid]

		// keep the leaf chain intact across the split
		right.next = n.next
		n.next = right
		t.leaves++

		// leaf separator is copied up and stays in the right leaf
		promoted = right.keys[0]
	} else {
		right = newInternal()
		// internal separator moves up and leaves both halves
		promoted = n.keys[mid]

		right.keys = append(right.keys, n.keys[mid+1:]...)
		right.children = append(right.children, n.children[mid+1:]...)
		n.keys = n.keys[:mid]
		n.children = n.children[:mid+1]

		for _, c := range right.children {
			c.parent = right
		}
	}
	metrics.SplitsTotal.WithLabelValues("bptree").Inc()

	if n.parent == nil {
		root := newInternal()
		root.keys = append(root.keys, promoted)
		root.children = append(root.children, n, right)
		n.parent = root
		right.parent = root
		t.root = root
		t.height++
		return
	}

	parent := n.parent
	parent.insertSplit(parent.childPos(n), promoted, right)
	if len(parent.keys) > t.order {
		t.split(parent)
	}
}

// Ascend walks every entry in key order via the leaf chain, stopping
// early when fn returns false.
func (t *Tree) Ascend(fn func(key common.KeyType, value common.ValueType) bool) {
	n := t.root
	for !n.isLeaf() {
		n = n.children[0]
	}
	for n != nil {
		for i := range n.keys {
			if !fn(n.keys[i], n.values[i]) {
				return
			}
		}
		n = n.next
	}
}

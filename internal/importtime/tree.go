package importtime

import "slices"

// NodeID addresses a node inside a Tree's arena.
type NodeID uint32

// RootID is the handle of the synthetic root node.
const RootID NodeID = 0

// RootName is the name carried by the synthetic root.
const RootName = "root"

type node struct {
	name        string
	self        int64
	cumulative  int64
	reported    int64
	hasReported bool
	depth       int
	indentDepth int // depth encoded by the trace line's indentation
	children    []NodeID
}

// Tree is an immutable import timing tree. Nodes live in a pre-order arena,
// so every parent precedes its descendants.
type Tree struct {
	nodes []node
}

// Root returns the handle of the synthetic root.
func (t *Tree) Root() NodeID { return RootID }

// Len reports the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Empty reports whether the root has no children.
func (t *Tree) Empty() bool {
	return len(t.nodes) == 0 || len(t.nodes[RootID].children) == 0
}

func (t *Tree) get(id NodeID) *node {
	return &t.nodes[id]
}

// Name returns the module path of id.
func (t *Tree) Name(id NodeID) string { return t.get(id).name }

// Self returns the time spent directly in id.
func (t *Tree) Self(id NodeID) int64 { return t.get(id).self }

// Cumulative returns self time plus the cumulative time of all children.
func (t *Tree) Cumulative(id NodeID) int64 { return t.get(id).cumulative }

// Depth returns the distance from the root; top-level imports are at 1.
func (t *Tree) Depth(id NodeID) int { return t.get(id).depth }

// Reported returns the cumulative time printed by the profiler, if any.
func (t *Tree) Reported(id NodeID) (int64, bool) {
	n := t.get(id)
	return n.reported, n.hasReported
}

// Children returns a copy of id's children in discovery order. Callers may
// reorder the result freely.
func (t *Tree) Children(id NodeID) []NodeID {
	return slices.Clone(t.get(id).children)
}

// NumChildren returns the number of direct children of id.
func (t *Tree) NumChildren(id NodeID) int { return len(t.get(id).children) }

// Walk visits every node below the root in pre-order. Returning false from
// fn skips the node's subtree.
func (t *Tree) Walk(fn func(id NodeID) bool) {
	if len(t.nodes) == 0 {
		return
	}
	var visit func(id NodeID)
	visit = func(id NodeID) {
		for _, child := range t.nodes[id].children {
			if fn(child) {
				visit(child)
			}
		}
	}
	visit(RootID)
}

// MaxSelf returns the largest self time in the tree.
func (t *Tree) MaxSelf() int64 {
	var best int64
	for i := range t.nodes {
		best = max(best, t.nodes[i].self)
	}
	return best
}

// MaxCumulative returns the largest cumulative time below the root.
func (t *Tree) MaxCumulative() int64 {
	var best int64
	for _, child := range t.children(RootID) {
		best = max(best, t.nodes[child].cumulative)
	}
	return best
}

func (t *Tree) children(id NodeID) []NodeID { return t.nodes[id].children }

// accumulate fills in cumulative times. Walking a pre-order arena backwards
// sees every child before its parent.
func (t *Tree) accumulate() {
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := &t.nodes[i]
		n.cumulative = n.self
		for _, child := range n.children {
			n.cumulative += t.nodes[child].cumulative
		}
	}
}

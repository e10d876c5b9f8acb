package testkit

import (
	"fmt"

	"importwaterfall/internal/importtime"
)

// CheckTree verifies the structural invariants of a built tree:
//  1. the root is named "root" and has no self time
//  2. every node's cumulative time equals its self time plus the
//     cumulative time of its children
//  3. every child sits exactly one level below its parent
//  4. every node below the root is reached exactly once
func CheckTree(t *importtime.Tree) error {
	if t == nil {
		return fmt.Errorf("nil tree")
	}
	root := t.Root()
	if got := t.Name(root); got != importtime.RootName {
		return fmt.Errorf("root name = %q, want %q", got, importtime.RootName)
	}
	if got := t.Self(root); got != 0 {
		return fmt.Errorf("root self time = %d, want 0", got)
	}

	seen := make(map[importtime.NodeID]bool, t.Len())
	var check func(id importtime.NodeID) error
	check = func(id importtime.NodeID) error {
		if seen[id] {
			return fmt.Errorf("node %d (%s) reached twice", id, t.Name(id))
		}
		seen[id] = true

		sum := t.Self(id)
		for _, child := range t.Children(id) {
			if t.Depth(child) != t.Depth(id)+1 {
				return fmt.Errorf("node %s at depth %d under %s at depth %d",
					t.Name(child), t.Depth(child), t.Name(id), t.Depth(id))
			}
			if err := check(child); err != nil {
				return err
			}
			sum += t.Cumulative(child)
		}
		if t.Cumulative(id) != sum {
			return fmt.Errorf("node %s cumulative = %d, want %d", t.Name(id), t.Cumulative(id), sum)
		}
		return nil
	}
	if err := check(root); err != nil {
		return err
	}
	if len(seen) != t.Len() {
		return fmt.Errorf("reached %d of %d nodes", len(seen), t.Len())
	}
	return nil
}

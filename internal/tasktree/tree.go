// Package tasktree defines the task tree a workflow run executes: typed nodes,
// arena storage, construction-time validation, and YAML loading.
package tasktree

import (
	"fmt"
	"time"
)

// Kind identifies how a node executes its children.
type Kind string

const (
	// KindLeaf is one unit of work delegated to the agent boundary.
	KindLeaf Kind = "leaf"
	// KindSequence runs children in order and stops at the first failure.
	KindSequence Kind = "sequence"
	// KindParallel runs all children concurrently and joins them.
	KindParallel Kind = "parallel"
	// KindFallback tries children in order until one succeeds.
	KindFallback Kind = "fallback"
)

// valid reports whether k is a recognized node kind.
func (k Kind) valid() bool {
	switch k {
	case KindLeaf, KindSequence, KindParallel, KindFallback:
		return true
	}
	return false
}

// Node is one node of a task tree. Children are referenced by arena index so
// the tree can be walked concurrently without pointer sharing concerns.
type Node struct {
	ID       string
	Kind     Kind
	Goal     string
	Children []int

	// RequiredFacts are working-memory keys this node may read.
	RequiredFacts []string
	// ProducedFacts are working-memory keys this node may write.
	ProducedFacts []string

	// Gate names the quality gate checked after a leaf completes. Empty
	// means no gate.
	Gate string

	// Timeout overrides the configured agent timeout for this leaf.
	// Zero means use the default.
	Timeout time.Duration
}

// IsLeaf reports whether the node delegates to the agent boundary.
func (n *Node) IsLeaf() bool { return n.Kind == KindLeaf }

// Tree is an immutable task tree stored as a flat arena. Nodes hold child
// indices rather than pointers; the root is always index 0. A Tree is built
// once, validated, and then only read during execution.
type Tree struct {
	nodes []Node
	byID  map[string]int
}

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Node returns the node at the given arena index.
func (t *Tree) Node(i int) *Node { return &t.nodes[i] }

// Lookup returns the arena index for a node ID.
func (t *Tree) Lookup(id string) (int, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Leaves returns the arena indices of all leaf nodes in depth-first order.
func (t *Tree) Leaves() []int {
	var out []int
	var walk func(i int)
	walk = func(i int) {
		n := &t.nodes[i]
		if n.IsLeaf() {
			out = append(out, i)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(0)
	return out
}

// Walk visits every node depth-first, parents before children.
func (t *Tree) Walk(fn func(idx int, n *Node)) {
	var walk func(i int)
	walk = func(i int) {
		fn(i, &t.nodes[i])
		for _, c := range t.nodes[i].Children {
			walk(c)
		}
	}
	walk(0)
}

// String renders a compact one-line summary, useful in diagnostics.
func (t *Tree) String() string {
	root := t.Root()
	return fmt.Sprintf("tree(root=%s kind=%s nodes=%d)", root.ID, root.Kind, len(t.nodes))
}

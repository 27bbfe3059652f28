package tasktree

import (
	"fmt"
	"sort"
	"time"
)

// NodeSpec describes one node before the tree is assembled. Children refer to
// other specs by ID; Build resolves them into arena indices.
type NodeSpec struct {
	ID            string
	Kind          Kind
	Goal          string
	Children      []string
	RequiredFacts []string
	ProducedFacts []string
	Gate          string
	Timeout       time.Duration
}

// Builder assembles and validates a Tree from node specs. All invariant
// checks run at build time; a Tree handed to the executor is known good.
type Builder struct {
	specs []NodeSpec
	root  string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers a node spec. The first spec added is the root unless SetRoot
// overrides it.
func (b *Builder) Add(spec NodeSpec) *Builder {
	if b.root == "" {
		b.root = spec.ID
	}
	b.specs = append(b.specs, spec)
	return b
}

// SetRoot names the root node explicitly.
func (b *Builder) SetRoot(id string) *Builder {
	b.root = id
	return b
}

// Build resolves child references, validates every tree invariant, and
// returns the immutable Tree. Overwrite hazards that are legal but worth
// flagging (same produced key among Sequence siblings) come back as warnings.
func (b *Builder) Build() (*Tree, []string, error) {
	if len(b.specs) == 0 {
		return nil, nil, invalidf("", "tree has no nodes")
	}

	byID := make(map[string]int, len(b.specs))
	for i, s := range b.specs {
		if s.ID == "" {
			return nil, nil, invalidf("", "node %d has empty id", i)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, nil, invalidf(s.ID, "duplicate node id")
		}
		byID[s.ID] = i
	}

	rootIdx, ok := byID[b.root]
	if !ok {
		return nil, nil, invalidf(b.root, "root node not found")
	}

	// Arena order: root first, then remaining specs in insertion order.
	order := make([]int, 0, len(b.specs))
	order = append(order, rootIdx)
	for i := range b.specs {
		if i != rootIdx {
			order = append(order, i)
		}
	}
	arenaIdx := make(map[string]int, len(b.specs))
	for arena, spec := range order {
		arenaIdx[b.specs[spec].ID] = arena
	}

	nodes := make([]Node, len(order))
	for arena, specIdx := range order {
		s := b.specs[specIdx]
		if !s.Kind.valid() {
			return nil, nil, invalidf(s.ID, "unknown kind %q", s.Kind)
		}
		n := Node{
			ID:            s.ID,
			Kind:          s.Kind,
			Goal:          s.Goal,
			RequiredFacts: append([]string(nil), s.RequiredFacts...),
			ProducedFacts: append([]string(nil), s.ProducedFacts...),
			Gate:          s.Gate,
			Timeout:       s.Timeout,
		}
		for _, childID := range s.Children {
			ci, ok := arenaIdx[childID]
			if !ok {
				return nil, nil, invalidf(s.ID, "unknown child %q", childID)
			}
			n.Children = append(n.Children, ci)
		}
		nodes[arena] = n
	}

	t := &Tree{nodes: nodes, byID: arenaIdx}
	warnings, err := validate(t)
	if err != nil {
		return nil, nil, err
	}
	return t, warnings, nil
}

// validate enforces every construction-time invariant:
//   - a Leaf has no children, a composite has at least one
//   - every node is reachable from the root and referenced exactly once
//   - the child graph is acyclic
//   - Parallel siblings have no fact-key dependencies on one another
func validate(t *Tree) ([]string, error) {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsLeaf() && len(n.Children) > 0 {
			return nil, invalidf(n.ID, "leaf has %d children", len(n.Children))
		}
		if !n.IsLeaf() && len(n.Children) == 0 {
			return nil, invalidf(n.ID, "composite %s has no children", n.Kind)
		}
	}

	if err := checkOwnership(t); err != nil {
		return nil, err
	}

	var warnings []string
	for i := range t.nodes {
		n := &t.nodes[i]
		switch n.Kind {
		case KindParallel:
			if err := checkParallelDisjoint(t, n); err != nil {
				return nil, err
			}
		case KindSequence:
			warnings = append(warnings, sequenceOverwriteWarnings(t, n)...)
		}
	}
	return warnings, nil
}

// checkOwnership verifies the arena forms a tree rooted at index 0: every
// node has at most one parent, none is its own ancestor, and nothing is
// orphaned. A repeated child index would make two parents share a subtree,
// which breaks the single-run ownership rule, so it is rejected alongside
// true cycles.
func checkOwnership(t *Tree) error {
	parent := make([]int, len(t.nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i := range t.nodes {
		for _, c := range t.nodes[i].Children {
			if c == i {
				return cycleError([]string{t.nodes[i].ID, t.nodes[i].ID})
			}
			if parent[c] != -1 {
				return invalidf(t.nodes[c].ID, "referenced by both %q and %q", t.nodes[parent[c]].ID, t.nodes[i].ID)
			}
			parent[c] = i
		}
	}

	// Follow parent links from each node; revisiting a node proves a cycle.
	for i := range t.nodes {
		seen := make(map[int]bool)
		for j := i; j != -1; j = parent[j] {
			if seen[j] {
				return cycleError(cyclePath(t, parent, j))
			}
			seen[j] = true
		}
	}

	// Reachability from the root.
	reached := make([]bool, len(t.nodes))
	var walk func(i int)
	walk = func(i int) {
		if reached[i] {
			return
		}
		reached[i] = true
		for _, c := range t.nodes[i].Children {
			walk(c)
		}
	}
	walk(0)
	for i, r := range reached {
		if !r {
			return invalidf(t.nodes[i].ID, "unreachable from root")
		}
	}
	return nil
}

// cyclePath extracts a stable witness path for the cycle containing start.
func cyclePath(t *Tree, parent []int, start int) []string {
	path := []string{t.nodes[start].ID}
	for j := parent[start]; j != -1 && j != start; j = parent[j] {
		path = append(path, t.nodes[j].ID)
	}
	path = append(path, t.nodes[start].ID)
	return path
}

// factSets returns the union of required and produced fact keys over the
// subtree rooted at arena index i. Composite nodes contribute their own
// declared keys plus everything beneath them.
func factSets(t *Tree, i int) (required, produced map[string]bool) {
	required = make(map[string]bool)
	produced = make(map[string]bool)
	var walk func(i int)
	walk = func(i int) {
		n := &t.nodes[i]
		for _, k := range n.RequiredFacts {
			required[k] = true
		}
		for _, k := range n.ProducedFacts {
			produced[k] = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(i)
	return required, produced
}

// checkParallelDisjoint rejects Parallel nodes whose children could race on a
// fact key: two siblings producing the same key, or one sibling reading a key
// another produces. Siblings reading the same ancestor-produced key is fine.
func checkParallelDisjoint(t *Tree, n *Node) error {
	type sets struct {
		id       string
		required map[string]bool
		produced map[string]bool
	}
	children := make([]sets, 0, len(n.Children))
	for _, c := range n.Children {
		req, prod := factSets(t, c)
		children = append(children, sets{id: t.nodes[c].ID, required: req, produced: prod})
	}

	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			a, b := children[i], children[j]
			if key := firstOverlap(a.produced, b.produced); key != "" {
				return invalidf(n.ID, "parallel children %q and %q both produce fact %q", a.id, b.id, key)
			}
			if key := firstOverlap(a.produced, b.required); key != "" {
				return invalidf(n.ID, "parallel child %q requires fact %q produced by sibling %q", b.id, key, a.id)
			}
			if key := firstOverlap(b.produced, a.required); key != "" {
				return invalidf(n.ID, "parallel child %q requires fact %q produced by sibling %q", a.id, key, b.id)
			}
		}
	}
	return nil
}

// firstOverlap returns a deterministic witness key present in both sets.
func firstOverlap(a, b map[string]bool) string {
	var keys []string
	for k := range a {
		if b[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// sequenceOverwriteWarnings flags Sequence siblings that produce the same
// fact key. A later write wins, which is legal but usually a smell.
func sequenceOverwriteWarnings(t *Tree, n *Node) []string {
	producers := make(map[string]string)
	var warnings []string
	for _, c := range n.Children {
		_, prod := factSets(t, c)
		var keys []string
		for k := range prod {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if prev, ok := producers[k]; ok {
				warnings = append(warnings, fmt.Sprintf(
					"sequence %q: child %q overwrites fact %q produced by %q",
					n.ID, t.nodes[c].ID, k, prev))
			}
			producers[k] = t.nodes[c].ID
		}
	}
	return warnings
}

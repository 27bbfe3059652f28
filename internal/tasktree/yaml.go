package tasktree

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// treeFile is the YAML shape of a tree definition on disk.
type treeFile struct {
	Root  string     `yaml:"root"`
	Nodes []nodeYAML `yaml:"nodes"`
}

type nodeYAML struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"`
	Goal     string   `yaml:"goal,omitempty"`
	Children []string `yaml:"children,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
	Produces []string `yaml:"produces,omitempty"`
	Gate     string   `yaml:"gate,omitempty"`
	Timeout  string   `yaml:"timeout,omitempty"`
}

// Load reads and builds a tree definition file. The returned warnings carry
// the legal-but-suspect findings from validation.
func Load(path string) (*Tree, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read tree file: %w", err)
	}
	return Parse(data)
}

// Parse builds a tree from YAML bytes.
func Parse(data []byte) (*Tree, []string, error) {
	var tf treeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("parse tree file: %w", err)
	}

	b := NewBuilder()
	if tf.Root != "" {
		b.SetRoot(tf.Root)
	}
	for _, ny := range tf.Nodes {
		spec := NodeSpec{
			ID:            ny.ID,
			Kind:          Kind(ny.Kind),
			Goal:          ny.Goal,
			Children:      ny.Children,
			RequiredFacts: ny.Requires,
			ProducedFacts: ny.Produces,
			Gate:          ny.Gate,
		}
		if ny.Timeout != "" {
			d, err := time.ParseDuration(ny.Timeout)
			if err != nil {
				return nil, nil, fmt.Errorf("node %q: bad timeout %q: %w", ny.ID, ny.Timeout, err)
			}
			spec.Timeout = d
		}
		b.Add(spec)
	}
	return b.Build()
}

// Marshal renders a tree back to its YAML file form, mainly for inspect
// output and tests.
func Marshal(t *Tree) ([]byte, error) {
	tf := treeFile{Root: t.Root().ID}
	t.Walk(func(_ int, n *Node) {
		ny := nodeYAML{
			ID:       n.ID,
			Kind:     string(n.Kind),
			Goal:     n.Goal,
			Requires: n.RequiredFacts,
			Produces: n.ProducedFacts,
			Gate:     n.Gate,
		}
		for _, c := range n.Children {
			ny.Children = append(ny.Children, t.Node(c).ID)
		}
		if n.Timeout > 0 {
			ny.Timeout = n.Timeout.String()
		}
		tf.Nodes = append(tf.Nodes, ny)
	})
	return yaml.Marshal(&tf)
}

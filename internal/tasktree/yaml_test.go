package tasktree

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleTree = `
root: deploy
nodes:
  - id: deploy
    kind: sequence
    children: [build, verify]
  - id: build
    kind: fallback
    children: [build-fast, build-clean]
  - id: build-fast
    kind: leaf
    goal: Incremental build
    produces: [artifact]
    timeout: 30s
  - id: build-clean
    kind: leaf
    goal: Clean build
    produces: [artifact]
  - id: verify
    kind: parallel
    children: [lint, test]
  - id: lint
    kind: leaf
    goal: Run linter
    requires: [artifact]
    produces: [lint_report]
    gate: lint-clean
  - id: test
    kind: leaf
    goal: Run tests
    requires: [artifact]
    produces: [test_report]
`

func TestParse_SampleTree(t *testing.T) {
	tree, warnings, err := Parse([]byte(sampleTree))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if tree.Root().ID != "deploy" {
		t.Errorf("expected root deploy, got %s", tree.Root().ID)
	}
	if got := len(tree.Leaves()); got != 4 {
		t.Errorf("expected 4 leaves, got %d", got)
	}

	i, ok := tree.Lookup("build-fast")
	if !ok {
		t.Fatal("build-fast not found")
	}
	if tree.Node(i).Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", tree.Node(i).Timeout)
	}

	i, _ = tree.Lookup("lint")
	if tree.Node(i).Gate != "lint-clean" {
		t.Errorf("expected gate lint-clean, got %q", tree.Node(i).Gate)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, _, err := Parse([]byte("nodes: [")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestParse_BadTimeout(t *testing.T) {
	bad := `
root: a
nodes:
  - id: a
    kind: leaf
    timeout: soon
`
	if _, _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for bad timeout")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	tree, _, err := Parse([]byte(sampleTree))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	data, err := Marshal(tree)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	again, _, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if again.Len() != tree.Len() {
		t.Errorf("expected %d nodes after round trip, got %d", tree.Len(), again.Len())
	}
	if again.Root().ID != tree.Root().ID {
		t.Errorf("root changed across round trip: %s vs %s", again.Root().ID, tree.Root().ID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package tasktree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTree marks any construction-time invariant violation.
	// A tree that fails validation never starts executing.
	ErrInvalidTree = errors.New("invalid task tree")
	// ErrCycleFound marks a child-reference cycle.
	ErrCycleFound = errors.New("cycle detected")
)

// InvariantError wraps a validation failure with the offending node.
type InvariantError struct {
	Kind   error
	NodeID string
	Msg    string
}

func (e *InvariantError) Error() string {
	if e == nil {
		return ""
	}
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: node %q: %s", e.Kind.Error(), e.NodeID, e.Msg)
}

func (e *InvariantError) Unwrap() error { return e.Kind }

func invalidf(nodeID, format string, args ...any) error {
	return &InvariantError{Kind: ErrInvalidTree, NodeID: nodeID, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &InvariantError{Kind: ErrCycleFound, Msg: msg}
}

package agent

import (
	"context"
	"sync"
)

// MockInvoker is a scripted worker for tests. Responses are keyed by node ID;
// every call is recorded in order.
type MockInvoker struct {
	mu        sync.Mutex
	responses map[string]Result
	errs      map[string]error
	defaultRe Result
	delay     func(nodeID string, ctx context.Context) // optional per-call hook
	calls     []Request
}

// NewMockInvoker creates a mock that succeeds with an empty result by default.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		responses: make(map[string]Result),
		errs:      make(map[string]error),
		defaultRe: Result{Succeeded: true},
	}
}

// SetResponse scripts the result for a node ID.
func (m *MockInvoker) SetResponse(nodeID string, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[nodeID] = res
}

// SetError scripts an invocation error for a node ID.
func (m *MockInvoker) SetError(nodeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[nodeID] = err
}

// SetHook installs a function called before each invocation returns, e.g. to
// block until a context is cancelled.
func (m *MockInvoker) SetHook(hook func(nodeID string, ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = hook
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	res, hasRes := m.responses[req.NodeID]
	err, hasErr := m.errs[req.NodeID]
	hook := m.delay
	m.mu.Unlock()

	if hook != nil {
		hook(req.NodeID, ctx)
	}
	if hasErr {
		return Result{}, err
	}
	if hasRes {
		return res, nil
	}
	return m.defaultRe, nil
}

// Calls returns a copy of the recorded requests, in invocation order.
func (m *MockInvoker) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallsFor counts invocations for one node ID.
func (m *MockInvoker) CallsFor(nodeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.NodeID == nodeID {
			n++
		}
	}
	return n
}

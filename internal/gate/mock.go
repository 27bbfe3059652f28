package gate

import (
	"context"
	"sync"
)

// MockChecker is a scripted gate capability for tests.
type MockChecker struct {
	mu       sync.Mutex
	verdicts map[string]Verdict
	errs     map[string]error
	hook     func(gateName string, ctx context.Context)
	calls    []string
}

// NewMockChecker creates a mock that passes every gate by default.
func NewMockChecker() *MockChecker {
	return &MockChecker{
		verdicts: make(map[string]Verdict),
		errs:     make(map[string]error),
	}
}

// SetVerdict scripts the outcome for a gate name.
func (m *MockChecker) SetVerdict(gateName string, passed bool, messages ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[gateName] = Verdict{GateName: gateName, Passed: passed, Messages: messages}
}

// SetError scripts an invocation error for a gate name.
func (m *MockChecker) SetError(gateName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[gateName] = err
}

// SetHook installs a function called during each check, e.g. to block until
// the context is cancelled.
func (m *MockChecker) SetHook(hook func(gateName string, ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Check implements Checker.
func (m *MockChecker) Check(ctx context.Context, gateName string, phaseContext map[string]string) (bool, []string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, gateName)
	v, hasV := m.verdicts[gateName]
	err, hasErr := m.errs[gateName]
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(gateName, ctx)
	}
	if hasErr {
		return false, nil, err
	}
	if hasV {
		return v.Passed, v.Messages, nil
	}
	return true, nil, nil
}

// Calls returns the gate names checked, in order.
func (m *MockChecker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

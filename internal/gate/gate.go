// Package gate runs external quality checks after a phase completes. The
// check itself lives outside this core; the runner's job is to invoke it,
// bound it with a timeout, and normalize whatever happens into a verdict.
package gate

import (
	"context"
	"fmt"
	"time"
)

// Verdict is the normalized outcome of one gate check. It is created fresh
// per check and never persisted beyond the proceed/stop decision.
type Verdict struct {
	GateName string
	Passed   bool
	Messages []string
}

// Checker is the external validation capability.
type Checker interface {
	Check(ctx context.Context, gateName string, phaseContext map[string]string) (passed bool, messages []string, err error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, gateName string, phaseContext map[string]string) (bool, []string, error)

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context, gateName string, phaseContext map[string]string) (bool, []string, error) {
	return f(ctx, gateName, phaseContext)
}

// Runner invokes gates with a timeout. A gate that errors or times out is
// never ambiguous: it comes back as Passed=false with a message naming the
// failure mode.
type Runner struct {
	checker        Checker
	defaultTimeout time.Duration
}

// NewRunner wraps a checker with a default timeout.
func NewRunner(checker Checker, defaultTimeout time.Duration) *Runner {
	return &Runner{checker: checker, defaultTimeout: defaultTimeout}
}

// Run checks one gate. A zero timeout selects the default. The check runs in
// its own goroutine so a checker that ignores cancellation cannot hang the
// tree walk.
func (r *Runner) Run(ctx context.Context, gateName string, phaseContext map[string]string, timeout time.Duration) Verdict {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		passed   bool
		messages []string
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		passed, messages, err := r.checker.Check(callCtx, gateName, phaseContext)
		done <- outcome{passed: passed, messages: messages, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Verdict{
				GateName: gateName,
				Passed:   false,
				Messages: []string{fmt.Sprintf("gate %s: invocation error: %v", gateName, out.err)},
			}
		}
		return Verdict{GateName: gateName, Passed: out.passed, Messages: out.messages}
	case <-callCtx.Done():
		reason := fmt.Sprintf("gate %s: timed out after %s", gateName, timeout)
		if ctx.Err() != nil {
			reason = fmt.Sprintf("gate %s: cancelled", gateName)
		}
		return Verdict{GateName: gateName, Passed: false, Messages: []string{reason}}
	}
}

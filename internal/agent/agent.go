// Package agent defines the boundary to the external worker capability that
// executes leaf goals. The core treats the worker as opaque: possibly slow,
// possibly failing, never retried here.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvocation marks an agent call that errored or timed out. It surfaces
// on the leaf as a failed phase, never as a panic or a hang.
var ErrInvocation = errors.New("agent invocation failed")

// Request carries everything a leaf hands to the worker: the goal text and
// whichever required facts were present in working memory. Missing facts are
// simply absent from Facts; the worker decides whether that is acceptable.
type Request struct {
	NodeID string
	Goal   string
	Facts  map[string]string
}

// Result is the worker's structured answer.
type Result struct {
	Succeeded     bool
	ProducedFacts map[string]string
	Narrative     string
}

// Invoker executes one leaf goal. Implementations live outside this core;
// they are handed in by the embedding application.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req Request) (Result, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Caller bounds every invocation with a timeout. A call that exceeds its
// deadline or returns an error yields (Result{}, wrapped ErrInvocation) so
// the executor can fail the leaf with a diagnostic naming the failure mode.
type Caller struct {
	invoker        Invoker
	defaultTimeout time.Duration
}

// NewCaller wraps an invoker with a default timeout.
func NewCaller(invoker Invoker, defaultTimeout time.Duration) *Caller {
	return &Caller{invoker: invoker, defaultTimeout: defaultTimeout}
}

// Call invokes the worker with the given timeout (zero selects the default).
// The underlying call runs in its own goroutine so a worker that ignores
// context cancellation still cannot hang the tree walk; its eventual result
// is discarded.
func (c *Caller) Call(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.invoker.Invoke(callCtx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{}, fmt.Errorf("%w: node %s: %v", ErrInvocation, req.NodeID, out.err)
		}
		return out.res, nil
	case <-callCtx.Done():
		reason := "timed out"
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		return Result{}, fmt.Errorf("%w: node %s: %s after %s", ErrInvocation, req.NodeID, reason, timeout)
	}
}

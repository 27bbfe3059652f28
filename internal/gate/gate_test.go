package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunner_Pass(t *testing.T) {
	mock := NewMockChecker()
	runner := NewRunner(mock, time.Second)

	v := runner.Run(context.Background(), "lint", nil, 0)
	if !v.Passed {
		t.Errorf("expected pass, got %+v", v)
	}
	if v.GateName != "lint" {
		t.Errorf("expected gate name preserved, got %q", v.GateName)
	}
}

func TestRunner_FailWithMessages(t *testing.T) {
	mock := NewMockChecker()
	mock.SetVerdict("tests", false, "3 tests failing", "coverage below threshold")
	runner := NewRunner(mock, time.Second)

	v := runner.Run(context.Background(), "tests", map[string]string{"dir": "/src"}, 0)
	if v.Passed {
		t.Fatal("expected failure")
	}
	if len(v.Messages) != 2 {
		t.Errorf("expected 2 messages, got %v", v.Messages)
	}
}

func TestRunner_ErrorNormalizesToFailed(t *testing.T) {
	mock := NewMockChecker()
	mock.SetError("flaky", errors.New("connection refused"))
	runner := NewRunner(mock, time.Second)

	v := runner.Run(context.Background(), "flaky", nil, 0)
	if v.Passed {
		t.Fatal("invocation error must force passed=false")
	}
	if len(v.Messages) != 1 || !strings.Contains(v.Messages[0], "invocation error") {
		t.Errorf("expected invocation-error diagnostic, got %v", v.Messages)
	}
}

func TestRunner_TimeoutNormalizesToFailed(t *testing.T) {
	mock := NewMockChecker()
	mock.SetHook(func(_ string, ctx context.Context) {
		<-ctx.Done()
	})
	runner := NewRunner(mock, 10*time.Millisecond)

	start := time.Now()
	v := runner.Run(context.Background(), "slow", nil, 0)
	if v.Passed {
		t.Fatal("timeout must force passed=false")
	}
	if !strings.Contains(v.Messages[0], "timed out") {
		t.Errorf("timeout and invocation error must be distinguishable, got %v", v.Messages)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not bound the check")
	}
}

func TestRunner_CancellationDiagnostic(t *testing.T) {
	mock := NewMockChecker()
	mock.SetHook(func(_ string, ctx context.Context) {
		<-ctx.Done()
	})
	runner := NewRunner(mock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	v := runner.Run(ctx, "g", nil, 0)
	if v.Passed {
		t.Fatal("cancellation must force passed=false")
	}
	if !strings.Contains(v.Messages[0], "cancelled") {
		t.Errorf("expected cancellation diagnostic, got %v", v.Messages)
	}
}

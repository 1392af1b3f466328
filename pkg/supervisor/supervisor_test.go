package supervisor

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func withTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func TestSpawnSuccessDeliversExitCode(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{Command: "true"})
	value, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if value != 0 {
		t.Errorf("Wait() value = %v, want 0", value)
	}
}

func TestSpawnFailureNotInRetryForIsTerminal(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{Command: "false"})
	_, err := p.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() should error when the command exits nonzero and RetryFor is empty")
	}
	waitErr, ok := err.(*ProcessWaitError)
	if !ok {
		t.Fatalf("Wait() error type = %T, want *ProcessWaitError", err)
	}
	if waitErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", waitErr.ExitCode)
	}
}

func TestSpawnRetriesUpToMaxRetries(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{
		Command:    "false",
		RetryFor:   []RetryPredicate{RetryAlways},
		RetryDelay: time.Millisecond,
		MaxRetries: 2,
	})
	_, err := p.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() should still fail once retries are exhausted")
	}
	if p.tries != 3 {
		t.Errorf("tries = %d, want 3 (one initial attempt plus two retries)", p.tries)
	}
}

func TestSpawnMaxRetriesZeroRunsOnce(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{
		Command:    "false",
		RetryFor:   []RetryPredicate{RetryAlways},
		RetryDelay: time.Millisecond,
		MaxRetries: 0,
	})
	_, err := p.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() should fail after the single attempt")
	}
	if p.tries != 1 {
		t.Errorf("tries = %d, want 1 (one attempt, no retry)", p.tries)
	}
}

func TestSpawnLaunchFailureReportsExitCodeNegativeOne(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{Command: "/nonexistent/definitely-not-a-binary"})
	_, err := p.Wait(ctx)
	waitErr, ok := err.(*ProcessWaitError)
	if !ok {
		t.Fatalf("Wait() error type = %T, want *ProcessWaitError", err)
	}
	if waitErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", waitErr.ExitCode)
	}
}

func TestRetryExitCodesOnlyMatchesListedCodes(t *testing.T) {
	predicate := RetryExitCodes(2, 3)
	if predicate(&ProcessWaitError{ExitCode: 1}) {
		t.Error("RetryExitCodes(2, 3) should not match exit code 1")
	}
	if !predicate(&ProcessWaitError{ExitCode: 2}) {
		t.Error("RetryExitCodes(2, 3) should match exit code 2")
	}
}

func TestStopPreventsFurtherRetries(t *testing.T) {
	ctx, cancel := withTimeout(t)
	defer cancel()

	p := Spawn(ctx, Config{
		Command:    "sh",
		Args:       []string{"-c", "sleep 5"},
		RetryFor:   []RetryPredicate{RetryAlways},
		RetryDelay: time.Millisecond,
		MaxRetries: -1,
	})

	// Give the process a moment to actually start before stopping it.
	time.Sleep(50 * time.Millisecond)
	if p.PID() == 0 {
		t.Fatal("PID() = 0, process should be running")
	}

	if err := p.Stop(syscall.SIGKILL); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if _, err := p.Wait(ctx); err == nil {
		t.Fatal("Wait() should report an error once the process is killed")
	}
}

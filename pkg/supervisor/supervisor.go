package supervisor

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/meshstate/pkg/log"
	"github.com/cuemby/meshstate/pkg/metrics"
)

// outcome is what a finished (or given-up-on) Process delivers to Wait.
type outcome struct {
	value any
	err   error
}

// Process is a handle to a command Spawn is supervising: it may currently
// be running, sleeping between retries, or already finished.
type Process struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	tries   int
	stopped bool

	done   chan struct{}
	result outcome
}

// Spawn starts cfg's command under supervision and returns immediately;
// the command runs, and is retried, on a background goroutine. ctx
// bounds the supervised process's entire lifetime, including retries:
// canceling it stops the current attempt and prevents any further retry.
func Spawn(ctx context.Context, cfg Config) *Process {
	p := &Process{cfg: cfg, done: make(chan struct{})}
	go p.run(ctx)
	return p
}

func (p *Process) run(ctx context.Context) {
	args := p.cfg.Args
	logger := log.WithComponent("supervisor")

	for {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			p.deliver(nil, &ProcessExit{Code: 0})
			return
		}
		p.tries++
		tries := p.tries
		p.mu.Unlock()

		cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
		cmd.Dir = p.cfg.Dir
		cmd.Env = append(os.Environ(), p.cfg.Env...)

		p.mu.Lock()
		p.cmd = cmd
		p.mu.Unlock()

		metrics.SupervisorProcessesActive.Inc()
		err := cmd.Run()
		metrics.SupervisorProcessesActive.Dec()
		if err == nil {
			p.deliver(cmd.ProcessState.ExitCode(), nil)
			return
		}

		if ctx.Err() != nil {
			p.deliver(nil, ctx.Err())
			return
		}

		waitErr := classify(err)

		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			p.deliver(nil, waitErr)
			return
		}

		if !matchesAny(p.cfg.RetryFor, waitErr) {
			p.deliver(nil, waitErr)
			return
		}
		if p.cfg.MaxRetries >= 0 && tries > p.cfg.MaxRetries {
			p.deliver(nil, waitErr)
			return
		}

		metrics.SupervisorRetriesTotal.WithLabelValues(p.cfg.Command).Inc()
		logger.Warn().
			Str("process", p.cfg.repr()).
			Int("attempt", tries).
			Err(waitErr).
			Msg("supervised process crashed, retrying")

		select {
		case <-time.After(p.cfg.RetryDelay):
		case <-ctx.Done():
			p.deliver(nil, ctx.Err())
			return
		}

		if p.cfg.RetryArgs != nil {
			args = p.cfg.RetryArgs
		}
	}
}

func classify(err error) error {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return &ProcessWaitError{Message: err.Error(), ExitCode: -1}
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return &SignalError{Signal: status.Signal().String()}
	}
	return &ProcessWaitError{Message: err.Error(), ExitCode: exitErr.ExitCode()}
}

func (p *Process) deliver(value any, err error) {
	p.result = outcome{value: value, err: err}
	close(p.done)
}

// Wait blocks until the process finishes, successfully or not, or until
// ctx is done. A nonzero exit, a launch failure, or a signal death all
// surface as an error of the corresponding type (*ProcessWaitError,
// *SignalError); a clean exit returns its exit code as value. Wait may be
// called more than once; every caller observes the same outcome.
func (p *Process) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result.value, p.result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop signals the current attempt with sig and prevents any further
// retry once it exits. It does not block; call Wait to observe the final
// outcome.
func (p *Process) Stop(sig os.Signal) error {
	p.mu.Lock()
	p.stopped = true
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(sig)
}

// PID returns the current attempt's process id, or 0 if none is running.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

package taskproxy

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Swarm owns a pool of worker goroutines pulling dispatches off a Proxy's
// work queue. Workers are plain goroutines rather than OS processes:
// unlike the CPython implementation this was ported from, Go has no
// global interpreter lock standing between a worker and true parallelism,
// so spreading work across goroutines is enough to use every core. (Spawning
// independent OS processes is still useful elsewhere — see pkg/supervisor
// — but not as a substitute for CPU parallelism here.)
type Swarm struct {
	proxy *Proxy

	mu      sync.Mutex
	cancel  []context.CancelFunc
	group   *errgroup.Group
	running int
}

// NewSwarm returns a Swarm with no workers started.
func NewSwarm(proxy *Proxy) *Swarm {
	return &Swarm{proxy: proxy, group: new(errgroup.Group)}
}

// Count reports how many workers are currently running.
func (s *Swarm) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start adds n workers to the swarm, or runtime.NumCPU() if n is zero or
// negative. Calling Start on an already-running swarm adds
// workers on top of whatever is already running; use SetCount to reach an
// exact target.
func (s *Swarm) Start(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.spawnLocked()
	}
}

// SetCount scales the swarm to exactly n workers, starting more or
// stopping some of the existing ones as needed.
func (s *Swarm) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running < n {
		s.spawnLocked()
	}
	for s.running > n {
		s.stopOneLocked()
	}
}

// Stop shuts every worker down and waits for them to finish whatever
// dispatch they were running.
func (s *Swarm) Stop() {
	s.mu.Lock()
	cancels := s.cancel
	group := s.group
	s.cancel = nil
	s.group = new(errgroup.Group)
	s.running = 0
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	_ = group.Wait()
}

func (s *Swarm) spawnLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = append(s.cancel, cancel)
	s.running++
	group := s.group
	group.Go(func() error {
		s.work(ctx)
		return nil
	})
}

func (s *Swarm) stopOneLocked() {
	if len(s.cancel) == 0 {
		return
	}
	last := len(s.cancel) - 1
	cancel := s.cancel[last]
	s.cancel = s.cancel[:last]
	s.running--
	cancel()
}

func (s *Swarm) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.proxy.workCh:
			s.proxy.execute(d)
		}
	}
}

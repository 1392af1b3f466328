package taskproxy

import (
	"context"
	"testing"
	"time"
)

func TestSwarmStartDefaultsToNumCPU(t *testing.T) {
	p := newTestProxy()
	swarm := NewSwarm(p)
	swarm.Start(0)
	defer swarm.Stop()

	if swarm.Count() < 1 {
		t.Errorf("Count() = %d, want at least 1", swarm.Count())
	}
}

func TestSwarmSetCountScalesUpAndDown(t *testing.T) {
	p := newTestProxy()
	swarm := NewSwarm(p)
	defer swarm.Stop()

	swarm.SetCount(3)
	if swarm.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", swarm.Count())
	}

	swarm.SetCount(1)
	if swarm.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", swarm.Count())
	}

	swarm.SetCount(0)
	if swarm.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", swarm.Count())
	}
}

func TestSwarmStopWaitsForInFlightWork(t *testing.T) {
	p := newTestProxy()
	started := make(chan struct{})
	release := make(chan struct{})
	p.Register("slow", func(_ TaskContext, _ TaskCall) (any, error) {
		close(started)
		<-release
		return "done", nil
	})

	swarm := NewSwarm(p)
	swarm.Start(1)

	chunkID, err := p.RunAsync(context.Background(), "slow", false, "default", nil, nil)
	if err != nil {
		t.Fatalf("RunAsync() error = %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		swarm.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned before the in-flight task finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	if !p.store.Has(chunkID) {
		t.Error("in-flight task's result should have been delivered before Stop() returned")
	}
}

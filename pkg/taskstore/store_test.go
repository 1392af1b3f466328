package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/meshstate/pkg/wire"
)

func TestDeliverThenLookup(t *testing.T) {
	s := New()
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)
	s.Deliver(chunkID, "value", nil)

	v, taskErr, err := s.Lookup(context.Background(), chunkID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if taskErr != nil {
		t.Fatalf("Lookup() task error = %v", taskErr)
	}
	if v != "value" {
		t.Errorf("Lookup() = %v, want value", v)
	}
}

func TestLookupBeforeDeliver(t *testing.T) {
	s := New()
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)

	resultCh := make(chan any, 1)
	go func() {
		v, _, err := s.Lookup(context.Background(), chunkID)
		if err == nil {
			resultCh <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	s.Deliver(chunkID, 42, nil)

	select {
	case v := <-resultCh:
		if v != 42 {
			t.Errorf("Lookup() = %v, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Lookup() never woke up after Deliver")
	}
}

func TestLookupWakesEveryQueuedWaiter(t *testing.T) {
	s := New()
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)

	const waiters = 5
	order := make(chan int, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		go func() {
			// Stagger registration so arrival order is deterministic.
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			s.Lookup(context.Background(), chunkID)
			order <- i
		}()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	s.Deliver(chunkID, "done", nil)

	seen := make(map[int]bool)
	for i := 0; i < waiters; i++ {
		select {
		case v := <-order:
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatalf("only %d/%d waiters resolved", len(seen), waiters)
		}
	}
}

func TestDeliverIsWriteOnce(t *testing.T) {
	s := New()
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)
	s.Deliver(chunkID, "first", nil)
	s.Deliver(chunkID, "second", nil)

	v, _, _ := s.Lookup(context.Background(), chunkID)
	if v != "first" {
		t.Errorf("Lookup() = %v, want first (Deliver should be write-once)", v)
	}
}

func TestLookupContextCancellation(t *testing.T) {
	s := New()
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := s.Lookup(ctx, chunkID)
	if err == nil {
		t.Fatal("Lookup() should return an error once its context expires with no result")
	}
}

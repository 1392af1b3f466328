package taskstore

import (
	"container/list"
	"context"
	"sync"

	"github.com/cuemby/meshstate/pkg/wire"
)

// result is what Store keeps for a chunk once it's known: either a value
// or an error, never both.
type result struct {
	value any
	err   *wire.RemoteError
}

// Store holds task results until their requester collects them. Writing a
// chunk's result is write-once: a chunk id that already has a result
// ignores any later Deliver for the same id, since a worker only ever
// finishes a given chunk once.
type Store struct {
	mu      sync.Mutex
	results map[wire.ChunkID]result
	pending map[wire.ChunkID]*list.List // FIFO queue of waiting chan result
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		results: make(map[wire.ChunkID]result),
		pending: make(map[wire.ChunkID]*list.List),
	}
}

// Deliver records chunkID's result, waking every Lookup currently waiting
// on it in the order they arrived.
func (s *Store) Deliver(chunkID wire.ChunkID, value any, err *wire.RemoteError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[chunkID]; exists {
		return
	}
	r := result{value: value, err: err}
	s.results[chunkID] = r

	waiters, ok := s.pending[chunkID]
	if !ok {
		return
	}
	delete(s.pending, chunkID)
	for e := waiters.Front(); e != nil; e = e.Next() {
		ch := e.Value.(chan result)
		ch <- r
	}
}

// Lookup returns chunkID's result once it's available, or ctx's error if
// it never arrives in time. A lookup that arrives before the result is
// queued FIFO so concurrent requesters for the same chunk are served in
// arrival order.
func (s *Store) Lookup(ctx context.Context, chunkID wire.ChunkID) (any, *wire.RemoteError, error) {
	s.mu.Lock()
	if r, ok := s.results[chunkID]; ok {
		s.mu.Unlock()
		return r.value, r.err, nil
	}

	waiters, ok := s.pending[chunkID]
	if !ok {
		waiters = list.New()
		s.pending[chunkID] = waiters
	}
	ch := make(chan result, 1)
	elem := waiters.PushBack(ch)
	s.mu.Unlock()

	select {
	case r := <-ch:
		return r.value, r.err, nil
	case <-ctx.Done():
		s.cancelWait(chunkID, elem)
		return nil, nil, ctx.Err()
	}
}

func (s *Store) cancelWait(chunkID wire.ChunkID, elem *list.Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiters, ok := s.pending[chunkID]
	if !ok {
		return
	}
	waiters.Remove(elem)
	if waiters.Len() == 0 {
		delete(s.pending, chunkID)
	}
}

// Has reports whether chunkID's result has already been delivered.
func (s *Store) Has(chunkID wire.ChunkID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.results[chunkID]
	return ok
}

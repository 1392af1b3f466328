package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/meshstate/pkg/wire"
)

type fakeRequester struct {
	updates []wire.StateUpdate
	i       int
}

func (f *fakeRequester) Next(ctx context.Context, onlyAfter float64, identicalOkay bool) (wire.StateUpdate, bool, error) {
	for f.i < len(f.updates) {
		u := f.updates[f.i]
		f.i++
		if u.Timestamp > onlyAfter && (identicalOkay || !u.IsIdentical) {
			return u, false, nil
		}
	}
	return wire.StateUpdate{}, true, nil
}

func TestStateWatcherYieldsOnAllUpdates(t *testing.T) {
	raw := &fakeRequester{updates: []wire.StateUpdate{
		{Timestamp: 1, After: map[string]any{"n": 1}},
		{Timestamp: 2, After: map[string]any{"n": 2}},
	}}
	sw := New(raw, func(u wire.StateUpdate) (any, error) { return u.After["n"], nil }, StartAfter(0))

	results, err := sw.Consume(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Consume() error = %v, want ErrTimeout once the updates run out", err)
	}
	if len(results) != 2 || results[0] != 1 || results[1] != 2 {
		t.Errorf("results = %v, want [1 2]", results)
	}
}

func TestStateWatcherSkip(t *testing.T) {
	raw := &fakeRequester{updates: []wire.StateUpdate{
		{Timestamp: 1, After: map[string]any{"n": 1}},
		{Timestamp: 2, After: map[string]any{"n": 2}},
		{Timestamp: 3, After: map[string]any{"n": 3}},
	}}
	sw := New(raw, func(u wire.StateUpdate) (any, error) {
		if u.After["n"] != 2 {
			return nil, ErrSkip
		}
		return u.After["n"], nil
	}, StartAfter(0))

	v, err := sw.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if v != 2 {
		t.Errorf("Next() = %v, want 2 (the only update passing the callback)", v)
	}
}

func TestStateWatcherCount(t *testing.T) {
	raw := &fakeRequester{updates: []wire.StateUpdate{
		{Timestamp: 1}, {Timestamp: 2}, {Timestamp: 3},
	}}
	sw := New(raw, func(u wire.StateUpdate) (any, error) { return u.Timestamp, nil }, StartAfter(0), Count(2))

	results, err := sw.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestStateWatcherCallbackError(t *testing.T) {
	boom := errors.New("boom")
	raw := &fakeRequester{updates: []wire.StateUpdate{{Timestamp: 1}}}
	sw := New(raw, func(u wire.StateUpdate) (any, error) { return nil, boom }, StartAfter(0))

	_, err := sw.Next(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Next() error = %v, want %v", err, boom)
	}
}

func TestStateWatcherTimeout(t *testing.T) {
	raw := &fakeRequester{}
	sw := New(raw, func(u wire.StateUpdate) (any, error) { return u, nil }, StartAfter(0))

	_, err := sw.Next(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Next() error = %v, want ErrTimeout", err)
	}
}

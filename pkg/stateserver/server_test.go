package stateserver

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/meshstate/pkg/wire"
)

type recordingSink struct {
	updates []wire.StateUpdate
}

func (s *recordingSink) Publish(namespace string, origin wire.ClientID, update wire.StateUpdate) {
	s.updates = append(s.updates, update)
}

func newTestServer(sink UpdateSink) (*Server, context.CancelFunc) {
	s := NewServer(sink, wire.ServerMeta{Version: "test"})
	RegisterBuiltins(s)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, cancel
}

func TestSetAndGetState(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	setReply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdSetState,
		Namespace: "ns",
		Info:      map[string]any{"count": int64(1)},
	})
	if !setReply.OK {
		t.Fatalf("set_state failed: %v", setReply.Err)
	}

	getReply := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: "ns"})
	if !getReply.OK {
		t.Fatalf("get_state failed: %v", getReply.Err)
	}
	state, ok := getReply.Value.(map[string]any)
	if !ok || state["count"] != int64(1) {
		t.Errorf("get_state = %v, want map with count=1", getReply.Value)
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	s.Execute(ctx, wire.Envelope{Cmd: wire.CmdSetState, Namespace: "a", Info: map[string]any{"x": int64(1)}})
	s.Execute(ctx, wire.Envelope{Cmd: wire.CmdSetState, Namespace: "b", Info: map[string]any{"x": int64(2)}})

	ra := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: "a"})
	rb := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: "b"})

	if ra.Value.(map[string]any)["x"] != int64(1) || rb.Value.(map[string]any)["x"] != int64(2) {
		t.Errorf("namespace state leaked across namespaces: a=%v b=%v", ra.Value, rb.Value)
	}
}

func TestRunDictMethodPublishesUpdate(t *testing.T) {
	sink := &recordingSink{}
	s, cancel := newTestServer(sink)
	defer cancel()
	ctx := context.Background()

	s.Execute(ctx, wire.Envelope{Cmd: wire.CmdSetState, Namespace: "ns", Info: map[string]any{}})
	reply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunDictMethod,
		Namespace: "ns",
		Info:      string(wire.DictMethodSet),
		Args:      []any{"k", "v"},
	})
	if !reply.OK {
		t.Fatalf("run_dict_method failed: %v", reply.Err)
	}

	if len(sink.updates) != 2 {
		t.Fatalf("sink received %d updates, want 2 (one per commit)", len(sink.updates))
	}
	last := sink.updates[len(sink.updates)-1]
	if last.IsIdentical {
		t.Error("update setting a new key should not be flagged identical")
	}
	if last.After["k"] != "v" {
		t.Errorf("after state missing the set key: %v", last.After)
	}
}

func TestRunDictMethodRollsBackOnError(t *testing.T) {
	sink := &recordingSink{}
	s, cancel := newTestServer(sink)
	defer cancel()
	ctx := context.Background()

	reply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunDictMethod,
		Namespace: "ns",
		Info:      string(wire.DictMethodPop),
		Args:      []any{"missing"},
	})
	if reply.OK {
		t.Fatal("popping a missing key should fail")
	}
	if len(sink.updates) != 0 {
		t.Errorf("a failed mutation should not publish an update, got %d", len(sink.updates))
	}
}

func TestRunFnAtomicallyUnknownOperation(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	reply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunFnAtomically,
		Namespace: "ns",
		Info:      "does_not_exist",
	})
	if reply.OK {
		t.Fatal("calling an unregistered atomic operation should fail")
	}
	if reply.Err.Kind != wire.ErrKindUnknownOp {
		t.Errorf("error kind = %q, want %q", reply.Err.Kind, wire.ErrKindUnknownOp)
	}
}

func TestEmptyNamespaceRejected(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	reply := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: ""})
	if reply.OK {
		t.Fatal("get_state with an empty namespace should fail")
	}
	if reply.Err.Kind != wire.ErrKindBadRequest {
		t.Errorf("error kind = %q, want %q", reply.Err.Kind, wire.ErrKindBadRequest)
	}

	// Commands that don't address a namespace still work without one.
	if ping := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdPing}); !ping.OK {
		t.Fatalf("ping without a namespace failed: %v", ping.Err)
	}
}

func TestAtomicSetAndGet(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	setReply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunFnAtomically,
		Namespace: "ns",
		Info:      AtomicSetName,
		Args:      []any{"a.b", int64(7)},
	})
	if !setReply.OK {
		t.Fatalf("atomic set failed: %v", setReply.Err)
	}

	getReply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunFnAtomically,
		Namespace: "ns",
		Info:      AtomicGetName,
		Args:      []any{"a.b"},
	})
	if !getReply.OK || getReply.Value != int64(7) {
		t.Errorf("atomic get = (%v, %v), want (7, true)", getReply.Value, getReply.OK)
	}
}

func TestAtomicApplyIncrement(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunFnAtomically,
		Namespace: "ns",
		Info:      AtomicSetName,
		Args:      []any{"counters", map[string]any{"hits": int64(1)}},
	})

	reply := s.Execute(ctx, wire.Envelope{
		Cmd:       wire.CmdRunFnAtomically,
		Namespace: "ns",
		Info:      AtomicApplyName,
		Args:      []any{"counters", string(wire.DictMethodSet), "hits", int64(2)},
	})
	if !reply.OK {
		t.Fatalf("atomic apply failed: %v", reply.Err)
	}

	getReply := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: "ns"})
	counters := getReply.Value.(map[string]any)["counters"].(map[string]any)
	if counters["hits"] != int64(2) {
		t.Errorf("counters[hits] = %v, want 2", counters["hits"])
	}
}

func TestConcurrentIncrementsAreSerialized(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	s.Execute(ctx, wire.Envelope{Cmd: wire.CmdSetState, Namespace: "ns", Info: map[string]any{"n": int64(0)}})
	s.RegisterAtomic("increment", func(state map[string]any, args []any, kwargs map[string]any) (any, error) {
		n, _ := state["n"].(int64)
		n++
		state["n"] = n
		return n, nil
	})

	const workers = 20
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			s.Execute(ctx, wire.Envelope{Cmd: wire.CmdRunFnAtomically, Namespace: "ns", Info: "increment"})
		}()
	}
	for i := 0; i < workers; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent increments")
		}
	}

	final := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdGetState, Namespace: "ns"})
	if final.Value.(map[string]any)["n"] != int64(workers) {
		t.Errorf("n = %v, want %d (every increment should land exactly once)", final.Value.(map[string]any)["n"], workers)
	}
}

// TestNestedAtomicCallRejected exercises the inAtomic guard directly at the
// dispatch level: an AtomicFunc has no handle back into the server, so the
// only way to observe true reentrancy is to simulate it in-goroutine the
// way a future dispatch-level caller might, bypassing the channel (which
// would otherwise just deadlock against the busy command loop).
func TestNestedAtomicCallRejected(t *testing.T) {
	s := NewServer(nil, wire.ServerMeta{})
	RegisterBuiltins(s)
	s.RegisterAtomic("noop", func(state map[string]any, args []any, kwargs map[string]any) (any, error) {
		return nil, nil
	})

	s.inAtomic = true
	reply := s.dispatch(context.Background(), wire.Envelope{Cmd: wire.CmdRunFnAtomically, Namespace: "ns", Info: "noop"})
	s.inAtomic = false

	if reply.OK {
		t.Fatal("dispatch should reject a run_fn_atomically issued while inAtomic is set")
	}
	if reply.Err.Kind != wire.ErrKindNested {
		t.Errorf("error kind = %q, want %q", reply.Err.Kind, wire.ErrKindNested)
	}
}

func TestPingEchoesAndReportsPID(t *testing.T) {
	s, cancel := newTestServer(nil)
	defer cancel()
	ctx := context.Background()

	reply := s.Execute(ctx, wire.Envelope{Cmd: wire.CmdPing, Info: "hello"})
	if !reply.OK {
		t.Fatalf("ping failed: %v", reply.Err)
	}
	result, ok := reply.Value.(pingResult)
	if !ok {
		t.Fatalf("ping result type = %T, want pingResult", reply.Value)
	}
	if result.Echo != "hello" || result.PID <= 0 {
		t.Errorf("ping result = %+v, want echo=hello and a positive pid", result)
	}
}

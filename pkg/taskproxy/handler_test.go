package taskproxy

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/wire"
)

func TestHandlerQueuesSubmittedDispatch(t *testing.T) {
	p := newTestProxy()
	p.Register("echo", func(_ TaskContext, call TaskCall) (any, error) {
		return call.Args[0], nil
	})
	swarm := NewSwarm(p)
	swarm.Start(1)
	defer swarm.Stop()

	srv := transport.NewRRServer(p.Handler())
	httpServer := httptest.NewServer(srv)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := transport.DialRR(ctx, wsURL)
	if err != nil {
		t.Fatalf("DialRR() error = %v", err)
	}
	defer client.Close()

	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)
	d := wire.TaskDispatch{ChunkID: chunkID, Operation: "echo", Namespace: "default", Args: []any{"hi"}}

	var reply wire.Reply
	if err := client.Call(ctx, d, &reply); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !reply.OK {
		t.Fatalf("Call() reply.OK = false, err = %v", reply.Err)
	}

	result, err := p.Collect(ctx, chunkID)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result != "hi" {
		t.Errorf("Collect() = %v, want hi", result)
	}
}

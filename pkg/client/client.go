package client

import (
	"context"
	"fmt"

	"github.com/cuemby/meshstate/pkg/supervisor"
	"github.com/cuemby/meshstate/pkg/taskproxy"
	"github.com/cuemby/meshstate/pkg/transport"
	"github.com/cuemby/meshstate/pkg/watcher"
	"github.com/cuemby/meshstate/pkg/wire"
)

// Client is the single entry point a meshstate application embeds: state
// reads and mutations, watching for changes, submitting tasks, and
// supervising external processes, all reachable from one connected
// handle instead of dialing each subsystem by hand.
type Client struct {
	namespace string
	clientID  wire.ClientID
	meta      wire.ServerMeta

	state  *transport.RRClient
	task   *transport.RRClient
	result *transport.RRClient
}

// Dial connects to the state server at addr, fetches its ServerMeta, and
// opens the additional connections the task subsystem needs. namespace
// scopes every state and watcher call this Client makes; pass
// wire.DefaultNamespace for the default.
func Dial(ctx context.Context, addr string, namespace string) (*Client, error) {
	state, err := transport.DialRR(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("client: dialing state server: %w", err)
	}

	c := &Client{
		namespace: namespace,
		clientID:  wire.NewClientID(),
		state:     state,
	}

	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdGetServerMeta})
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("client: fetching server meta: %w", err)
	}
	if !reply.OK {
		state.Close()
		return nil, reply.Err
	}
	if err := wire.Recode(reply.Value, &c.meta); err != nil {
		state.Close()
		return nil, fmt.Errorf("client: decoding server meta: %w", err)
	}

	c.task, err = transport.DialRR(ctx, c.meta.TaskAddress)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("client: dialing task proxy: %w", err)
	}
	c.result, err = transport.DialRR(ctx, c.meta.TaskResultPull)
	if err != nil {
		state.Close()
		c.task.Close()
		return nil, fmt.Errorf("client: dialing task result store: %w", err)
	}

	return c, nil
}

// Close closes every connection this Client opened.
func (c *Client) Close() error {
	var firstErr error
	for _, closer := range []*transport.RRClient{c.state, c.task, c.result} {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ServerMeta returns the ServerMeta fetched at Dial time.
func (c *Client) ServerMeta() wire.ServerMeta {
	return c.meta
}

func (c *Client) execState(ctx context.Context, env wire.Envelope) (wire.Reply, error) {
	env.ClientID = c.clientID
	if env.Namespace == "" {
		env.Namespace = c.namespace
	}
	var reply wire.Reply
	if err := c.state.Call(ctx, env, &reply); err != nil {
		return wire.Reply{}, err
	}
	return reply, nil
}

// Ping round-trips echo through the state server, also returning its pid.
func (c *Client) Ping(ctx context.Context, echo any) (any, int, error) {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdPing, Info: echo})
	if err != nil {
		return nil, 0, err
	}
	if !reply.OK {
		return nil, 0, reply.Err
	}
	var result struct {
		Echo any `cbor:"echo"`
		PID  int `cbor:"pid"`
	}
	if err := wire.Recode(reply.Value, &result); err != nil {
		return nil, 0, err
	}
	return result.Echo, result.PID, nil
}

// Time returns the state server's clock, in seconds since the epoch.
func (c *Client) Time(ctx context.Context) (float64, error) {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdTime})
	if err != nil {
		return 0, err
	}
	if !reply.OK {
		return 0, reply.Err
	}
	t, _ := reply.Value.(float64)
	return t, nil
}

// GetState returns a snapshot of the namespace's current state.
func (c *Client) GetState(ctx context.Context) (map[string]any, error) {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdGetState})
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, reply.Err
	}
	state, _ := reply.Value.(map[string]any)
	return state, nil
}

// SetState replaces the namespace's entire state with value.
func (c *Client) SetState(ctx context.Context, value map[string]any) error {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdSetState, Info: value})
	if err != nil {
		return err
	}
	if !reply.OK {
		return reply.Err
	}
	return nil
}

// RunDictMethod runs one of the fixed dict-like operations (get, set,
// update, clear, pop, keys, values, items) against the namespace's state.
func (c *Client) RunDictMethod(ctx context.Context, method wire.DictMethod, args ...any) (any, error) {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdRunDictMethod, Info: string(method), Args: args})
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, reply.Err
	}
	return reply.Value, nil
}

// RunFnAtomically runs the named registered operation with exclusive
// access to the namespace's state, committing whatever it returns.
func (c *Client) RunFnAtomically(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	reply, err := c.execState(ctx, wire.Envelope{Cmd: wire.CmdRunFnAtomically, Info: name, Args: args, Kwargs: kwargs})
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, reply.Err
	}
	return reply.Value, nil
}

// NewWatcher dials the watcher service and wraps it in a StateWatcher
// scoped to this Client's namespace and identity. Updates this Client
// itself originated are suppressed only when the watcher.Live option is
// given; otherwise the watcher sees them too.
func (c *Client) NewWatcher(ctx context.Context, callback watcher.Callback, opts ...watcher.Option) (*watcher.StateWatcher, error) {
	raw, err := watcher.Dial(ctx, c.meta.WatcherAddress, c.namespace, c.clientID)
	if err != nil {
		return nil, fmt.Errorf("client: dialing watcher: %w", err)
	}
	return watcher.New(raw, callback, opts...), nil
}

// Run submits a single call to the task proxy and blocks for its result.
func (c *Client) Run(ctx context.Context, operation string, passState bool, args []any, kwargs map[string]any) (any, error) {
	chunkID, err := c.RunAsync(ctx, operation, passState, args, kwargs)
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx, chunkID)
}

// RunAsync submits a single call without waiting for its result.
func (c *Client) RunAsync(ctx context.Context, operation string, passState bool, args []any, kwargs map[string]any) (wire.ChunkID, error) {
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)
	d := wire.TaskDispatch{
		ChunkID:   chunkID,
		Operation: operation,
		PassState: passState,
		Namespace: c.namespace,
		Args:      args,
		Kwargs:    kwargs,
	}
	if err := c.submit(ctx, d); err != nil {
		return wire.ChunkID{}, err
	}
	return chunkID, nil
}

// Map submits a map call, distributing it over numChunks chunks, and
// blocks for every chunk's result, flattened back into item order.
func (c *Client) Map(ctx context.Context, operation string, passState bool, numChunks int, mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) ([]any, error) {
	taskID, err := c.MapAsync(ctx, operation, passState, numChunks, mapIter, mapArgs, args, mapKwargs, kwargs)
	if err != nil {
		return nil, err
	}
	return c.CollectMap(ctx, taskID)
}

// MapAsync submits a map call without waiting for its results.
func (c *Client) MapAsync(ctx context.Context, operation string, passState bool, numChunks int, mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) (wire.TaskID, error) {
	taskID, chunks, err := taskproxy.PlanMap(numChunks, mapIter, mapArgs, args, mapKwargs, kwargs)
	if err != nil {
		return wire.TaskID{}, err
	}
	for i, chunk := range chunks {
		d := wire.TaskDispatch{
			ChunkID:   taskID.ChunkID(int32(i)),
			Operation: operation,
			PassState: passState,
			Namespace: c.namespace,
			Chunk:     chunk,
		}
		if err := c.submit(ctx, d); err != nil {
			return wire.TaskID{}, err
		}
	}
	return taskID, nil
}

func (c *Client) submit(ctx context.Context, d wire.TaskDispatch) error {
	var reply wire.Reply
	if err := c.task.Call(ctx, d, &reply); err != nil {
		return err
	}
	if !reply.OK {
		return reply.Err
	}
	return nil
}

// Collect blocks until chunkID's result is delivered.
func (c *Client) Collect(ctx context.Context, chunkID wire.ChunkID) (any, error) {
	var reply wire.TaskLookupReply
	if err := c.result.Call(ctx, wire.TaskLookupRequest{ChunkID: chunkID}, &reply); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return reply.Result, nil
}

// CollectMap blocks until every chunk of taskID has been delivered,
// flattening them in chunk order into one slice of per-item results.
func (c *Client) CollectMap(ctx context.Context, taskID wire.TaskID) ([]any, error) {
	_, _, numChunks, chunked := taskID.Chunking()
	if !chunked {
		value, err := c.Collect(ctx, taskID.ChunkID(wire.SingleChunkIndex))
		if err != nil {
			return nil, err
		}
		return []any{value}, nil
	}

	results := make([]any, 0, numChunks)
	for i := 0; i < int(numChunks); i++ {
		chunkValue, err := c.Collect(ctx, taskID.ChunkID(int32(i)))
		if err != nil {
			return nil, err
		}
		items, ok := chunkValue.([]any)
		if !ok {
			return nil, fmt.Errorf("client: chunk %d result was %T, want []any", i, chunkValue)
		}
		results = append(results, items...)
	}
	return results, nil
}

// Supervise spawns cfg under supervision. It has no network dependency on
// the rest of Client: supervising an external process is a local
// operation, exposed here only so every subsystem has one entry point.
func (c *Client) Supervise(ctx context.Context, cfg supervisor.Config) *supervisor.Process {
	return supervisor.Spawn(ctx, cfg)
}

package taskproxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/meshstate/pkg/metrics"
	"github.com/cuemby/meshstate/pkg/taskstore"
	"github.com/cuemby/meshstate/pkg/wire"
)

// queueDepth bounds how many dispatches can sit in Proxy's work channel
// before Submit starts applying backpressure to its caller.
const queueDepth = 1024

// Proxy holds the registry of runnable operations, the work queue workers
// pull from, and the store their results land in. It has no opinion about
// how many workers exist or when they run; Swarm owns that lifecycle.
type Proxy struct {
	mu       sync.RWMutex
	registry map[string]TaskFunc

	store    *taskstore.Store
	provider StateProvider

	workCh chan wire.TaskDispatch
}

// New returns a Proxy backed by store. provider may be nil if no
// registered operation ever asks for PassState.
func New(store *taskstore.Store, provider StateProvider) *Proxy {
	return &Proxy{
		registry: make(map[string]TaskFunc),
		store:    store,
		provider: provider,
		workCh:   make(chan wire.TaskDispatch, queueDepth),
	}
}

// Register adds operation to the proxy's registry. Registering under a
// name that's already taken replaces it.
func (p *Proxy) Register(operation string, fn TaskFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry[operation] = fn
}

func (p *Proxy) lookup(operation string) (TaskFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.registry[operation]
	return fn, ok
}

// QueueDepth reports how many dispatches are currently buffered in the
// work channel, waiting for a worker to pick them up.
func (p *Proxy) QueueDepth() int {
	return len(p.workCh)
}

// Submit enqueues a dispatch for some worker to pick up, blocking if the
// queue is full until ctx is done or a slot frees up.
func (p *Proxy) Submit(ctx context.Context, d wire.TaskDispatch) error {
	select {
	case p.workCh <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run submits a single call and blocks until its result is delivered.
func (p *Proxy) Run(ctx context.Context, operation string, passState bool, namespace string, args []any, kwargs map[string]any) (any, error) {
	chunkID, err := p.RunAsync(ctx, operation, passState, namespace, args, kwargs)
	if err != nil {
		return nil, err
	}
	return p.Collect(ctx, chunkID)
}

// RunAsync submits a single call without waiting for its result, and
// returns the ChunkID its result will be delivered under.
func (p *Proxy) RunAsync(ctx context.Context, operation string, passState bool, namespace string, args []any, kwargs map[string]any) (wire.ChunkID, error) {
	chunkID := wire.NewTaskID().ChunkID(wire.SingleChunkIndex)
	d := wire.TaskDispatch{
		ChunkID:   chunkID,
		Operation: operation,
		PassState: passState,
		Namespace: namespace,
		Args:      args,
		Kwargs:    kwargs,
	}
	if err := p.Submit(ctx, d); err != nil {
		return wire.ChunkID{}, err
	}
	return chunkID, nil
}

// MapAsync spreads a call over mapIter/mapArgs/mapKwargs, splits the
// resulting call plans into numChunks chunks (0 or negative defaults to
// runtime.NumCPU()), submits one dispatch per chunk, and returns the
// TaskID the caller can use to collect every chunk's result. The item
// count must strictly exceed numChunks, or MapAsync returns
// ErrTooManyChunks without submitting anything.
func (p *Proxy) MapAsync(ctx context.Context, operation string, passState bool, namespace string, numChunks int, mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) (wire.TaskID, error) {
	taskID, chunks, err := PlanMap(numChunks, mapIter, mapArgs, args, mapKwargs, kwargs)
	if err != nil {
		return wire.TaskID{}, err
	}

	for i, chunk := range chunks {
		d := wire.TaskDispatch{
			ChunkID:   taskID.ChunkID(int32(i)),
			Operation: operation,
			PassState: passState,
			Namespace: namespace,
			Chunk:     chunk,
		}
		if err := p.Submit(ctx, d); err != nil {
			return wire.TaskID{}, err
		}
	}
	return taskID, nil
}

// Map submits a map call and blocks until every chunk's result has been
// collected, returning the flattened, order-preserved slice of per-item
// results.
func (p *Proxy) Map(ctx context.Context, operation string, passState bool, namespace string, numChunks int, mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) ([]any, error) {
	taskID, err := p.MapAsync(ctx, operation, passState, namespace, numChunks, mapIter, mapArgs, args, mapKwargs, kwargs)
	if err != nil {
		return nil, err
	}
	return p.CollectMap(ctx, taskID)
}

// Collect blocks until chunkID's result is delivered, returning the task's
// error (if any) as a Go error so callers don't need to unwrap it.
func (p *Proxy) Collect(ctx context.Context, chunkID wire.ChunkID) (any, error) {
	value, taskErr, err := p.store.Lookup(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if taskErr != nil {
		return nil, taskErr
	}
	return value, nil
}

// CollectMap blocks until every chunk of taskID has been delivered and
// flattens them, in chunk order, into one slice of per-item results.
func (p *Proxy) CollectMap(ctx context.Context, taskID wire.TaskID) ([]any, error) {
	_, _, numChunks, chunked := taskID.Chunking()
	if !chunked {
		value, err := p.Collect(ctx, taskID.ChunkID(wire.SingleChunkIndex))
		if err != nil {
			return nil, err
		}
		return []any{value}, nil
	}

	results := make([]any, 0, numChunks)
	for i := 0; i < int(numChunks); i++ {
		chunkValue, err := p.Collect(ctx, taskID.ChunkID(int32(i)))
		if err != nil {
			return nil, err
		}
		items, ok := chunkValue.([]any)
		if !ok {
			return nil, fmt.Errorf("taskproxy: chunk %d result was %T, want []any", i, chunkValue)
		}
		results = append(results, items...)
	}
	return results, nil
}

// execute runs one dispatch to completion, delivering its result (or
// error) to the store. It never returns an error itself: failures are
// recorded through Deliver so Collect/CollectMap see them.
func (p *Proxy) execute(d wire.TaskDispatch) {
	timer := metrics.NewTimer()
	fn, ok := p.lookup(d.Operation)
	if !ok {
		metrics.TasksCompletedTotal.WithLabelValues(d.Operation, "unknown_operation").Inc()
		p.store.Deliver(d.ChunkID, nil, wire.RemoteErrorf(wire.ErrKindUnknownOp, "no task operation registered as %q", d.Operation))
		return
	}

	var state map[string]any
	if d.PassState && p.provider != nil {
		state = p.provider(d.Namespace)
	}
	tctx := TaskContext{Namespace: d.Namespace, State: state}

	defer timer.ObserveDurationVec(metrics.TaskDuration, d.Operation)

	if d.Chunk == nil {
		result, err := safeCall(fn, tctx, TaskCall{Args: d.Args, Kwargs: d.Kwargs})
		if err != nil {
			metrics.TasksCompletedTotal.WithLabelValues(d.Operation, "error").Inc()
			p.store.Deliver(d.ChunkID, nil, wire.NewRemoteError(err))
			return
		}
		metrics.TasksCompletedTotal.WithLabelValues(d.Operation, "ok").Inc()
		p.store.Deliver(d.ChunkID, result, nil)
		return
	}

	results := make([]any, len(d.Chunk))
	for i, plan := range d.Chunk {
		result, err := safeCall(fn, tctx, TaskCall{Item: plan.Item, HasItem: plan.HasItem, Args: plan.Args, Kwargs: plan.Kwargs})
		if err != nil {
			metrics.TasksCompletedTotal.WithLabelValues(d.Operation, "error").Inc()
			p.store.Deliver(d.ChunkID, nil, wire.NewRemoteError(err))
			return
		}
		results[i] = result
	}
	metrics.TasksCompletedTotal.WithLabelValues(d.Operation, "ok").Inc()
	p.store.Deliver(d.ChunkID, results, nil)
}

func safeCall(fn TaskFunc, ctx TaskContext, call TaskCall) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("taskproxy: operation panicked: %v", r)
		}
	}()
	return fn(ctx, call)
}

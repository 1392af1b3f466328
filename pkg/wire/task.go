package wire

// TaskLookupRequest asks the task result store for one chunk's result,
// blocking server-side until it is available.
type TaskLookupRequest struct {
	ChunkID ChunkID `cbor:"chunk_id"`
}

// TaskLookupReply carries a chunk's result once it's ready. Exactly one of
// Result or Err is meaningful.
type TaskLookupReply struct {
	Result any          `cbor:"result,omitempty"`
	Err    *RemoteError `cbor:"err,omitempty"`
}

// CallPlan is one item's worth of parameters within a mapped chunk: the
// per-item value (if the caller supplied an iterable to map over), plus
// that item's share of positional and keyword arguments after merging in
// whatever arguments were common to every item.
type CallPlan struct {
	Item    any            `cbor:"item,omitempty"`
	HasItem bool           `cbor:"has_item"`
	Args    []any          `cbor:"args,omitempty"`
	Kwargs  map[string]any `cbor:"kwargs,omitempty"`
}

// TaskDispatch is what the task proxy hands to a worker: the chunk to
// compute, the registered operation to run, and its parameters. A plain
// single-call task carries Args/Kwargs directly; a mapped chunk carries
// Chunk instead, one CallPlan per item in that chunk.
type TaskDispatch struct {
	ChunkID   ChunkID        `cbor:"chunk_id"`
	Operation string         `cbor:"operation"`
	PassState bool           `cbor:"pass_state"`
	Namespace string         `cbor:"namespace"`
	Args      []any          `cbor:"args,omitempty"`
	Kwargs    map[string]any `cbor:"kwargs,omitempty"`
	Chunk     []CallPlan     `cbor:"chunk,omitempty"`
}

// TaskResultMessage is what a worker sends back once a dispatched chunk
// finishes, successfully or not.
type TaskResultMessage struct {
	ChunkID ChunkID      `cbor:"chunk_id"`
	Result  any          `cbor:"result,omitempty"`
	Err     *RemoteError `cbor:"err,omitempty"`
}

package taskproxy

// TaskContext carries the read-only context a TaskFunc runs with: the
// namespace it was dispatched under, and the state snapshot it asked for
// via PassState on submission.
type TaskContext struct {
	Namespace string
	State     map[string]any
}

// TaskCall carries one call's worth of arguments. For a plain Run, Item
// is unset and HasItem is false. For a Map, each item in the slice being
// mapped over produces one TaskCall, with Args/Kwargs holding that item's
// own arguments merged with the ones common to every item in the map call.
type TaskCall struct {
	Item    any
	HasItem bool
	Args    []any
	Kwargs  map[string]any
}

// TaskFunc is a registered operation a worker can run. It has no handle
// back into the proxy or the state server: it only sees what TaskContext
// and TaskCall hand it, and returns a result or an error.
type TaskFunc func(ctx TaskContext, call TaskCall) (any, error)

// StateProvider reads a point-in-time snapshot of a namespace's state,
// used to satisfy PassState dispatches. *stateserver.Server satisfies
// this via a thin adapter in cmd/meshstate; taskproxy itself has no
// dependency on stateserver to avoid an import cycle.
type StateProvider func(namespace string) map[string]any
